// Package infra contém implementações concretas dos contratos de domain:
// relógios, stores de contadores (memória e Redis), os engines de
// limitação e os sinks de telemetria.
//
// Detalhes de infraestrutura moram aqui; regra de negócio fica em
// application/domain.
package infra

// Package domain define contratos e tipos de domínio para o rate limit
// com prioridade: níveis de prioridade, tiers de cliente, políticas,
// chaves de contador e os contratos de store/engine/telemetria.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de
// negócio de detalhes de infraestrutura.
package domain

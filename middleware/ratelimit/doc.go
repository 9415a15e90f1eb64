// Package ratelimit fornece o adapter HTTP (net/http) do limitador com
// consciência de prioridade.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (autorização de prioridade, resolução de
//     política, decisão composta) sem net/http
//   - config: carga de configuração e snapshots versionados de limites
//   - infra: implementações concretas (engines de taxa, stores em memória
//     e Redis, sinks de telemetria)
//   - ratelimit (este pacote): middleware HTTP + extração de identidade +
//     tradução da decisão para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai identidade (header/XFF/RemoteAddr), tier e prioridade da
//     requisição
//  2. Chama a camada application para obter a decisão composta
//  3. Se bloqueado, responde 429 (taxa) ou 503 (concorrência) com
//     Retry-After
//  4. Se permitido, chama o próximo handler (ex: reverse proxy) e libera
//     o slot de concorrência ao final
//
// O binário gateway (cmd/gateway) lê a configuração de arquivo YAML com
// overrides de ambiente PRIORITYGATE_*.
package ratelimit

package domain

// Camada de domínio do rate limit.
//
// Políticas, decisões e o contrato dos engines, sem dependência de
// net/http nem de um backend de store específico.

import (
	"context"
	"math"
	"strings"
	"time"
)

// AlgorithmKind seleciona o engine de limitação. Variantes fechadas:
// a escolha é sempre por tag, nunca por duck-typing.
type AlgorithmKind string

const (
	AlgoFixedWindow   AlgorithmKind = "fixed_window"
	AlgoSlidingWindow AlgorithmKind = "sliding_window"
	AlgoTokenBucket   AlgorithmKind = "token_bucket"
	AlgoSlidingLog    AlgorithmKind = "sliding_log"

	// AlgoConcurrency não é selecionável como algoritmo de taxa; marca as
	// chaves do limite de slots, que compõe com os algoritmos acima.
	AlgoConcurrency AlgorithmKind = "concurrency"
)

// ParseAlgorithm normaliza o nome vindo da configuração.
// Desconhecido vira fixed_window (o comportamento mais simples e barato).
func ParseAlgorithm(s string) AlgorithmKind {
	switch AlgorithmKind(strings.ToLower(strings.TrimSpace(s))) {
	case AlgoSlidingWindow:
		return AlgoSlidingWindow
	case AlgoTokenBucket:
		return AlgoTokenBucket
	case AlgoSlidingLog:
		return AlgoSlidingLog
	}
	return AlgoFixedWindow
}

// Policy é a política resolvida para uma requisição. Imutável após a
// resolução; re-resolvida a cada requisição (com cache curto permitido).
type Policy struct {
	Limit           int64
	Window          time.Duration
	BurstMultiplier float64
	Algorithm       AlgorithmKind

	// MaxConcurrent > 0 adiciona um limite de slots concorrentes por cima
	// do algoritmo de taxa. SlotLease é o prazo de recuperação de slots
	// cujo dono nunca chamou Release.
	MaxConcurrent int64
	SlotLease     time.Duration

	// Bypass marca prioridade High pós-autorização: a decisão é allow
	// direto, sem nenhuma ida ao store. Não é um "limite muito alto".
	Bypass bool
}

// Burst é a capacidade efetiva para algoritmos que aceitam rajada
// (token bucket). Nunca abaixo de Limit.
func (p Policy) Burst() int64 {
	if p.BurstMultiplier <= 1 {
		return p.Limit
	}
	b := int64(math.Round(float64(p.Limit) * p.BurstMultiplier))
	if b < p.Limit {
		return p.Limit
	}
	return b
}

// Decision é o resultado de uma checagem. Nunca mutada após a criação.
//
// Remaining < 0 significa "não se aplica" (ex.: bypass de prioridade).
type Decision struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
	Reason     string
}

// Razões padronizadas da decisão (campo Reason).
const (
	ReasonOK             = "ok"
	ReasonLimitExceeded  = "limit_exceeded"
	ReasonPriorityBypass = "priority_bypass"
	ReasonStoreError     = "store_error"
	ReasonNoSlots        = "concurrency_exhausted"
)

// Engine decide se uma requisição passa, consultando/mutando o
// CounterStore em uma única operação atômica por checagem.
type Engine interface {
	Check(ctx context.Context, clientID, endpoint string, policy Policy, now time.Time) (Decision, error)
}

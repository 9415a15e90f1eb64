package infra

import (
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

// NewEngineSet monta a família de engines de taxa sobre um CounterStore
// compartilhado, indexada por AlgorithmKind.
func NewEngineSet(store domain.CounterStore, segments int) map[domain.AlgorithmKind]domain.Engine {
	return map[domain.AlgorithmKind]domain.Engine{
		domain.AlgoFixedWindow:   FixedWindow{Store: store},
		domain.AlgoSlidingWindow: SlidingWindow{Store: store, Segments: segments},
		domain.AlgoTokenBucket:   TokenBucket{Store: store},
		domain.AlgoSlidingLog:    SlidingLog{Store: store},
	}
}

// keyTTL é janela + graça (uma janela inteira): tempo suficiente para a
// chave sair de cena sozinha depois que o tráfego para.
func keyTTL(window time.Duration) time.Duration {
	return window + window
}

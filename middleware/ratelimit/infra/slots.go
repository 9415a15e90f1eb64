package infra

import (
	"context"

	"github.com/google/uuid"

	"priority-gateway/middleware/ratelimit/domain"
)

// SlotEngine implementa domain.SlotLimiter sobre o CounterStore: cada
// requisição admitida ocupa um slot com lease; Release devolve o slot e
// lease vencido é recuperado sozinho pelo store.
//
// É o único engine com chamada explícita de liberação além da checagem.
type SlotEngine struct {
	Store domain.CounterStore
	Clock domain.Clock
}

func (e SlotEngine) Acquire(ctx context.Context, clientID, endpoint string, policy domain.Policy) (string, domain.Decision, error) {
	key := domain.CounterKey{
		ClientID:  clientID,
		Endpoint:  endpoint,
		Algorithm: domain.AlgoConcurrency,
	}
	token := uuid.NewString()
	now := e.Clock.Now()

	allowed, active, err := e.Store.AcquireSlot(ctx, key, token, policy.MaxConcurrent, policy.SlotLease, now)
	if err != nil {
		return "", domain.Decision{}, err
	}

	if !allowed {
		// sem visão de quando cada dono libera; o lease é o teto honesto
		return "", domain.Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    now.Add(policy.SlotLease),
			RetryAfter: policy.SlotLease,
			Reason:     domain.ReasonNoSlots,
		}, nil
	}

	remaining := policy.MaxConcurrent - active
	if remaining < 0 {
		remaining = 0
	}
	return token, domain.Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   now.Add(policy.SlotLease),
		Reason:    domain.ReasonOK,
	}, nil
}

func (e SlotEngine) Release(ctx context.Context, clientID, endpoint, token string) error {
	key := domain.CounterKey{
		ClientID:  clientID,
		Endpoint:  endpoint,
		Algorithm: domain.AlgoConcurrency,
	}
	return e.Store.ReleaseSlot(ctx, key, token)
}

package infra

import (
	"context"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

// TokenBucket mantém {tokens, lastRefill} por chave: a cada checagem
// recarrega elapsed × refillRate até a capacidade e consome 1 token
// quando há saldo.
//
// capacity = policy.Burst() (limite × multiplicador de rajada) e
// refillRate = limite/janela. Primeiro acesso começa com o bucket cheio:
// cliente frio não é negado de cara.
type TokenBucket struct {
	Store domain.CounterStore
}

func (e TokenBucket) Check(ctx context.Context, clientID, endpoint string, policy domain.Policy, now time.Time) (domain.Decision, error) {
	capacity := float64(policy.Burst())
	refill := float64(policy.Limit) / policy.Window.Seconds()
	key := domain.CounterKey{
		ClientID:  clientID,
		Endpoint:  endpoint,
		Algorithm: domain.AlgoTokenBucket,
	}

	// TTL: tempo de encher o bucket do zero, mais a graça usual — depois
	// disso o estado ausente equivale mesmo a um bucket cheio
	fillTime := time.Duration(capacity / refill * float64(time.Second))
	allowed, tokens, err := e.Store.TakeToken(ctx, key, capacity, refill, now, fillTime+policy.Window)
	if err != nil {
		return domain.Decision{}, err
	}

	if allowed {
		return domain.Decision{
			Allowed:   true,
			Remaining: int64(tokens),
			ResetAt:   now,
			Reason:    domain.ReasonOK,
		}, nil
	}

	missing := 1 - tokens
	retry := time.Duration(missing / refill * float64(time.Second))
	return domain.Decision{
		Allowed:    false,
		Remaining:  int64(tokens),
		ResetAt:    now.Add(retry),
		RetryAfter: retry,
		Reason:     domain.ReasonLimitExceeded,
	}, nil
}

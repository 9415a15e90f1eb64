package infra

import (
	"context"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

// SlidingLog guarda o timestamp de cada requisição admitida e decide
// podando o que saiu da janela. Precisão exata ao custo de
// O(requisições-na-janela) de memória por chave — não use em chave de
// tráfego alto sem aceitar esse custo.
type SlidingLog struct {
	Store domain.CounterStore
}

func (e SlidingLog) Check(ctx context.Context, clientID, endpoint string, policy domain.Policy, now time.Time) (domain.Decision, error) {
	key := domain.CounterKey{
		ClientID:  clientID,
		Endpoint:  endpoint,
		Algorithm: domain.AlgoSlidingLog,
	}

	allowed, count, oldest, err := e.Store.AppendLog(ctx, key, now, policy.Window, policy.Limit)
	if err != nil {
		return domain.Decision{}, err
	}

	resetAt := now.Add(policy.Window)
	if !oldest.IsZero() {
		resetAt = oldest.Add(policy.Window)
	}

	if allowed {
		return domain.Decision{
			Allowed:   true,
			Remaining: policy.Limit - count,
			ResetAt:   resetAt,
			Reason:    domain.ReasonOK,
		}, nil
	}

	// o slot mais próximo abre quando o evento mais antigo envelhecer
	retry := resetAt.Sub(now)
	if retry < 0 {
		retry = 0
	}
	return domain.Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retry,
		Reason:     domain.ReasonLimitExceeded,
	}, nil
}

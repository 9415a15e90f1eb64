package infra

import (
	"context"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

// FixedWindow conta requisições em janelas fixas alinhadas ao relógio:
// bucket = floor(now / window).
//
// Fraqueza conhecida e documentada do algoritmo: até 2× o limite pode
// passar cruzando a fronteira de janela (N no fim de uma, N no começo da
// próxima). Isso é intrínseco e coberto por teste; não deve ser
// "consertado" aqui.
//
// Aproximação aceita: o increment-and-read é UMA operação atômica, então
// tentativas negadas também incrementam o contador da janela. A
// alternativa (ler, decidir, incrementar) abriria exatamente a corrida
// que o contrato do store proíbe.
type FixedWindow struct {
	Store domain.CounterStore
}

func (e FixedWindow) Check(ctx context.Context, clientID, endpoint string, policy domain.Policy, now time.Time) (domain.Decision, error) {
	w := policy.Window
	bucket := now.UnixNano() / int64(w)
	key := domain.CounterKey{
		ClientID:     clientID,
		Endpoint:     endpoint,
		Algorithm:    domain.AlgoFixedWindow,
		WindowBucket: bucket,
	}

	count, err := e.Store.IncrWindow(ctx, key, keyTTL(w))
	if err != nil {
		return domain.Decision{}, err
	}

	resetAt := time.Unix(0, (bucket+1)*int64(w))
	if count <= policy.Limit {
		return domain.Decision{
			Allowed:   true,
			Remaining: policy.Limit - count,
			ResetAt:   resetAt,
			Reason:    domain.ReasonOK,
		}, nil
	}
	return domain.Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
		Reason:     domain.ReasonLimitExceeded,
	}, nil
}

package infra

import (
	"context"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

const defaultSegments = 10

// SlidingWindow divide a janela em N segmentos iguais e pondera o
// segmento mais antigo pela fração dele que ainda cobre a janela
// deslizante:
//
//	weighted = counts[antigo] × (1 − fraçãoDecorridaDoSegmentoAtual)
//	         + counts[demais segmentos] + counts[atual]
//
// A decisão compara a contagem ponderada PRÉ-incremento com o limite e só
// incrementa o segmento atual quando permite — tudo numa única operação
// atômica do store (SegmentIncr).
type SlidingWindow struct {
	Store    domain.CounterStore
	Segments int
}

func (e SlidingWindow) Check(ctx context.Context, clientID, endpoint string, policy domain.Policy, now time.Time) (domain.Decision, error) {
	n := e.Segments
	if n < 2 {
		n = defaultSegments
	}
	seg := policy.Window / time.Duration(n)
	if seg <= 0 {
		seg = time.Millisecond
	}

	cur := now.UnixNano() / int64(seg)
	keys := make([]domain.CounterKey, 0, n+1)
	for b := cur - int64(n); b <= cur; b++ {
		keys = append(keys, domain.CounterKey{
			ClientID:     clientID,
			Endpoint:     endpoint,
			Algorithm:    domain.AlgoSlidingWindow,
			WindowBucket: b,
		})
	}

	elapsedFrac := float64(now.UnixNano()%int64(seg)) / float64(seg)
	allowed, weighted, err := e.Store.SegmentIncr(ctx, keys, 1-elapsedFrac, policy.Limit, keyTTL(policy.Window))
	if err != nil {
		return domain.Decision{}, err
	}

	segEnd := time.Unix(0, (cur+1)*int64(seg))
	if allowed {
		remaining := policy.Limit - int64(weighted) - 1
		if remaining < 0 {
			remaining = 0
		}
		return domain.Decision{
			Allowed:   true,
			Remaining: remaining,
			ResetAt:   segEnd,
			Reason:    domain.ReasonOK,
		}, nil
	}

	// retry estimado: tempo restante do segmento atual escalado por quão
	// acima do limite a contagem ponderada está
	retry := time.Duration(float64(segEnd.Sub(now)) * weighted / float64(policy.Limit))
	if retry > policy.Window {
		retry = policy.Window
	}
	if retry <= 0 {
		retry = segEnd.Sub(now)
	}
	return domain.Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    segEnd,
		RetryAfter: retry,
		Reason:     domain.ReasonLimitExceeded,
	}, nil
}

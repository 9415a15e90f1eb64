package application

import (
	"context"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

// Authorizer valida se o tier pode usar a prioridade pedida.
//
// Pedido não autorizado é REBAIXADO (clamp), nunca rejeitado: a punição é
// perder a urgência, não o acesso. Todo rebaixamento gera um evento de
// auditoria best-effort.
type Authorizer struct {
	Stats domain.TelemetryStore
	Clock domain.Clock
}

// Authorize devolve a prioridade efetiva e se o pedido original era
// autorizado pela matriz tier × prioridade.
func (a Authorizer) Authorize(ctx context.Context, clientID, endpoint string, tier domain.ClientTier, requested domain.PriorityLevel) (domain.PriorityLevel, bool) {
	effective, authorized := domain.ClampPriority(tier, requested)
	if authorized {
		return effective, true
	}

	if a.Stats != nil {
		_ = a.Stats.Record(ctx, domain.Event{
			Kind:     domain.EventPriorityClamped,
			ClientID: clientID,
			Priority: effective,
			Endpoint: endpoint,
			Details:  "tier " + tier.String() + " pediu " + requested.String() + ", efetivado " + effective.String(),
			At:       a.now(),
		})
	}
	return effective, false
}

func (a Authorizer) now() time.Time {
	if a.Clock == nil {
		return time.Now()
	}
	return a.Clock.Now()
}

package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"priority-gateway/middleware/ratelimit/domain"
)

// Request é a entrada da decisão, já extraída do transporte.
//
// Priority é a prioridade PEDIDA; a efetiva sai do Authorizer.
type Request struct {
	ClientID string
	Endpoint string
	Tier     domain.ClientTier
	Priority domain.PriorityLevel
}

// Engine orquestra a decisão completa de uma requisição:
//
//	autorização de prioridade -> resolução de política -> engine de taxa
//	-> (opcional) aquisição de slot de concorrência.
//
// Toda falha de store vira fail-open: a requisição passa, um único evento
// StoreError é registrado e o motivo fica na Decision. Preferimos deixar
// excedente passar num incidente de infraestrutura a derrubar tráfego
// legítimo junto.
type Engine struct {
	Authorizer *Authorizer
	Resolver   *Resolver
	Engines    map[domain.AlgorithmKind]domain.Engine
	Slots      domain.SlotLimiter
	Stats      domain.TelemetryStore
	Clock      domain.Clock
	Logger     *zap.Logger
}

// noopRelease é devolvido quando não há slot a liberar; o caller pode
// sempre chamar o release sem se importar com o caminho tomado.
func noopRelease() {}

// Decide avalia a requisição e devolve a decisão mais a função de
// liberação do slot de concorrência (no-op quando nenhum slot foi
// adquirido). O release é idempotente: chamadas repetidas são seguras.
func (e *Engine) Decide(ctx context.Context, req Request) (domain.Decision, func()) {
	effective, _ := e.Authorizer.Authorize(ctx, req.ClientID, req.Endpoint, req.Tier, req.Priority)
	policy := e.Resolver.Resolve(req.Tier, effective, req.Endpoint)

	if policy.Bypass {
		dec := domain.Decision{
			Allowed:   true,
			Remaining: -1,
			Reason:    domain.ReasonPriorityBypass,
		}
		e.record(ctx, domain.EventBypassed, req, effective, "")
		return dec, noopRelease
	}

	engine, ok := e.Engines[policy.Algorithm]
	if !ok {
		// mapa de engines incompleto é erro de montagem, não do cliente
		return e.failOpen(ctx, req, effective, fmt.Errorf("engine ausente para algoritmo %q", policy.Algorithm))
	}

	dec, err := engine.Check(ctx, req.ClientID, req.Endpoint, policy, e.now())
	if err != nil {
		return e.failOpen(ctx, req, effective, err)
	}
	if !dec.Allowed {
		e.record(ctx, domain.EventDenied, req, effective, dec.Reason)
		return dec, noopRelease
	}

	if policy.MaxConcurrent > 0 && e.Slots != nil {
		token, slotDec, err := e.Slots.Acquire(ctx, req.ClientID, req.Endpoint, policy)
		if err != nil {
			return e.failOpen(ctx, req, effective, err)
		}
		if !slotDec.Allowed {
			e.record(ctx, domain.EventDenied, req, effective, slotDec.Reason)
			return slotDec, noopRelease
		}
		e.record(ctx, domain.EventAllowed, req, effective, "")
		return dec, e.releaser(req, token)
	}

	e.record(ctx, domain.EventAllowed, req, effective, "")
	return dec, noopRelease
}

// releaser embrulha o Release do slot em sync.Once. Usa um contexto
// desacoplado do da requisição: o cliente pode ter desistido (ctx
// cancelado) e o slot ainda precisa voltar para o pool.
func (e *Engine) releaser(req Request, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), 2*time.Second)
			defer cancel()
			if err := e.Slots.Release(ctx, req.ClientID, req.Endpoint, token); err != nil {
				e.logger().Warn("falha ao liberar slot; lease vai expirar sozinho",
					zap.String("client_id", req.ClientID),
					zap.String("endpoint", req.Endpoint),
					zap.Error(err))
			}
		})
	}
}

// failOpen registra exatamente um evento StoreError e deixa passar.
func (e *Engine) failOpen(ctx context.Context, req Request, effective domain.PriorityLevel, err error) (domain.Decision, func()) {
	e.logger().Warn("store indisponível; aplicando fail-open",
		zap.String("client_id", req.ClientID),
		zap.String("endpoint", req.Endpoint),
		zap.Error(err))
	e.record(ctx, domain.EventStoreError, req, effective, err.Error())
	return domain.Decision{
		Allowed:   true,
		Remaining: -1,
		Reason:    domain.ReasonStoreError,
	}, noopRelease
}

// record emite telemetria best-effort; erro do sink nunca muda a decisão.
func (e *Engine) record(ctx context.Context, kind domain.EventKind, req Request, effective domain.PriorityLevel, details string) {
	if e.Stats == nil {
		return
	}
	ev := domain.Event{
		Kind:     kind,
		ClientID: req.ClientID,
		Priority: effective,
		Endpoint: req.Endpoint,
		Details:  details,
		At:       e.now(),
	}
	if err := e.Stats.Record(ctx, ev); err != nil {
		e.logger().Debug("falha ao registrar telemetria", zap.Error(err))
	}
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

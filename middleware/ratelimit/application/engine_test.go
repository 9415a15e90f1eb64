package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"priority-gateway/middleware/ratelimit/config"
	"priority-gateway/middleware/ratelimit/domain"
	"priority-gateway/middleware/ratelimit/infra"
)

// countingStore embrulha um CounterStore contando toda ida ao backend.
type countingStore struct {
	inner domain.CounterStore
	calls atomic.Int64
}

func (c *countingStore) IncrWindow(ctx context.Context, key domain.CounterKey, ttl time.Duration) (int64, error) {
	c.calls.Add(1)
	return c.inner.IncrWindow(ctx, key, ttl)
}

func (c *countingStore) SegmentIncr(ctx context.Context, keys []domain.CounterKey, oldestWeight float64, limit int64, ttl time.Duration) (bool, float64, error) {
	c.calls.Add(1)
	return c.inner.SegmentIncr(ctx, keys, oldestWeight, limit, ttl)
}

func (c *countingStore) TakeToken(ctx context.Context, key domain.CounterKey, capacity, refillPerSec float64, now time.Time, ttl time.Duration) (bool, float64, error) {
	c.calls.Add(1)
	return c.inner.TakeToken(ctx, key, capacity, refillPerSec, now, ttl)
}

func (c *countingStore) AppendLog(ctx context.Context, key domain.CounterKey, now time.Time, window time.Duration, limit int64) (bool, int64, time.Time, error) {
	c.calls.Add(1)
	return c.inner.AppendLog(ctx, key, now, window, limit)
}

func (c *countingStore) AcquireSlot(ctx context.Context, key domain.CounterKey, token string, maxSlots int64, lease time.Duration, now time.Time) (bool, int64, error) {
	c.calls.Add(1)
	return c.inner.AcquireSlot(ctx, key, token, maxSlots, lease, now)
}

func (c *countingStore) ReleaseSlot(ctx context.Context, key domain.CounterKey, token string) error {
	c.calls.Add(1)
	return c.inner.ReleaseSlot(ctx, key, token)
}

// failStore simula backend fora do ar em todas as operações.
type failStore struct{}

func (failStore) IncrWindow(context.Context, domain.CounterKey, time.Duration) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}

func (failStore) SegmentIncr(context.Context, []domain.CounterKey, float64, int64, time.Duration) (bool, float64, error) {
	return false, 0, domain.ErrStoreUnavailable
}

func (failStore) TakeToken(context.Context, domain.CounterKey, float64, float64, time.Time, time.Duration) (bool, float64, error) {
	return false, 0, domain.ErrStoreUnavailable
}

func (failStore) AppendLog(context.Context, domain.CounterKey, time.Time, time.Duration, int64) (bool, int64, time.Time, error) {
	return false, 0, time.Time{}, domain.ErrStoreUnavailable
}

func (failStore) AcquireSlot(context.Context, domain.CounterKey, string, int64, time.Duration, time.Time) (bool, int64, error) {
	return false, 0, domain.ErrStoreUnavailable
}

func (failStore) ReleaseSlot(context.Context, domain.CounterKey, string) error {
	return domain.ErrStoreUnavailable
}

func engineLimits() config.Limits {
	return config.Limits{
		Tiers: map[string]config.TierPolicy{
			"trial": {Limit: 2, Window: time.Minute, Algorithm: "fixed_window"},
		},
		Endpoints: map[string]map[string]config.TierPolicy{
			"/api/heavy": {
				"trial": {Limit: 100, Window: time.Minute, Algorithm: "fixed_window", MaxConcurrent: 1, SlotLease: 30 * time.Second},
			},
		},
		Segments: 10,
		CacheTTL: 30 * time.Second,
	}
}

func newTestEngine(store domain.CounterStore, clock domain.Clock, stats domain.TelemetryStore) *Engine {
	return &Engine{
		Authorizer: &Authorizer{Stats: stats, Clock: clock},
		Resolver:   NewResolver(config.StaticProvider(engineLimits()), clock),
		Engines:    infra.NewEngineSet(store, 10),
		Slots:      infra.SlotEngine{Store: store, Clock: clock},
		Stats:      stats,
		Clock:      clock,
	}
}

func TestDecideBypassNaoVaiAoStore(t *testing.T) {
	clock := infra.NewManualClock(time.Unix(1_700_000_000, 0))
	cs := &countingStore{inner: infra.NewMemoryStore(infra.WithClock(clock))}
	stats := infra.NewMemoryTelemetry()
	e := newTestEngine(cs, clock, stats)

	dec, release := e.Decide(context.Background(), Request{
		ClientID: "cli-high",
		Endpoint: "/api",
		Tier:     domain.TierCritical,
		Priority: domain.PriorityHigh,
	})
	release()

	if !dec.Allowed || dec.Reason != domain.ReasonPriorityBypass {
		t.Fatalf("bypass esperado, veio %+v", dec)
	}
	if dec.Remaining != -1 {
		t.Fatalf("bypass não tem remaining aplicável, veio %d", dec.Remaining)
	}
	if n := cs.calls.Load(); n != 0 {
		t.Fatalf("bypass não pode tocar o store, houve %d chamadas", n)
	}
	if stats.Count(domain.EventBypassed) != 1 {
		t.Fatalf("esperava 1 evento bypassed, veio %d", stats.Count(domain.EventBypassed))
	}
}

func TestDecidePermiteENega(t *testing.T) {
	clock := infra.NewManualClock(time.Unix(1_700_000_000, 0))
	store := infra.NewMemoryStore(infra.WithClock(clock))
	stats := infra.NewMemoryTelemetry()
	e := newTestEngine(store, clock, stats)

	req := Request{ClientID: "cli-1", Endpoint: "/api", Tier: domain.TierTrial, Priority: domain.PriorityLow}

	for i := 0; i < 2; i++ {
		dec, release := e.Decide(context.Background(), req)
		release()
		if !dec.Allowed {
			t.Fatalf("requisição %d dentro do limite foi negada: %+v", i+1, dec)
		}
	}

	dec, release := e.Decide(context.Background(), req)
	release()
	if dec.Allowed {
		t.Fatalf("terceira requisição deveria estourar o limite 2")
	}
	if dec.Reason != domain.ReasonLimitExceeded {
		t.Fatalf("reason = %q, esperava limit_exceeded", dec.Reason)
	}
	if dec.RetryAfter <= 0 {
		t.Fatalf("negativa precisa informar retry-after, veio %v", dec.RetryAfter)
	}

	if stats.Count(domain.EventAllowed) != 2 || stats.Count(domain.EventDenied) != 1 {
		t.Fatalf("telemetria: allowed=%d denied=%d, esperava 2/1",
			stats.Count(domain.EventAllowed), stats.Count(domain.EventDenied))
	}
}

func TestDecideFailOpenComUmEventoSo(t *testing.T) {
	clock := infra.NewManualClock(time.Unix(1_700_000_000, 0))
	stats := infra.NewMemoryTelemetry()
	e := newTestEngine(failStore{}, clock, stats)

	dec, release := e.Decide(context.Background(), Request{
		ClientID: "cli-1",
		Endpoint: "/api",
		Tier:     domain.TierTrial,
		Priority: domain.PriorityLow,
	})
	release()

	if !dec.Allowed {
		t.Fatalf("store caído tem que fail-open, veio %+v", dec)
	}
	if dec.Reason != domain.ReasonStoreError {
		t.Fatalf("reason = %q, esperava store_error", dec.Reason)
	}
	if n := stats.Count(domain.EventStoreError); n != 1 {
		t.Fatalf("exatamente 1 evento store_error por requisição, veio %d", n)
	}
	// fail-open não conta como allowed na telemetria
	if n := stats.Count(domain.EventAllowed); n != 0 {
		t.Fatalf("fail-open não gera evento allowed, veio %d", n)
	}
}

func TestDecideComSlotsComposeELibera(t *testing.T) {
	clock := infra.NewManualClock(time.Unix(1_700_000_000, 0))
	store := infra.NewMemoryStore(infra.WithClock(clock))
	stats := infra.NewMemoryTelemetry()
	e := newTestEngine(store, clock, stats)

	req := Request{ClientID: "cli-1", Endpoint: "/api/heavy", Tier: domain.TierTrial, Priority: domain.PriorityLow}

	dec1, release1 := e.Decide(context.Background(), req)
	if !dec1.Allowed {
		t.Fatalf("primeiro slot deveria ser concedido: %+v", dec1)
	}

	// slot único ocupado: passa no limite de taxa, barra na concorrência
	dec2, release2 := e.Decide(context.Background(), req)
	release2()
	if dec2.Allowed {
		t.Fatalf("segundo slot não deveria existir com max_concurrent=1")
	}
	if dec2.Reason != domain.ReasonNoSlots {
		t.Fatalf("reason = %q, esperava concurrency_exhausted", dec2.Reason)
	}
	if dec2.RetryAfter != 30*time.Second {
		t.Fatalf("retry-after da negativa de slot = %v, esperava o lease", dec2.RetryAfter)
	}

	release1()
	release1() // idempotente

	dec3, release3 := e.Decide(context.Background(), req)
	release3()
	if !dec3.Allowed {
		t.Fatalf("slot liberado deveria voltar ao pool: %+v", dec3)
	}
}

func TestDecideLeaseVencidoRecuperaSlot(t *testing.T) {
	clock := infra.NewManualClock(time.Unix(1_700_000_000, 0))
	store := infra.NewMemoryStore(infra.WithClock(clock))
	stats := infra.NewMemoryTelemetry()
	e := newTestEngine(store, clock, stats)

	req := Request{ClientID: "cli-1", Endpoint: "/api/heavy", Tier: domain.TierTrial, Priority: domain.PriorityLow}

	dec1, _ := e.Decide(context.Background(), req) // nunca libera
	if !dec1.Allowed {
		t.Fatalf("primeiro slot deveria ser concedido: %+v", dec1)
	}

	clock.Advance(31 * time.Second) // lease de 30s venceu

	dec2, release2 := e.Decide(context.Background(), req)
	release2()
	if !dec2.Allowed {
		t.Fatalf("lease vencido tinha que liberar o slot: %+v", dec2)
	}
}

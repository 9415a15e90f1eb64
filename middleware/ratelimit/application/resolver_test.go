package application

import (
	"testing"
	"time"

	"priority-gateway/middleware/ratelimit/config"
	"priority-gateway/middleware/ratelimit/domain"
	"priority-gateway/middleware/ratelimit/infra"
)

func testLimits() config.Limits {
	return config.Limits{
		Tiers: map[string]config.TierPolicy{
			"trial":    {Limit: 10, Window: time.Minute, Algorithm: "fixed_window"},
			"standard": {Limit: 60, Window: time.Minute, Algorithm: "sliding_window"},
			"premium":  {Limit: 240, Window: time.Minute, Algorithm: "token_bucket", BurstMultiplier: 1.5},
		},
		Endpoints: map[string]map[string]config.TierPolicy{
			"/api/heavy": {
				"standard": {Limit: 5, Window: time.Minute, Algorithm: "sliding_log", MaxConcurrent: 2, SlotLease: 30 * time.Second},
			},
		},
		Multipliers: map[string]float64{
			"background": 0.2,
			"low":        1.0,
			"medium":     2.0,
		},
		Segments: 10,
		CacheTTL: 30 * time.Second,
	}
}

func newTestResolver(l config.Limits) *Resolver {
	return NewResolver(config.StaticProvider(l), infra.NewManualClock(time.Unix(1_700_000_000, 0)))
}

func TestResolveHighViraBypass(t *testing.T) {
	r := newTestResolver(testLimits())

	p := r.Resolve(domain.TierCritical, domain.PriorityHigh, "/api")
	if !p.Bypass {
		t.Fatalf("prioridade high tem que resolver para bypass")
	}
	if p.Limit != 0 {
		t.Fatalf("política de bypass não carrega limite, veio %d", p.Limit)
	}
}

func TestResolveAplicaMultiplicador(t *testing.T) {
	r := newTestResolver(testLimits())

	casos := []struct {
		prio  domain.PriorityLevel
		limit int64
	}{
		{domain.PriorityBackground, 12}, // 60 * 0.2
		{domain.PriorityLow, 60},
		{domain.PriorityMedium, 120}, // 60 * 2.0
	}
	for _, c := range casos {
		p := r.Resolve(domain.TierStandard, c.prio, "/api")
		if p.Limit != c.limit {
			t.Fatalf("prioridade %v: limite = %d, esperava %d", c.prio, p.Limit, c.limit)
		}
		if p.Algorithm != domain.AlgoSlidingWindow {
			t.Fatalf("prioridade %v: algoritmo = %v, esperava sliding_window", c.prio, p.Algorithm)
		}
	}
}

func TestResolveLimiteNuncaAbaixoDeUm(t *testing.T) {
	l := testLimits()
	l.Tiers["trial"] = config.TierPolicy{Limit: 3, Window: time.Minute, Algorithm: "fixed_window"}
	r := newTestResolver(l)

	// floor(3 * 0.2) = 0, mas limite zero significaria negar tudo
	p := r.Resolve(domain.TierTrial, domain.PriorityBackground, "/api")
	if p.Limit != 1 {
		t.Fatalf("limite escalado abaixo de 1 tem que virar 1, veio %d", p.Limit)
	}
}

func TestResolveOverridePorEndpoint(t *testing.T) {
	r := newTestResolver(testLimits())

	p := r.Resolve(domain.TierStandard, domain.PriorityLow, "/api/heavy")
	if p.Limit != 5 || p.Algorithm != domain.AlgoSlidingLog {
		t.Fatalf("override de endpoint não aplicado: %+v", p)
	}
	if p.MaxConcurrent != 2 || p.SlotLease != 30*time.Second {
		t.Fatalf("limite de concorrência do override perdido: %+v", p)
	}

	// endpoint com override mas sem o tier cai na tabela base do tier
	p = r.Resolve(domain.TierPremium, domain.PriorityLow, "/api/heavy")
	if p.Limit != 240 {
		t.Fatalf("tier fora do override usa a tabela base, veio %d", p.Limit)
	}
}

func TestResolveTierDesconhecidoCaiNoMaisRestritivo(t *testing.T) {
	// tabela crua sem nenhum tier (sem passar pela normalização do loader)
	fp := &fakeProvider{snap: config.Snapshot{Version: 1, Limits: config.Limits{CacheTTL: time.Second}}}
	r := NewResolver(fp, infra.NewManualClock(time.Unix(1_700_000_000, 0)))

	p := r.Resolve(domain.TierCritical, domain.PriorityLow, "/api")
	def := config.DefaultLimits().Tiers["trial"]
	if p.Limit != def.Limit || p.Window != def.Window {
		t.Fatalf("tier ausente na tabela cai na política trial padrão, veio %+v", p)
	}
}

func TestResolveCacheInvalidaPorVersao(t *testing.T) {
	fp := &fakeProvider{snap: config.Snapshot{Version: 1, Limits: testLimits()}}
	r := NewResolver(fp, infra.NewManualClock(time.Unix(1_700_000_000, 0)))

	p := r.Resolve(domain.TierStandard, domain.PriorityLow, "/api")
	if p.Limit != 60 {
		t.Fatalf("limite inicial = %d, esperava 60", p.Limit)
	}

	l2 := testLimits()
	tp := l2.Tiers["standard"]
	tp.Limit = 90
	l2.Tiers["standard"] = tp
	fp.snap = config.Snapshot{Version: 2, Limits: l2}

	p = r.Resolve(domain.TierStandard, domain.PriorityLow, "/api")
	if p.Limit != 90 {
		t.Fatalf("snapshot novo não invalidou o cache: limite = %d", p.Limit)
	}
}

type fakeProvider struct {
	snap config.Snapshot
}

func (f *fakeProvider) Current() config.Snapshot { return f.snap }

package application

import (
	"math"
	"sync"
	"time"

	"priority-gateway/middleware/ratelimit/config"
	"priority-gateway/middleware/ratelimit/domain"
)

// SnapshotProvider entrega a visão vigente das tabelas de limites.
type SnapshotProvider interface {
	Current() config.Snapshot
}

// Resolver mapeia (tier, prioridade efetiva, endpoint) para a política
// concreta da requisição.
//
// Prioridade High vira bypass puro, decidido antes de qualquer tabela:
// o tratamento é "pula os engines", não "limite gigante" (evita qualquer
// aritmética de overflow). As demais prioridades escalam o limite base
// pelo multiplicador configurado.
//
// O resultado é cacheado por (tier, prioridade, endpoint) com TTL curto,
// read-through: miss resolve sincronamente uma única vez. Entrada de
// cache presa a uma versão de snapshot antiga é descartada, então troca
// de configuração aparece dentro do TTL de releitura do Provider.
type Resolver struct {
	Provider SnapshotProvider
	Clock    domain.Clock

	mu    sync.Mutex
	cache map[resolveKey]resolveEntry
}

type resolveKey struct {
	tier     domain.ClientTier
	priority domain.PriorityLevel
	endpoint string
}

type resolveEntry struct {
	policy  domain.Policy
	version int64
	at      time.Time
}

func NewResolver(provider SnapshotProvider, clock domain.Clock) *Resolver {
	return &Resolver{
		Provider: provider,
		Clock:    clock,
		cache:    make(map[resolveKey]resolveEntry),
	}
}

func (r *Resolver) Resolve(tier domain.ClientTier, priority domain.PriorityLevel, endpoint string) domain.Policy {
	if priority == domain.PriorityHigh {
		return domain.Policy{Bypass: true}
	}

	snap := r.Provider.Current()
	now := r.now()
	key := resolveKey{tier: tier, priority: priority, endpoint: endpoint}

	r.mu.Lock()
	if ent, ok := r.cache[key]; ok && ent.version == snap.Version && now.Sub(ent.at) < snap.Limits.CacheTTL {
		r.mu.Unlock()
		return ent.policy
	}
	r.mu.Unlock()

	policy := r.build(snap.Limits, tier, priority, endpoint)

	r.mu.Lock()
	r.cache[key] = resolveEntry{policy: policy, version: snap.Version, at: now}
	r.mu.Unlock()
	return policy
}

func (r *Resolver) build(limits config.Limits, tier domain.ClientTier, priority domain.PriorityLevel, endpoint string) domain.Policy {
	base, ok := lookupBase(limits, tier, endpoint)
	if !ok {
		// combinação desconhecida cai na política mais restritiva
		// conhecida (equivalente a trial), nunca em "ilimitado"
		base = config.DefaultLimits().Tiers["trial"]
	}

	mult := limits.Multipliers[priority.String()]
	if mult <= 0 {
		mult = 1.0
	}
	limit := int64(math.Floor(float64(base.Limit) * mult))
	if limit < 1 {
		limit = 1
	}

	return domain.Policy{
		Limit:           limit,
		Window:          base.Window,
		BurstMultiplier: base.BurstMultiplier,
		Algorithm:       domain.ParseAlgorithm(base.Algorithm),
		MaxConcurrent:   base.MaxConcurrent,
		SlotLease:       base.SlotLease,
	}
}

func lookupBase(limits config.Limits, tier domain.ClientTier, endpoint string) (config.TierPolicy, bool) {
	if byTier, ok := limits.Endpoints[endpoint]; ok {
		if p, ok := byTier[tier.String()]; ok {
			return p, true
		}
	}
	p, ok := limits.Tiers[tier.String()]
	return p, ok
}

func (r *Resolver) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

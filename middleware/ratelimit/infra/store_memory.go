package infra

import (
	"context"
	"time"

	"sync"

	"priority-gateway/middleware/ratelimit/domain"
)

// MemoryStore é o CounterStore em processo: um mapa protegido por mutex
// com expiração preguiçosa (leitura de entrada vencida se comporta como
// ausente).
//
// Serve para testes, desenvolvimento e deploy de instância única. Para
// limite global entre réplicas, use o RedisStore. Como tudo roda em
// memória, segurar o mutex durante a operação inteira é barato e garante
// a atomicidade exigida pelo contrato.
type MemoryStore struct {
	clock domain.Clock

	mu       sync.Mutex
	counters map[string]*memCounter
	buckets  map[string]*memBucket
	logs     map[string]*memLog
	slots    map[string]map[string]time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

type memBucket struct {
	tokens     float64
	lastRefill time.Time
	expiresAt  time.Time
}

type memLog struct {
	events    []time.Time
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

// WithClock injeta o relógio (ManualClock nos testes).
func WithClock(c domain.Clock) MemoryStoreOption {
	return func(s *MemoryStore) { s.clock = c }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		clock:    SystemClock{},
		counters: make(map[string]*memCounter),
		buckets:  make(map[string]*memBucket),
		logs:     make(map[string]*memLog),
		slots:    make(map[string]map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) IncrWindow(_ context.Context, key domain.CounterKey, ttl time.Duration) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	c := s.counters[k]
	if c == nil || now.After(c.expiresAt) {
		c = &memCounter{}
		s.counters[k] = c
	}
	c.count++
	c.expiresAt = now.Add(ttl)
	return c.count, nil
}

func (s *MemoryStore) SegmentIncr(_ context.Context, keys []domain.CounterKey, oldestWeight float64, limit int64, ttl time.Duration) (bool, float64, error) {
	if len(keys) == 0 {
		return true, 0, nil
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	weighted := 0.0
	for i, key := range keys {
		c := s.counters[key.String()]
		if c == nil || now.After(c.expiresAt) {
			continue
		}
		if i == 0 {
			weighted += float64(c.count) * oldestWeight
		} else {
			weighted += float64(c.count)
		}
	}

	if weighted >= float64(limit) {
		return false, weighted, nil
	}

	k := keys[len(keys)-1].String()
	c := s.counters[k]
	if c == nil || now.After(c.expiresAt) {
		c = &memCounter{}
		s.counters[k] = c
	}
	c.count++
	c.expiresAt = now.Add(ttl)
	return true, weighted, nil
}

func (s *MemoryStore) TakeToken(_ context.Context, key domain.CounterKey, capacity, refillPerSec float64, now time.Time, ttl time.Duration) (bool, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	b := s.buckets[k]
	if b == nil || now.After(b.expiresAt) {
		// primeiro acesso (ou estado expirado): bucket cheio, cliente frio
		// não pode ser negado de cara
		b = &memBucket{tokens: capacity, lastRefill: now}
		s.buckets[k] = b
	} else {
		elapsed := now.Sub(b.lastRefill)
		if elapsed < 0 {
			elapsed = 0
		}
		b.tokens += elapsed.Seconds() * refillPerSec
		if b.tokens > capacity {
			b.tokens = capacity
		}
		b.lastRefill = now
	}
	b.expiresAt = now.Add(ttl)

	if b.tokens >= 1 {
		b.tokens--
		return true, b.tokens, nil
	}
	return false, b.tokens, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, key domain.CounterKey, now time.Time, window time.Duration, limit int64) (bool, int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	l := s.logs[k]
	if l == nil || now.After(l.expiresAt) {
		l = &memLog{}
		s.logs[k] = l
	}

	// poda: eventos com idade >= window saem do log
	cutoff := now.Add(-window)
	valid := 0
	for valid < len(l.events) && !l.events[valid].After(cutoff) {
		valid++
	}
	if valid > 0 {
		l.events = l.events[valid:]
	}

	allowed := int64(len(l.events)) < limit
	if allowed {
		l.events = append(l.events, now)
	}
	l.expiresAt = now.Add(window + window)

	var oldest time.Time
	if len(l.events) > 0 {
		oldest = l.events[0]
	}
	return allowed, int64(len(l.events)), oldest, nil
}

func (s *MemoryStore) AcquireSlot(_ context.Context, key domain.CounterKey, token string, maxSlots int64, lease time.Duration, now time.Time) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	m := s.slots[k]
	if m == nil {
		m = make(map[string]time.Time)
		s.slots[k] = m
	}
	// leases vencidos contam como livres (dono morreu sem Release)
	for tok, exp := range m {
		if now.After(exp) {
			delete(m, tok)
		}
	}

	if int64(len(m)) >= maxSlots {
		return false, int64(len(m)), nil
	}
	m[token] = now.Add(lease)
	return true, int64(len(m)), nil
}

func (s *MemoryStore) ReleaseSlot(_ context.Context, key domain.CounterKey, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.slots[key.String()]
	if m == nil {
		return domain.ErrSlotNotHeld
	}
	if _, ok := m[token]; !ok {
		return domain.ErrSlotNotHeld
	}
	delete(m, token)
	return nil
}

// Cleanup remove entradas vencidas. A expiração preguiçosa já garante a
// semântica; isto só devolve memória de chaves que pararam de receber
// tráfego.
func (s *MemoryStore) Cleanup() {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, k)
		}
	}
	for k, b := range s.buckets {
		if now.After(b.expiresAt) {
			delete(s.buckets, k)
		}
	}
	for k, l := range s.logs {
		if now.After(l.expiresAt) {
			delete(s.logs, k)
		}
	}
	for k, m := range s.slots {
		for tok, exp := range m {
			if now.After(exp) {
				delete(m, tok)
			}
		}
		if len(m) == 0 {
			delete(s.slots, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves vencidas
// periodicamente. Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

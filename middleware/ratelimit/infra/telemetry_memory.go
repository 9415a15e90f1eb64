package infra

import (
	"context"
	"sync"

	"priority-gateway/middleware/ratelimit/domain"
)

// MemoryTelemetry acumula contadores de eventos em memória.
// Útil para testes e desenvolvimento; não expira e não serve produção.
type MemoryTelemetry struct {
	mu     sync.Mutex
	byKind map[domain.EventKind]int64
	byKey  map[string]int64

	trackKeys bool
}

type MemoryTelemetryOption func(*MemoryTelemetry)

func WithTelemetryTrackKeys(track bool) MemoryTelemetryOption {
	return func(t *MemoryTelemetry) { t.trackKeys = track }
}

func NewMemoryTelemetry(opts ...MemoryTelemetryOption) *MemoryTelemetry {
	t := &MemoryTelemetry{
		byKind: make(map[domain.EventKind]int64),
		byKey:  make(map[string]int64),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTelemetry) Record(_ context.Context, ev domain.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byKind[ev.Kind]++
	if t.trackKeys && ev.ClientID != "" {
		t.byKey[ev.ClientID+":"+string(ev.Kind)]++
	}
	return nil
}

func (t *MemoryTelemetry) Count(kind domain.EventKind) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byKind[kind]
}

func (t *MemoryTelemetry) ByKind() map[domain.EventKind]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[domain.EventKind]int64, len(t.byKind))
	for k, v := range t.byKind {
		out[k] = v
	}
	return out
}

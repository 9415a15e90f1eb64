package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

func testEvent(kind domain.EventKind) domain.Event {
	return domain.Event{
		Kind:     kind,
		ClientID: "cli-1",
		Priority: domain.PriorityLow,
		Endpoint: "/api",
		At:       time.Unix(1_700_000_000, 0),
	}
}

func TestMemoryTelemetryContaPorKind(t *testing.T) {
	stats := NewMemoryTelemetry(WithTelemetryTrackKeys(true))
	ctx := context.Background()

	stats.Record(ctx, testEvent(domain.EventAllowed))
	stats.Record(ctx, testEvent(domain.EventAllowed))
	stats.Record(ctx, testEvent(domain.EventDenied))

	if n := stats.Count(domain.EventAllowed); n != 2 {
		t.Fatalf("allowed = %d, esperava 2", n)
	}
	if n := stats.Count(domain.EventDenied); n != 1 {
		t.Fatalf("denied = %d, esperava 1", n)
	}
	byKind := stats.ByKind()
	if byKind[domain.EventAllowed] != 2 || byKind[domain.EventDenied] != 1 {
		t.Fatalf("ByKind inconsistente: %v", byKind)
	}
}

type failSink struct{}

func (failSink) Record(context.Context, domain.Event) error {
	return errors.New("sink quebrado")
}

func TestMultiTelemetryEntregaParaTodosMesmoComFalha(t *testing.T) {
	a := NewMemoryTelemetry()
	b := NewMemoryTelemetry()
	multi := MultiTelemetry{a, failSink{}, nil, b}

	err := multi.Record(context.Background(), testEvent(domain.EventBypassed))
	if err == nil {
		t.Fatalf("falha de um sink tem que ser reportada")
	}
	if a.Count(domain.EventBypassed) != 1 || b.Count(domain.EventBypassed) != 1 {
		t.Fatalf("sinks saudáveis não receberam o evento")
	}
}

func TestLogTelemetryNaoFalha(t *testing.T) {
	sink := NewLogTelemetry(nil)
	ctx := context.Background()

	kinds := []domain.EventKind{
		domain.EventAllowed, domain.EventDenied, domain.EventBypassed,
		domain.EventStoreError, domain.EventPriorityClamped,
	}
	for _, k := range kinds {
		if err := sink.Record(ctx, testEvent(k)); err != nil {
			t.Fatalf("kind %s: %v", k, err)
		}
	}
}

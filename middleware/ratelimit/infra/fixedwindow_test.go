package infra

import (
	"context"
	"testing"
	"time"

	"priority-gateway/middleware/ratelimit/domain"
)

func alignedClock(window time.Duration) *ManualClock {
	return NewManualClock(time.Unix(1_700_000_000, 0).Truncate(window))
}

func TestFixedWindowLimiteDaJanela(t *testing.T) {
	clock := alignedClock(time.Minute)
	store := NewMemoryStore(WithClock(clock))
	eng := FixedWindow{Store: store}
	policy := domain.Policy{Limit: 3, Window: time.Minute, Algorithm: domain.AlgoFixedWindow}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		dec, err := eng.Check(ctx, "cli-1", "/api", policy, clock.Now())
		if err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
		if !dec.Allowed {
			t.Fatalf("requisição %d de 3 foi negada", i+1)
		}
		if dec.Remaining != policy.Limit-int64(i+1) {
			t.Fatalf("requisição %d: remaining = %d, esperava %d", i+1, dec.Remaining, policy.Limit-int64(i+1))
		}
	}

	dec, err := eng.Check(ctx, "cli-1", "/api", policy, clock.Now())
	if err != nil {
		t.Fatalf("check 4: %v", err)
	}
	if dec.Allowed {
		t.Fatalf("quarta requisição deveria estourar o limite")
	}
	if dec.Reason != domain.ReasonLimitExceeded {
		t.Fatalf("reason = %q", dec.Reason)
	}
	if dec.RetryAfter != time.Minute {
		t.Fatalf("no início da janela o retry é a janela inteira, veio %v", dec.RetryAfter)
	}
}

func TestFixedWindowRajadaNaFronteira(t *testing.T) {
	// fraqueza intrínseca do algoritmo: 2× o limite cruzando a fronteira
	clock := alignedClock(time.Minute)
	store := NewMemoryStore(WithClock(clock))
	eng := FixedWindow{Store: store}
	policy := domain.Policy{Limit: 3, Window: time.Minute, Algorithm: domain.AlgoFixedWindow}
	ctx := context.Background()

	clock.Advance(59 * time.Second)
	for i := 0; i < 3; i++ {
		dec, _ := eng.Check(ctx, "cli-1", "/api", policy, clock.Now())
		if !dec.Allowed {
			t.Fatalf("fim da janela: requisição %d negada", i+1)
		}
	}

	clock.Advance(2 * time.Second) // cruzou para a janela seguinte
	for i := 0; i < 3; i++ {
		dec, _ := eng.Check(ctx, "cli-1", "/api", policy, clock.Now())
		if !dec.Allowed {
			t.Fatalf("início da janela nova: requisição %d negada", i+1)
		}
	}
}

func TestFixedWindowChavesIndependentes(t *testing.T) {
	clock := alignedClock(time.Minute)
	store := NewMemoryStore(WithClock(clock))
	eng := FixedWindow{Store: store}
	policy := domain.Policy{Limit: 1, Window: time.Minute, Algorithm: domain.AlgoFixedWindow}
	ctx := context.Background()

	if dec, _ := eng.Check(ctx, "cli-a", "/api", policy, clock.Now()); !dec.Allowed {
		t.Fatalf("cli-a negado")
	}
	if dec, _ := eng.Check(ctx, "cli-a", "/api", policy, clock.Now()); dec.Allowed {
		t.Fatalf("cli-a acima do limite deveria ser negado")
	}
	// outro cliente e outro endpoint não compartilham contador
	if dec, _ := eng.Check(ctx, "cli-b", "/api", policy, clock.Now()); !dec.Allowed {
		t.Fatalf("cli-b não pode herdar o contador de cli-a")
	}
	if dec, _ := eng.Check(ctx, "cli-a", "/outro", policy, clock.Now()); !dec.Allowed {
		t.Fatalf("endpoint diferente não pode herdar o contador")
	}
}

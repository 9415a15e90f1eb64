package infra

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"priority-gateway/middleware/ratelimit/domain"
)

// LogTelemetry escreve eventos no log estruturado. Eventos de store_error
// passam por um rate.Limiter próprio: store fora do ar gera um erro por
// requisição e sem freio isso afoga o log.
type LogTelemetry struct {
	logger     *zap.Logger
	errLimiter *rate.Limiter
}

func NewLogTelemetry(logger *zap.Logger) *LogTelemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTelemetry{
		logger:     logger,
		errLimiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

func (t *LogTelemetry) Record(_ context.Context, ev domain.Event) error {
	fields := []zap.Field{
		zap.String("client", ev.ClientID),
		zap.String("priority", ev.Priority.String()),
		zap.String("endpoint", ev.Endpoint),
		zap.String("details", ev.Details),
	}

	switch ev.Kind {
	case domain.EventStoreError:
		if t.errLimiter.Allow() {
			t.logger.Error("store indisponível, decisão fail-open", fields...)
		}
	case domain.EventDenied:
		t.logger.Info("requisição limitada", fields...)
	case domain.EventPriorityClamped:
		t.logger.Warn("prioridade rebaixada", fields...)
	default:
		t.logger.Debug("decisão", append(fields, zap.String("kind", string(ev.Kind)))...)
	}
	return nil
}

// MultiTelemetry distribui o mesmo evento para vários sinks, best-effort:
// falha de um não impede os demais.
type MultiTelemetry []domain.TelemetryStore

func (m MultiTelemetry) Record(ctx context.Context, ev domain.Event) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"priority-gateway/middleware/ratelimit/domain"
)

// RedisTelemetry espelha os eventos de decisão em hashes no Redis:
// total acumulado, série por minuto e (opcional) por cliente.
//
// Cuidado com cardinalidade ao ligar trackKeys: chave de cliente sem
// controle explode o número de hashes.
type RedisTelemetry struct {
	rdb *redis.Client

	prefix string
	// ttl aplica nas chaves por minuto e por cliente; o total é
	// cumulativo e não expira.
	ttl time.Duration

	trackKeys bool
}

type RedisTelemetryOption func(*RedisTelemetry)

func WithRedisTelemetryPrefix(prefix string) RedisTelemetryOption {
	return func(t *RedisTelemetry) { t.prefix = strings.Trim(prefix, ":") }
}

func WithRedisTelemetryTTL(d time.Duration) RedisTelemetryOption {
	return func(t *RedisTelemetry) { t.ttl = d }
}

func WithRedisTelemetryTrackKeys(track bool) RedisTelemetryOption {
	return func(t *RedisTelemetry) { t.trackKeys = track }
}

func NewRedisTelemetry(rdb *redis.Client, opts ...RedisTelemetryOption) *RedisTelemetry {
	t := &RedisTelemetry{
		rdb:    rdb,
		prefix: "prioritygate:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RedisTelemetry) Record(ctx context.Context, ev domain.Event) error {
	if t == nil || t.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Kind) + ":" + ev.Priority.String()

	pipe := t.rdb.Pipeline()
	pipe.HIncrBy(ctx, t.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", t.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if t.ttl > 0 {
		pipe.Expire(ctx, bucketKey, t.ttl)
	}

	if ev.Endpoint != "" {
		pipe.HIncrBy(ctx, t.prefix+":endpoint", ev.Endpoint+":"+string(ev.Kind), 1)
	}

	if t.trackKeys {
		if k := strings.TrimSpace(ev.ClientID); k != "" {
			keyKey := t.prefix + ":client:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if t.ttl > 0 {
				pipe.Expire(ctx, keyKey, t.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

package infra

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"priority-gateway/middleware/ratelimit/domain"
)

//go:embed lua/incr_window.lua
var incrWindowScript string

//go:embed lua/segment_incr.lua
var segmentIncrScript string

//go:embed lua/token_bucket.lua
var tokenBucketScript string

//go:embed lua/sliding_log.lua
var slidingLogScript string

//go:embed lua/slot_acquire.lua
var slotAcquireScript string

// RedisStore é o CounterStore distribuído: cada operação do contrato é um
// script Lua executado via EVALSHA, então o ciclo ler-calcular-escrever é
// atômico no servidor e seguro com várias instâncias do gateway
// compartilhando o mesmo Redis.
//
// Toda chamada tem timeout próprio; estourar o prazo equivale a store
// indisponível (o composite engine decide fail-open a partir disso).
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration

	incrWindowSHA  string
	segmentIncrSHA string
	tokenBucketSHA string
	slidingLogSHA  string
	slotAcquireSHA string
}

type RedisStoreOption func(*RedisStore)

// WithPrefix muda o prefixo das chaves (padrão "prioritygate:").
func WithPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTimeout limita cada ida ao Redis (padrão 2s).
func WithTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore valida a conexão e pré-carrega os scripts.
//
// Se o Redis reiniciar e perder o cache de scripts, as operações passam a
// devolver NOSCRIPT (tratado como indisponibilidade); recriar o store
// recarrega tudo.
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) (*RedisStore, error) {
	s := &RedisStore{
		client:  client,
		prefix:  "prioritygate:",
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	scripts := []struct {
		body string
		dst  *string
	}{
		{incrWindowScript, &s.incrWindowSHA},
		{segmentIncrScript, &s.segmentIncrSHA},
		{tokenBucketScript, &s.tokenBucketSHA},
		{slidingLogScript, &s.slidingLogSHA},
		{slotAcquireScript, &s.slotAcquireSHA},
	}
	for _, sc := range scripts {
		sha, err := client.ScriptLoad(ctx, sc.body).Result()
		if err != nil {
			return nil, fmt.Errorf("redis script load: %w", err)
		}
		*sc.dst = sha
	}
	return s, nil
}

func (s *RedisStore) key(k domain.CounterKey) string {
	return s.prefix + k.String()
}

func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStoreUnavailable, err))
}

func (s *RedisStore) IncrWindow(ctx context.Context, key domain.CounterKey, ttl time.Duration) (int64, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.client.EvalSha(opCtx, s.incrWindowSHA, []string{s.key(key)}, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, storeErr("redis incr window", err)
	}
	count, ok := res.(int64)
	if !ok {
		return 0, storeErr("redis incr window", fmt.Errorf("resposta inesperada %T", res))
	}
	return count, nil
}

func (s *RedisStore) SegmentIncr(ctx context.Context, keys []domain.CounterKey, oldestWeight float64, limit int64, ttl time.Duration) (bool, float64, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.key(k)
	}
	res, err := s.client.EvalSha(opCtx, s.segmentIncrSHA, names, oldestWeight, limit, ttl.Milliseconds()).Result()
	if err != nil {
		return false, 0, storeErr("redis segment incr", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, storeErr("redis segment incr", fmt.Errorf("resposta inesperada %T", res))
	}
	allowed, _ := values[0].(int64)
	return allowed == 1, redisFloat(values[1]), nil
}

func (s *RedisStore) TakeToken(ctx context.Context, key domain.CounterKey, capacity, refillPerSec float64, now time.Time, ttl time.Duration) (bool, float64, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	nowSec := float64(now.UnixMicro()) / 1e6
	res, err := s.client.EvalSha(opCtx, s.tokenBucketSHA, []string{s.key(key)},
		capacity, refillPerSec, nowSec, ttl.Milliseconds()).Result()
	if err != nil {
		return false, 0, storeErr("redis take token", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, storeErr("redis take token", fmt.Errorf("resposta inesperada %T", res))
	}
	allowed, _ := values[0].(int64)
	return allowed == 1, redisFloat(values[1]), nil
}

func (s *RedisStore) AppendLog(ctx context.Context, key domain.CounterKey, now time.Time, window time.Duration, limit int64) (bool, int64, time.Time, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	// membro único: vários eventos podem cair no mesmo micro
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()[:8]
	res, err := s.client.EvalSha(opCtx, s.slidingLogSHA, []string{s.key(key)},
		now.UnixMicro(), window.Microseconds(), limit, (window + window).Milliseconds(), member).Result()
	if err != nil {
		return false, 0, time.Time{}, storeErr("redis append log", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, time.Time{}, storeErr("redis append log", fmt.Errorf("resposta inesperada %T", res))
	}
	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)

	var oldest time.Time
	if us := int64(redisFloat(values[2])); us > 0 {
		oldest = time.UnixMicro(us)
	}
	return allowed == 1, count, oldest, nil
}

func (s *RedisStore) AcquireSlot(ctx context.Context, key domain.CounterKey, token string, maxSlots int64, lease time.Duration, now time.Time) (bool, int64, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.client.EvalSha(opCtx, s.slotAcquireSHA, []string{s.key(key)},
		now.UnixMicro(), maxSlots, lease.Microseconds(), token, (lease + lease).Milliseconds()).Result()
	if err != nil {
		return false, 0, storeErr("redis acquire slot", err)
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, storeErr("redis acquire slot", fmt.Errorf("resposta inesperada %T", res))
	}
	allowed, _ := values[0].(int64)
	active, _ := values[1].(int64)
	return allowed == 1, active, nil
}

func (s *RedisStore) ReleaseSlot(ctx context.Context, key domain.CounterKey, token string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	removed, err := s.client.ZRem(opCtx, s.key(key), token).Result()
	if err != nil {
		return storeErr("redis release slot", err)
	}
	if removed == 0 {
		return domain.ErrSlotNotHeld
	}
	return nil
}

// redisFloat converte os retornos heterogêneos de script Lua
// (int64/string/float) para float64.
func redisFloat(val interface{}) float64 {
	switch v := val.(type) {
	case int64:
		return float64(v)
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

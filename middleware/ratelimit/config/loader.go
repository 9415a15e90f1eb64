package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PRIORITYGATE"

// maxReloadInterval limita a staleness do snapshot de limites.
const maxReloadInterval = 5 * time.Minute

// Load lê a configuração do arquivo (quando informado) com overrides de
// ambiente PRIORITYGATE_*. Arquivo ausente sem path explícito não é erro:
// os defaults valem sozinhos.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("lendo config %q: %w", path, err)
		}
	} else {
		v.SetConfigName("gateway")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/priority-gateway")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("lendo config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decodificando config: %w", err)
	}
	cfg.Limits = normalizeLimits(cfg.Limits)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.client_header", "X-Client-Id")
	v.SetDefault("server.tier_header", "X-Client-Tier")
	v.SetDefault("server.priority_header", "X-Priority")
	v.SetDefault("server.trust_xff", false)
	v.SetDefault("server.add_headers", true)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.prefix", "prioritygate")
	v.SetDefault("store.redis.timeout", 2*time.Second)

	v.SetDefault("telemetry.redis_enabled", false)
	v.SetDefault("telemetry.prefix", "prioritygate:stats")
	v.SetDefault("telemetry.ttl", 24*time.Hour)
	v.SetDefault("telemetry.track_keys", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}

// DefaultLimits são as tabelas usadas quando o arquivo não define nada.
// Também servem de fallback mais restritivo (trial) para tier/endpoint
// desconhecido — nunca "ilimitado".
func DefaultLimits() Limits {
	return Limits{
		Tiers: map[string]TierPolicy{
			"trial":    {Limit: 10, Window: time.Minute, BurstMultiplier: 1.0, Algorithm: "fixed_window"},
			"standard": {Limit: 60, Window: time.Minute, BurstMultiplier: 1.0, Algorithm: "sliding_window"},
			"premium":  {Limit: 240, Window: time.Minute, BurstMultiplier: 1.5, Algorithm: "token_bucket"},
			"critical": {Limit: 1200, Window: time.Minute, BurstMultiplier: 2.0, Algorithm: "token_bucket"},
		},
		Endpoints: map[string]map[string]TierPolicy{},
		Multipliers: map[string]float64{
			"background": 0.2,
			"low":        1.0,
			"medium":     2.0,
		},
		Segments:       10,
		CacheTTL:       30 * time.Second,
		ReloadInterval: time.Minute,
	}
}

// normalizeLimits completa campos ausentes com os defaults e aplica o teto
// de releitura.
func normalizeLimits(l Limits) Limits {
	def := DefaultLimits()

	if l.Tiers == nil {
		l.Tiers = def.Tiers
	} else {
		for name, d := range def.Tiers {
			got, ok := l.Tiers[name]
			if !ok {
				l.Tiers[name] = d
				continue
			}
			l.Tiers[name] = normalizeTierPolicy(got, d)
		}
	}
	if l.Endpoints == nil {
		l.Endpoints = def.Endpoints
	}
	if l.Multipliers == nil {
		l.Multipliers = def.Multipliers
	} else {
		for name, m := range def.Multipliers {
			if _, ok := l.Multipliers[name]; !ok {
				l.Multipliers[name] = m
			}
		}
	}
	if l.Segments < 2 {
		l.Segments = def.Segments
	}
	if l.CacheTTL <= 0 {
		l.CacheTTL = def.CacheTTL
	}
	if l.ReloadInterval <= 0 {
		l.ReloadInterval = def.ReloadInterval
	}
	if l.ReloadInterval > maxReloadInterval {
		l.ReloadInterval = maxReloadInterval
	}
	return l
}

func normalizeTierPolicy(p, def TierPolicy) TierPolicy {
	if p.Limit <= 0 {
		p.Limit = def.Limit
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if p.BurstMultiplier <= 0 {
		p.BurstMultiplier = def.BurstMultiplier
	}
	if strings.TrimSpace(p.Algorithm) == "" {
		p.Algorithm = def.Algorithm
	}
	if p.MaxConcurrent < 0 {
		p.MaxConcurrent = 0
	}
	if p.MaxConcurrent > 0 && p.SlotLease <= 0 {
		p.SlotLease = 30 * time.Second
	}
	return p
}

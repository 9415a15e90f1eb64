// Package config carrega a configuração do gateway (arquivo YAML + env)
// e fornece snapshots versionados das tabelas de limites.
//
// O core nunca lê configuração global mutável: a camada application recebe
// um Provider e enxerga apenas snapshots imutáveis, re-lidos num intervalo
// limitado (consistência eventual dentro do TTL).
package config

import "time"

// TierPolicy é a política base de um tier para um endpoint.
type TierPolicy struct {
	Limit           int64         `mapstructure:"limit"`
	Window          time.Duration `mapstructure:"window"`
	BurstMultiplier float64       `mapstructure:"burst_multiplier"`
	Algorithm       string        `mapstructure:"algorithm"`
	MaxConcurrent   int64         `mapstructure:"max_concurrent"`
	SlotLease       time.Duration `mapstructure:"slot_lease"`
}

// Limits reúne as tabelas consumidas pelo policy resolver.
type Limits struct {
	// Tiers: política base por tier (chaves: trial/standard/premium/critical).
	Tiers map[string]TierPolicy `mapstructure:"tiers"`
	// Endpoints: override por endpoint → tier. Endpoint ausente usa Tiers.
	Endpoints map[string]map[string]TierPolicy `mapstructure:"endpoints"`
	// Multipliers: fator por prioridade (background/low/medium). High não
	// tem multiplicador: é bypass no resolver, nunca um número gigante.
	Multipliers map[string]float64 `mapstructure:"multipliers"`
	// Segments: granularidade da sliding window segmentada.
	Segments int `mapstructure:"segments"`
	// CacheTTL: validade do cache de resolução (tier, prioridade, endpoint).
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// ReloadInterval: intervalo de releitura do snapshot. Limitado a 5min.
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// ServerConfig configura o binário gateway (fora do core de decisão).
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	Upstream        string        `mapstructure:"upstream"`
	ClientHeader    string        `mapstructure:"client_header"`
	TierHeader      string        `mapstructure:"tier_header"`
	PriorityHeader  string        `mapstructure:"priority_header"`
	TrustXFF        bool          `mapstructure:"trust_xff"`
	AddHeaders      bool          `mapstructure:"add_headers"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig aponta para o backend compartilhado de contadores.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StoreConfig escolhe o backend do CounterStore.
type StoreConfig struct {
	// Backend: "memory" (single-instance/dev) ou "redis" (cluster).
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// TelemetryConfig controla os sinks de eventos.
type TelemetryConfig struct {
	RedisEnabled bool          `mapstructure:"redis_enabled"`
	Prefix       string        `mapstructure:"prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	TrackKeys    bool          `mapstructure:"track_keys"`
}

// LoggingConfig configura o zap do binário.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Config é a configuração completa do gateway.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Limits    Limits          `mapstructure:"limits"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"priority-gateway/middleware/ratelimit"
	"priority-gateway/middleware/ratelimit/application"
	"priority-gateway/middleware/ratelimit/config"
	"priority-gateway/middleware/ratelimit/domain"
	"priority-gateway/middleware/ratelimit/infra"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Reverse proxy com rate limit multi-algoritmo e prioridades",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), configPath, cfg)
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "caminho do arquivo de configuração YAML")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, cfg config.Config) error {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Server.Upstream == "" {
		return errors.New("server.upstream é obrigatório")
	}
	target, err := url.Parse(cfg.Server.Upstream)
	if err != nil {
		return fmt.Errorf("server.upstream inválido: %w", err)
	}

	clock := infra.SystemClock{}

	store, closeStore, err := buildStore(cfg.Store, clock, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if ms, ok := store.(*infra.MemoryStore); ok {
		ms.StartJanitor(ctx, time.Minute)
	}

	stats, closeStats, err := buildTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStats()

	// o provider re-lê o mesmo arquivo da carga inicial; mudança de limites
	// entra sem restart, dentro do reload_interval
	provider := config.NewProvider(func() (config.Limits, error) {
		c, err := config.Load(configPath)
		if err != nil {
			return config.Limits{}, err
		}
		return c.Limits, nil
	}, cfg.Limits.ReloadInterval, clock, logger)

	engine := &application.Engine{
		Authorizer: &application.Authorizer{Stats: stats, Clock: clock},
		Resolver:   application.NewResolver(provider, clock),
		Engines:    infra.NewEngineSet(store, cfg.Limits.Segments),
		Slots:      infra.SlotEngine{Store: store, Clock: clock},
		Stats:      stats,
		Clock:      clock,
		Logger:     logger,
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("erro no proxy", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Engine:              engine,
			ClientHeader:        cfg.Server.ClientHeader,
			TierHeader:          cfg.Server.TierHeader,
			PriorityHeader:      cfg.Server.PriorityHeader,
			TrustXForwardedFor:  cfg.Server.TrustXFF,
			AddRateLimitHeaders: cfg.Server.AddHeaders,
		}))
		r.Handle("/*", proxy)
	})

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway no ar",
		zap.String("listen", cfg.Server.Listen),
		zap.String("upstream", target.String()),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("telemetry_redis", cfg.Telemetry.RedisEnabled))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level inválido: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func buildStore(cfg config.StoreConfig, clock domain.Clock, logger *zap.Logger) (domain.CounterStore, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		return infra.NewMemoryStore(infra.WithClock(clock)), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err := infra.NewRedisStore(client,
			infra.WithPrefix(cfg.Redis.Prefix+":"),
			infra.WithTimeout(cfg.Redis.Timeout))
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("store redis: %w", err)
		}
		logger.Info("store redis conectado", zap.String("addr", cfg.Redis.Addr))
		return store, func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("store.backend desconhecido %q", cfg.Backend)
}

func buildTelemetry(cfg config.Config, logger *zap.Logger) (domain.TelemetryStore, func(), error) {
	sinks := infra.MultiTelemetry{infra.NewLogTelemetry(logger)}
	closeFn := func() {}

	if cfg.Telemetry.RedisEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("telemetria redis: %w", err)
		}
		sinks = append(sinks, infra.NewRedisTelemetry(client,
			infra.WithRedisTelemetryPrefix(cfg.Telemetry.Prefix),
			infra.WithRedisTelemetryTTL(cfg.Telemetry.TTL),
			infra.WithRedisTelemetryTrackKeys(cfg.Telemetry.TrackKeys)))
		closeFn = func() { _ = client.Close() }
	}
	return sinks, closeFn, nil
}

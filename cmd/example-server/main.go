package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"priority-gateway/middleware/ratelimit"
	"priority-gateway/middleware/ratelimit/application"
	"priority-gateway/middleware/ratelimit/config"
	"priority-gateway/middleware/ratelimit/infra"
)

func main() {
	// Exemplo: injetando o middleware diretamente no seu webserver, sem o
	// binário gateway (store em memória, limites padrão).
	clock := infra.SystemClock{}
	store := infra.NewMemoryStore(infra.WithClock(clock))
	stats := infra.NewMemoryTelemetry()
	provider := config.StaticProvider(config.DefaultLimits())

	engine := &application.Engine{
		Authorizer: &application.Authorizer{Stats: stats, Clock: clock},
		Resolver:   application.NewResolver(provider, clock),
		Engines:    infra.NewEngineSet(store, config.DefaultLimits().Segments),
		Slots:      infra.SlotEngine{Store: store, Clock: clock},
		Stats:      stats,
		Clock:      clock,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = ratelimit.Middleware(ratelimit.Options{
		Engine:              engine,
		ClientHeader:        "X-Client-Id", // ou vazio para usar IP
		TierHeader:          "X-Client-Tier",
		PriorityHeader:      "X-Priority",
		TrustXForwardedFor:  true,
		AddRateLimitHeaders: true,
	})(h)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

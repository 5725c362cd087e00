// Package main is the entry point for the workshop API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"workshop/internal/app"
	"workshop/internal/config"
	"workshop/internal/domain/auth"
	"workshop/internal/infrastructure/cache"
	v1 "workshop/internal/infrastructure/http/v1"
	"workshop/internal/infrastructure/http/v1/handlers"
	"workshop/internal/infrastructure/http/v1/middleware"
	"workshop/internal/infrastructure/storage/postgres"
	"workshop/internal/jobs"
	"workshop/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger("workshop-api"))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting workshop server", "version", cfg.Version, "env", cfg.AppEnv)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.Pool("workshop-api"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Redis: price cache, idempotency, job queue ---
	rdb := redis.NewClient(cfg.RedisOptions())
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnw("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
	}

	priceCache := cache.NewPriceCache(rdb, cfg.Workshop.PriceCacheTTL)
	listener := cache.NewPriceListener(pool.Unwrap(), priceCache)
	listener.Start(ctx)
	defer listener.Stop()

	queue := jobs.NewClient(cfg.AsynqRedis())
	defer func() { _ = queue.Close() }()

	// --- Services ---
	services, err := app.New(cfg, pool, app.Deps{PriceCache: priceCache, Dispatcher: queue})
	if err != nil {
		log.Fatalw("failed to wire services", "error", err)
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		postgres.NewPoolCollector(pool.Unwrap()),
	)

	// --- Router ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	jwtCfg.AccessTokenTTL = cfg.JWT.TTL

	routerCfg := v1.RouterConfig{
		Logger:         log,
		JWTValidator:   auth.NewJWTService(jwtCfg),
		Metrics:        middleware.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Health:         handlers.NewHealthHandler(pool.Unwrap(), rdb, cfg.Version),
		Services:       services.HTTP(),
	}
	if cfg.IsDevelopment() {
		routerCfg.Mode = "debug"
	}
	if cfg.HTTP.Idempotency {
		routerCfg.Idempotency = cache.NewIdempotencyStore(rdb, 0)
	}
	router, err := v1.NewRouter(routerCfg)
	if err != nil {
		log.Fatalw("failed to build router", "error", err)
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	postgres.LogPoolStats(logger.WithLogger(shutdownCtx, log), pool.Unwrap())
	log.Info("server stopped")
}

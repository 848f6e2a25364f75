// Package main is the entry point for the farmacia pricing API server.
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
	"github.com/redis/go-redis/v9"

	"farmacia/internal/config"
	"farmacia/internal/domain/pricing"
	v1 "farmacia/internal/infrastructure/http/v1"
	"farmacia/internal/infrastructure/http/v1/handlers"
	"farmacia/internal/infrastructure/http/v1/middleware"
	"farmacia/internal/infrastructure/cache"
	"farmacia/internal/infrastructure/metrics"
	"farmacia/internal/infrastructure/storage/postgres"
	"farmacia/internal/infrastructure/storage/postgres/pricing_repo"
	"farmacia/pkg/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDev(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting farmacia pricing server", "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.URL)
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	poolCfg.MaxConnLifetime = cfg.DB.ConnMaxLifetime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool, postgres.WithStatementTimeout(cfg.DB.StatementTimeout))

	// --- Repositories ---
	configRepo := pricing_repo.NewConfigRepo(txm)
	var configs pricing.ConfigStore = configRepo

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = rdb.Close() }()
		configs = cache.NewCategoryCache(configRepo, rdb, cfg.Redis.CategoryTTL)
		log.Infow("category cache enabled", "ttl", cfg.Redis.CategoryTTL)
	}

	history := pricing_repo.NewHistoryRepo(txm)

	auditor, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	// --- Metrics ---
	bulkMetrics := metrics.NewBulkMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterPoolCollector(prometheus.DefaultRegisterer, pool)

	// --- Pricing service ---
	service := pricing.NewService(pricing.ServiceConfig{
		Configs:       configs,
		Entities:      pricing_repo.NewEntityRepo(txm),
		History:       history,
		HistoryReader: history,
		TxManager:     txm,
		Auditor:       auditor,
		Observer:      bulkMetrics,
		BulkWorkers:   cfg.Pricing.BulkWorkers,
	})

	// --- Router ---
	checks := map[string]handlers.Pinger{
		"database": handlers.PingFunc(pool.Ping),
	}
	if rdb != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	var keys middleware.IdempotencyKeys
	if cfg.Idempotency.Enabled {
		keys = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
		log.Infow("idempotency enabled", "ttl", cfg.Idempotency.TTL)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Service:      service,
		Logger:       log,
		HealthChecks: checks,
		Idempotency:  keys,
		Gatherer:     prometheus.DefaultGatherer,
		Debug:        cfg.App.IsDev(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Bulk runs in flight get the same window as ordinary requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	pool.LogStats(ctx)
	log.Info("server stopped")
}

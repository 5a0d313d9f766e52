// Command planner serves the grade planning API: stateless plans, plans for
// stored students, and the student record endpoints.
//
// Usage:
//
//	go run ./cmd/planner [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner/cache"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner/handler"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/records"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/migrations"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting planner service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	table := grading.DefaultTable()
	settings, err := planner.SettingsFromConfig(table, cfg.Planner)
	if err != nil {
		slog.Error("invalid planner config", "error", err)
		os.Exit(1)
	}

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	startupRetry := resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}
	checker := health.NewChecker()

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres connect", startupRetry, func() error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		slog.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	checker.Register("postgres", health.PingCheck(db, false))

	var planCache *cache.PlanCache
	if cfg.Redis.Enabled {
		var redisClient *pkgredis.Client
		err = resilience.Retry(ctx, "redis connect", startupRetry, func() error {
			var err error
			redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, plan caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			planCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient, true))
			slog.Info("plan cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	if planCache == nil {
		planCache = cache.New(nil, 0, m)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PlanEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000, 100, time.Second)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.PlanEvents)

	store := records.NewStore(db, table)
	recordService := records.NewService(store, table, db.QueryTimeout(), collector, m)

	planHandler := handler.New(table, settings, handler.Deps{
		Cache:   planCache,
		Loader:  recordService,
		Tracker: collector,
		Metrics: m,
		Tracer:  tracing.NewTracer(cfg.Tracing),
	})

	mux := http.NewServeMux()
	planHandler.RegisterRoutes(mux)
	records.NewHandler(recordService).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	middlewares := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Window)
		defer limiter.Close()
		middlewares = append(middlewares, middleware.RateLimit(limiter, cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	middlewares = append(middlewares, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middlewares...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("planner service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("planner service stopped")
}

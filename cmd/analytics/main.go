// Command analytics starts the standalone analytics aggregation service.
//
// It consumes plan and record events from Kafka, aggregates them in memory
// (plan counts, cache hit rate, latency percentiles, popular targets),
// snapshots the counters to PostgreSQL, and serves GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-port 8081]
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
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/migrations"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8081, "HTTP port, overriding server.port")
	snapshotEvery := flag.Duration("snapshot", time.Minute, "interval between stats snapshots")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Server.Port = *port

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()

	var db *postgres.Client
	err = resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() error {
		var err error
		db, err = postgres.New(ctx, cfg.Postgres)
		return err
	})
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		store := aggregator.NewStore(db)
		if snap, err := store.LatestSnapshot(ctx); err != nil {
			slog.Warn("loading latest snapshot failed", "error", err)
		} else if snap != nil {
			agg.Seed(*snap)
			slog.Info("aggregator seeded from snapshot", "total_plans", snap.TotalPlans)
		}
		store.StartPeriodicSave(ctx, agg, *snapshotEvery)
		checker.Register("postgres", health.PingCheck(db, true))
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.PlanEvents, false, agg.HandleMessage)
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.PlanEvents)

	mux := http.NewServeMux()
	analytics.NewHandler(agg).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// Command analytics aggregates search events published by searchers.
//
// It consumes the analytics-events Kafka topic, keeps running totals,
// latency percentiles, top queries and zero-result queries in memory, and
// serves them at GET /api/v1/analytics. When PostgreSQL is reachable the
// totals are snapshotted periodically and restored on start.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml] [-snapshot 1m]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	snapshotEvery := flag.Duration("snapshot", time.Minute, "interval between postgres snapshots (0 disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *snapshotEvery); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config, snapshotEvery time.Duration) error {
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	agg := analytics.NewAggregator()
	checker := health.NewChecker(5 * time.Second)
	g, gctx := errgroup.WithContext(ctx)

	if snapshotEvery > 0 {
		db, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{MaxAttempts: 3})
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db.DB)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			saved, err := store.LatestSnapshot(ctx)
			if err != nil {
				return err
			}
			if saved != nil {
				agg.Restore(*saved)
				slog.Info("restored analytics snapshot", "total_searches", saved.TotalSearches)
			}
			checker.RegisterOptional("postgres", db.Ping)
			g.Go(func() error {
				store.Run(gctx, agg, snapshotEvery)
				return nil
			})
		}
	}

	events := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	g.Go(func() error {
		if err := events.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("analytics consumer: %w", err)
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Recover,
			middleware.Metrics(m, "/api/v1/analytics"),
			middleware.Logging,
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Command searcher serves document search over HTTP.
//
// It loads the corpus from a directory or a PostgreSQL table, answers
// GET /api/v1/search from an in-memory index snapshot, caches responses in
// memory or Redis, drops its snapshot when an invalidation event arrives on
// Kafka or the corpus directory changes, and publishes one analytics event
// per search.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docrank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"corpus_backend", cfg.Corpus.Backend,
		"cache_backend", cfg.Cache.Backend,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker(5 * time.Second)

	src, closeSource, err := openSource(ctx, cfg, checker)
	if err != nil {
		return err
	}
	defer closeSource()

	engine := indexer.NewEngine(src, cfg.Index, indexer.WithMetrics(m))
	exec := executor.New(engine, cfg.Search, cfg.Scoring, executor.WithMetrics(m))
	if _, err := exec.Rebuild(ctx); err != nil {
		// Searches retry the build; the service starts without a snapshot.
		slog.Warn("initial index build failed", "error", err)
	} else {
		d := exec.Describe()
		slog.Info("index built",
			"documents", d.TotalDocuments,
			"vocabulary", d.VocabularySize,
			"generation", d.Generation,
		)
	}
	checker.Register("index", func(context.Context) error {
		if !exec.Ready() {
			return errors.New("no index snapshot")
		}
		return nil
	})

	var (
		searcher   cache.Searcher = exec
		queryCache *cache.QueryCache
	)
	if cfg.Cache.Enabled {
		store, closeStore := openCacheStore(ctx, cfg, m, checker)
		defer closeStore()
		queryCache = cache.New(exec, store, cache.WithMetrics(m))
		searcher = queryCache
		slog.Info("search cache enabled", "backend", store.Name(), "ttl", cfg.Cache.TTL)
	}

	g, gctx := errgroup.WithContext(ctx)

	var tracker handler.Tracker
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, kafka.WithAsync())
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{}, m)
		collector.Start(gctx)
		defer collector.Close()
		tracker = collector

		invalidations := consumer.New(kafka.NewConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.IndexInvalidate,
			consumer.HandleMessage(searcher),
		))
		g.Go(func() error {
			if err := invalidations.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("invalidate consumer stopped", "error", err)
			}
			return nil
		})
		checker.RegisterOptional("kafka", func(context.Context) error { return nil })
	}

	if cfg.Watch.Enabled {
		dirSrc, ok := src.(*corpus.DirSource)
		if !ok {
			slog.Warn("corpus watch requires the dir backend, skipping", "backend", cfg.Corpus.Backend)
		} else {
			watcher, err := corpus.NewWatcher(dirSrc.Dir(), cfg.Watch.Debounce, dirSrc.Matches, func() {
				searcher.Invalidate(gctx, "watch")
			})
			if err != nil {
				return fmt.Errorf("starting corpus watcher: %w", err)
			}
			g.Go(func() error { return watcher.Run(gctx) })
		}
	}

	mux := http.NewServeMux()
	handler.New(searcher, exec, queryCache, tracker, cfg.Search.Timeout).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Recover,
		middleware.Metrics(m, handler.Routes...),
		middleware.Logging,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.Server.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openSource builds the configured corpus source. The returned close
// function is always non-nil.
func openSource(ctx context.Context, cfg *config.Config, checker *health.Checker) (corpus.Source, func(), error) {
	switch cfg.Corpus.Backend {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Postgres, resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond})
		if err != nil {
			return nil, nil, err
		}
		checker.Register("postgres", db.Ping)
		return corpus.NewPostgresSource(db.DB, cfg.Corpus.Table), func() { _ = db.Close() }, nil
	case "dir", "":
		return corpus.NewDirSource(cfg.Corpus.Dir, cfg.Corpus.Extensions), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus backend %q", cfg.Corpus.Backend)
	}
}

// openCacheStore returns the Redis store when configured and reachable,
// falling back to the in-process LRU otherwise.
func openCacheStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (cache.Store, func()) {
	memory := func() (cache.Store, func()) {
		return cache.NewMemoryStore(cfg.Cache.Size, cfg.Cache.TTL), func() {}
	}
	if cfg.Cache.Backend != "redis" {
		return memory()
	}

	client, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, using in-memory cache", "addr", cfg.Redis.Addr, "error", err)
		return memory()
	}
	breaker := resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     10 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	checker.RegisterOptional("redis", client.Ping)
	return cache.NewRedisStore(client, breaker, cache.DefaultKeyPrefix, cfg.Cache.TTL), func() { _ = client.Close() }
}

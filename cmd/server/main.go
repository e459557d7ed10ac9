// Command server runs the audio fingerprint matching service: song
// ingestion, the inverted-index matcher, text search, and analytics behind
// one HTTP API.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/alakazam-audio/alakazam/internal/analytics"
	"github.com/alakazam-audio/alakazam/internal/auth"
	"github.com/alakazam-audio/alakazam/internal/catalog"
	"github.com/alakazam-audio/alakazam/internal/fingerprint"
	"github.com/alakazam-audio/alakazam/internal/indexer"
	"github.com/alakazam-audio/alakazam/internal/matcher"
	"github.com/alakazam-audio/alakazam/internal/postings"
	"github.com/alakazam-audio/alakazam/internal/server"
	"github.com/alakazam-audio/alakazam/internal/textindex"
	"github.com/alakazam-audio/alakazam/pkg/config"
	"github.com/alakazam-audio/alakazam/pkg/health"
	"github.com/alakazam-audio/alakazam/pkg/kafka"
	"github.com/alakazam-audio/alakazam/pkg/logger"
	"github.com/alakazam-audio/alakazam/pkg/metrics"
	"github.com/alakazam-audio/alakazam/pkg/middleware"
	"github.com/alakazam-audio/alakazam/pkg/postgres"
	pkgredis "github.com/alakazam-audio/alakazam/pkg/redis"
)

const snapshotName = "postings.snap"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("main")

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()

	// Storage. Redis is the primary store; when it is unreachable the
	// service runs embedded with in-memory stores persisted via posting
	// snapshots.
	var (
		cat       catalog.Store
		index     postings.Index
		text      textindex.Index
		engine    server.MatchEngine
		memIndex  *postings.MemoryIndex
		redisConn *pkgredis.Client
	)
	redisConn, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, running embedded with in-memory stores", "error", err)
		memCat := catalog.NewMemoryStore()
		memIndex = postings.NewMemoryIndex()
		snapPath := filepath.Join(cfg.Indexer.SnapshotDir, snapshotName)
		if err := postings.ReadSnapshot(context.Background(), memIndex, snapPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn("could not load posting snapshot", "path", snapPath, "error", err)
			}
		} else {
			log.Info("posting snapshot loaded", "path", snapPath, "hashes", memIndex.HashCount())
		}
		cat = memCat
		index = memIndex
		text = textindex.NewMemoryIndex()
	} else {
		defer redisConn.Close()
		cat = catalog.NewRedisStore(redisConn)
		index = postings.NewRedisIndex(redisConn)
		text = textindex.NewRedisIndex(redisConn)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisConn.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	base := matcher.New(index, cat, cfg.Matcher.MaxConcurrentLookups,
		matcher.WithMetrics(m),
		matcher.WithMaxResults(cfg.Matcher.MaxResults),
	)
	engine = base

	indexerOpts := []indexer.Option{
		indexer.WithTextIndex(text),
		indexer.WithMetrics(m),
	}
	if redisConn != nil {
		cached := matcher.NewCachedMatcher(base, redisConn, cfg.Redis.CacheTTL, m)
		engine = cached
		indexerOpts = append(indexerOpts, indexer.WithInvalidator(cached))
	}
	ingest := indexer.New(cat, index, cfg.Indexer.MaxConcurrentAppends, indexerOpts...)

	// Postgres backs API key auth; without it the API is open but still
	// rate-limited per client address.
	var keys *auth.KeyStore
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Warn("postgres unavailable, API key auth disabled", "error", err)
	} else {
		defer pg.Close()
		keys = auth.NewKeyStore(pg, 30*time.Second)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pg.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	limiter := auth.NewRateLimiter()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverOpts := []server.Option{
		server.WithTextSearch(text),
		server.WithHealth(checker),
	}

	// Analytics pipeline: events out through Kafka, aggregates back in
	// through a consumer in the same process.
	var collector *analytics.Collector
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 1024)
		aggregator := analytics.NewAggregator()
		consumer := aggregator.Consumer(cfg.Kafka)
		go func() {
			if err := consumer.Start(rootCtx); err != nil {
				log.Error("analytics consumer stopped", "error", err)
			}
		}()
		serverOpts = append(serverOpts, server.WithAnalytics(collector, aggregator))
	}

	if cfg.Fingerprinter.Addr != "" {
		fp, err := fingerprint.NewClient(cfg.Fingerprinter.Addr, cfg.Fingerprinter.CallTimeout, m)
		if err != nil {
			log.Warn("fingerprinter unavailable, audio endpoints disabled", "error", err)
		} else {
			defer fp.Close()
			serverOpts = append(serverOpts, server.WithFingerprinter(fp))
			checker.Register("fingerprinter", func(ctx context.Context) health.ComponentHealth {
				if err := fp.HealthCheck(ctx); err != nil {
					return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
				}
				return health.ComponentHealth{Status: health.StatusUp}
			})
		}
	}

	api := server.New(ingest, engine, cat, serverOpts...)

	handler := middleware.RequestID(
		middleware.Tracing(
			middleware.Metrics(m)(
				middleware.Timeout(cfg.Server.WriteTimeout)(
					middleware.CORS(
						server.Auth(keys, limiter)(api.Routes()),
					),
				),
			),
		),
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if collector != nil {
		collector.Close()
	}
	if memIndex != nil {
		if err := postings.WriteSnapshot(shutdownCtx, memIndex, cfg.Indexer.SnapshotDir, snapshotName); err != nil {
			log.Error("failed to write posting snapshot", "error", err)
		} else {
			log.Info("posting snapshot written", "dir", cfg.Indexer.SnapshotDir)
		}
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			log.Error("metrics shutdown failed", "error", err)
		}
	}
	log.Info("server stopped")
	return nil
}

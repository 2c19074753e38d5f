// Package server wires the search engine, the query cache and the note
// files into one HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Phil-Holland/notes-serve/internal/analytics"
	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/searcher"
	"github.com/Phil-Holland/notes-serve/internal/searcher/cache"
	"github.com/Phil-Holland/notes-serve/internal/searcher/handler"
	"github.com/Phil-Holland/notes-serve/pkg/config"
	"github.com/Phil-Holland/notes-serve/pkg/health"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
	"github.com/Phil-Holland/notes-serve/pkg/middleware"
	pkgredis "github.com/Phil-Holland/notes-serve/pkg/redis"
	"github.com/Phil-Holland/notes-serve/pkg/resilience"
)

const (
	cacheCallTimeout    = 250 * time.Millisecond
	analyticsBufferSize = 10000
)

type Server struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	engine    *searcher.Engine
	files     *handler.Files
	redis     *pkgredis.Client
	collector *analytics.Collector
	handler   http.Handler
	logger    *slog.Logger
}

// New assembles the server around a committed index. Redis is optional:
// when it cannot be reached the server runs without a query cache. The
// collector goroutine runs until ctx ends or Close is called. m may be nil.
func New(ctx context.Context, cfg *config.Config, idx *indexer.Index, m *metrics.Metrics) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		metrics: m,
		engine:  searcher.New(idx, searcher.WithMetrics(m)),
		logger:  slog.Default().With("component", "server"),
	}

	files, err := handler.NewFiles(cfg.Notes.HTMLDir, cfg.Notes.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("opening note files: %w", err)
	}
	s.files = files

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		s.redis = connectRedis(ctx, cfg.Redis)
		if s.redis != nil {
			queryCache = cache.New(cache.Guard(s.redis, cacheCallTimeout), s.engine.BuildID(), cfg.Redis.CacheTTL, m)
			s.logger.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	s.collector = analytics.NewCollector(aggregator, analyticsBufferSize)
	s.collector.Start(ctx)

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(idx))
	if s.redis != nil {
		checker.Register("redis", health.PingCheck(s.redis, health.StatusDegraded))
	} else if cfg.Redis.Enabled {
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "unreachable at startup, caching disabled"}
		})
	}

	h := handler.New(s.engine, queryCache, s.collector, cfg.Search.DefaultLimit, cfg.Search.MaxResults)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", h.Search)
	mux.HandleFunc("GET /api/v1/search", h.APISearch)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /notes/{path...}", files.Note)
	mux.HandleFunc("POST /notes/{path...}", files.Note)
	mux.HandleFunc("GET /static/{path...}", files.Static)
	mux.HandleFunc("GET /{$}", files.Index)
	mux.HandleFunc("GET /favicon.ico", files.Favicon)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.RequestID(chain)
	s.handler = chain

	return s, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) *pkgredis.Client {
	var client *pkgredis.Client
	err := resilience.Retry(ctx, "redis connect", resilience.Backoff{MaxAttempts: 3}, func(ctx context.Context) error {
		c, err := pkgredis.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "addr", cfg.Addr, "error", err)
		return nil
	}
	return client
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Engine() *searcher.Engine {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	var scrape *metrics.ScrapeServer
	if s.cfg.Metrics.Enabled {
		scrape = metrics.NewScrapeServer(s.cfg.Metrics.Port, s.engine.BuildID(), prometheus.DefaultGatherer)
		scrape.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("notes server listening", "addr", server.Addr, "build_id", s.engine.BuildID())
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
	}
	if scrape != nil {
		if err := scrape.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("metrics server shutdown error", "error", err)
		}
	}
	s.logger.Info("notes server stopped")
	return serveErr
}

// Close releases what New opened. The index itself belongs to the caller.
func (s *Server) Close() error {
	s.collector.Close()
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.files.Close())
	return errors.Join(errs...)
}

package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScrapeServer serves a gatherer on its own port, apart from the note
// server, so scrapes never queue behind search traffic.
type ScrapeServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewScrapeServer builds a scrape server for g. buildID is reported at the
// root path so a target can be matched to the index build it serves.
func NewScrapeServer(port int, buildID string, g prometheus.Gatherer) *ScrapeServer {
	return &ScrapeServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      scrapeMux(buildID, g),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "metrics"),
	}
}

type targetInfo struct {
	BuildID string `json:"build_id"`
	Metrics string `json:"metrics"`
}

func scrapeMux(buildID string, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(targetInfo{BuildID: buildID, Metrics: "/metrics"})
	})
	return mux
}

// Start listens in the background. Listen errors are logged, not returned.
func (s *ScrapeServer) Start() {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

func (s *ScrapeServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

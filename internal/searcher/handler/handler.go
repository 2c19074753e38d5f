// Package handler exposes the search engine and the rendered notes over
// HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Phil-Holland/notes-serve/internal/analytics"
	"github.com/Phil-Holland/notes-serve/internal/searcher"
	"github.com/Phil-Holland/notes-serve/internal/searcher/cache"
	apperrors "github.com/Phil-Holland/notes-serve/pkg/errors"
	"github.com/Phil-Holland/notes-serve/pkg/logger"
	"github.com/Phil-Holland/notes-serve/pkg/middleware"
)

// SearchEngine is implemented by *searcher.Engine.
type SearchEngine interface {
	Search(ctx context.Context, query string, limit int) ([]searcher.Result, bool)
	Validate(query string) error
}

type Handler struct {
	engine       SearchEngine
	cache        *cache.QueryCache
	collector    *analytics.Collector
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New returns a handler. queryCache and collector may be nil.
func New(engine SearchEngine, queryCache *cache.QueryCache, collector *analytics.Collector, defaultLimit, maxResults int) *Handler {
	return &Handler{
		engine:       engine,
		cache:        queryCache,
		collector:    collector,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

type SearchRequest struct {
	SearchTerm string `json:"search_term"`
}

type SearchResponse struct {
	Responses []searcher.Result `json:"responses"`
}

// APIResponse is the body of GET /api/v1/search.
type APIResponse struct {
	Query     string            `json:"query"`
	Valid     bool              `json:"valid"`
	Error     string            `json:"error,omitempty"`
	Responses []searcher.Result `json:"responses"`
}

// Search serves POST /search. A query that fails to parse or execute
// answers with an empty response list, never an error status.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}

	results, _ := h.search(r.Context(), req.SearchTerm, h.maxResults)
	if results == nil {
		results = []searcher.Result{}
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{Responses: results})
}

// APISearch serves GET /api/v1/search?q=&limit=.
func (h *Handler) APISearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, h.maxResults)
	}

	if err := h.engine.Validate(query); err != nil {
		h.writeJSON(w, apperrors.HTTPStatusCode(err), APIResponse{
			Query:     query,
			Valid:     false,
			Error:     err.Error(),
			Responses: []searcher.Result{},
		})
		return
	}

	results, ok := h.search(r.Context(), query, limit)
	if !ok {
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "search failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, APIResponse{
		Query:     query,
		Valid:     true,
		Responses: results,
	})
}

func (h *Handler) search(ctx context.Context, query string, limit int) ([]searcher.Result, bool) {
	start := time.Now()
	log := logger.FromContext(ctx)

	var (
		results  []searcher.Result
		ok       bool
		cacheHit bool
	)
	if h.cache != nil {
		results, ok, cacheHit = h.cache.GetOrCompute(ctx, query, limit, func(ctx context.Context) ([]searcher.Result, bool) {
			return h.engine.Search(ctx, query, limit)
		})
	} else {
		results, ok = h.engine.Search(ctx, query, limit)
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"ok", ok,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Query:     query,
			Valid:     ok,
			Returned:  len(results),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	return results, ok
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, apperrors.New(apperrors.ErrInternal, http.StatusInternalServerError, "cache invalidation failed"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Message})
}

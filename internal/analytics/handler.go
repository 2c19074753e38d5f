package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Phil-Holland/notes-serve/pkg/errors"
)

// StatsSource produces the current aggregate. *Aggregator is one.
type StatsSource interface {
	Stats() AggregatedStats
}

type Handler struct {
	source StatsSource
	logger *slog.Logger
}

func NewHandler(source StatsSource) *Handler {
	return &Handler{
		source: source,
		logger: slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics. The optional top parameter trims
// both query rankings.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := topQueriesLimit
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			appErr := apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "top must be a non-negative integer")
			h.write(w, apperrors.HTTPStatusCode(appErr), map[string]string{"error": appErr.Message})
			return
		}
		top = n
	}

	stats := h.source.Stats()
	stats.TopQueries = truncate(stats.TopQueries, top)
	stats.ZeroResultQueries = truncate(stats.ZeroResultQueries, top)
	h.write(w, http.StatusOK, stats)
}

func (h *Handler) write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write analytics response", "status", status, "error", err)
	}
}

func truncate(counts []QueryCount, n int) []QueryCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}

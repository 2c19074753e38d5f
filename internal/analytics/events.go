// Package analytics records what users search for and how the engine
// answers, in process, for the /api/v1/analytics endpoint.
package analytics

import "time"

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Query     string    `json:"query"`
	Valid     bool      `json:"valid"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

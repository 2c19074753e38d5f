// Package cache keeps successful search results in Redis so repeated
// queries skip execution.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Phil-Holland/notes-serve/internal/searcher"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
	pkgredis "github.com/Phil-Holland/notes-serve/pkg/redis"
	"github.com/Phil-Holland/notes-serve/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// SearchFunc computes results on a miss. ok false results are never cached.
type SearchFunc func(ctx context.Context) (results []searcher.Result, ok bool)

// QueryCache is keyed by build id, normalised query and limit, so a rebuilt
// index never sees results of an older build.
type QueryCache struct {
	store   Store
	buildID string
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, buildID string, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		buildID: buildID,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string, limit int) ([]searcher.Result, bool) {
	key := c.buildKey(query, limit)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		switch {
		case pkgredis.IsNilError(err):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache skipped", "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []searcher.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, query string, limit int, results []searcher.Result) {
	key := c.buildKey(query, limit)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns cached results or runs compute, collapsing
// concurrent misses for the same key into one call. cached reports whether
// the results came from the cache. compute runs detached from the
// cancellation of ctx, since callers that joined the flight share its result.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	limit int,
	compute SearchFunc,
) (results []searcher.Result, ok bool, cached bool) {
	if results, ok := c.Get(ctx, query, limit); ok {
		return results, true, true
	}

	type outcome struct {
		results []searcher.Result
		ok      bool
	}
	key := c.buildKey(query, limit)
	flightCtx := context.WithoutCancel(ctx)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		results, ok := compute(flightCtx)
		if ok {
			c.Set(flightCtx, query, limit, results)
		}
		return outcome{results: results, ok: ok}, nil
	})
	out := val.(outcome)
	return out.results, out.ok, false
}

// Invalidate drops every cached result of every build.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(query string, limit int) string {
	raw := fmt.Sprintf("%s|%s|limit=%d", c.buildID, normalizeQuery(query), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery collapses runs of whitespace outside phrases. Case and
// clause order are significant and kept.
func normalizeQuery(query string) string {
	var b strings.Builder
	inPhrase := false
	pendingSpace := false
	for _, r := range strings.TrimSpace(query) {
		if r == '"' {
			inPhrase = !inPhrase
		}
		if !inPhrase && (r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

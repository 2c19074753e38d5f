// Package searcher answers user queries against a committed note index.
package searcher

import (
	"context"
	"fmt"
	"time"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
	"github.com/Phil-Holland/notes-serve/internal/searcher/executor"
	"github.com/Phil-Holland/notes-serve/internal/searcher/parser"
	apperrors "github.com/Phil-Holland/notes-serve/pkg/errors"
	"github.com/Phil-Holland/notes-serve/pkg/logger"
	"github.com/Phil-Holland/notes-serve/pkg/metrics"
)

// Result is one ranked note.
type Result struct {
	File  string   `json:"file"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
	Score float64  `json:"score"`
}

// Engine is safe for concurrent use. It holds no mutable state.
type Engine struct {
	index    *indexer.Index
	parser   *parser.Parser
	executor *executor.Executor
	metrics  *metrics.Metrics
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an engine over idx. Unscoped clauses search every field and
// adjacent clauses are combined with AND.
func New(idx *indexer.Index, opts ...Option) *Engine {
	p := parser.New(schema.FieldFile, schema.FieldTitle, schema.FieldTags, schema.FieldContent)
	p.SetConjunctionByDefault()
	e := &Engine{
		index:    idx,
		parser:   p,
		executor: executor.New(idx),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildID identifies the index the engine searches.
func (e *Engine) BuildID() string {
	return e.index.BuildID()
}

// Validate reports whether query parses. The error wraps
// errors.ErrInvalidQuery and the parser's syntax error.
func (e *Engine) Validate(query string) error {
	if _, err := e.parser.Parse(query); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidQuery, err)
	}
	return nil
}

// Search runs query and returns at most limit results, best first. ok is
// false when the query does not parse or execution fails; a query that
// matches nothing returns an empty slice and true.
func (e *Engine) Search(ctx context.Context, query string, limit int) (results []Result, ok bool) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "search-engine")
	resultType := metrics.ResultError
	defer func() {
		e.record(resultType, start, len(results))
	}()

	q, err := e.parser.Parse(query)
	if err != nil {
		log.Debug("query rejected", "query", query, "error", err)
		resultType = metrics.ResultInvalid
		return nil, false
	}
	if limit <= 0 {
		resultType = metrics.ResultZero
		return []Result{}, true
	}

	res, err := e.executor.Execute(ctx, q, limit)
	if err != nil {
		log.Warn("query execution failed", "query", query, "error", err)
		return nil, false
	}

	results = make([]Result, 0, len(res.Results))
	for _, hit := range res.Results {
		doc, err := e.index.Stored(hit.DocID)
		if err != nil {
			log.Warn("skipping unreadable document", "doc_id", hit.DocID, "error", err)
			continue
		}
		results = append(results, Result{
			File:  doc.First(schema.FieldFile),
			Title: doc.First(schema.FieldTitle),
			Tags:  doc.All(schema.FieldTags),
			Score: hit.Score,
		})
	}

	resultType = metrics.ResultHit
	if len(results) == 0 {
		resultType = metrics.ResultZero
	}
	log.Debug("search completed",
		"query", query,
		"total_hits", res.TotalHits,
		"returned", len(results),
		"latency", time.Since(start),
	)
	return results, true
}

func (e *Engine) record(resultType string, start time.Time, returned int) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	if resultType == metrics.ResultHit || resultType == metrics.ResultZero {
		e.metrics.SearchResultsCount.Observe(float64(returned))
	}
}

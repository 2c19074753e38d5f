// Package executor evaluates parsed queries against a committed index and
// scores the matches.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
	"github.com/Phil-Holland/notes-serve/internal/indexer/index"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
	"github.com/Phil-Holland/notes-serve/internal/searcher/merger"
	"github.com/Phil-Holland/notes-serve/internal/searcher/parser"
	"github.com/Phil-Holland/notes-serve/internal/searcher/ranker"
)

type SearchResult struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

// Executor is safe for concurrent use; it only reads the index.
type Executor struct {
	index  *indexer.Index
	logger *slog.Logger
}

func New(idx *indexer.Index) *Executor {
	return &Executor{
		index:  idx,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates q and returns its limit best matches.
func (e *Executor) Execute(ctx context.Context, q parser.Query, limit int) (*SearchResult, error) {
	scores, err := e.eval(ctx, q)
	if err != nil {
		return nil, err
	}
	ranked := merger.TopK(scores, limit)
	e.logger.Debug("query executed",
		"query", q.String(),
		"candidates", len(scores),
		"results", len(ranked),
	)
	return &SearchResult{
		Query:     q.String(),
		TotalHits: len(scores),
		Results:   ranked,
	}, nil
}

// scoreSet maps matching documents to their accumulated score.
type scoreSet map[uint32]float64

func (e *Executor) eval(ctx context.Context, q parser.Query) (scoreSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch q := q.(type) {
	case parser.EmptyQuery:
		return scoreSet{}, nil
	case parser.AllQuery:
		scores := make(scoreSet, e.index.DocCount())
		for id := 0; id < e.index.DocCount(); id++ {
			scores[uint32(id)] = 1
		}
		return scores, nil
	case parser.TermQuery:
		return e.term(q)
	case parser.PhraseQuery:
		return e.phrase(q)
	case parser.BooleanQuery:
		return e.boolean(ctx, q)
	default:
		return nil, fmt.Errorf("unsupported query node %T", q)
	}
}

func (e *Executor) stats(field schema.Field) ranker.FieldStats {
	return ranker.FieldStats{
		TotalDocs:    e.index.DocCount(),
		AvgDocLength: e.index.AvgFieldLength(field),
	}
}

func (e *Executor) term(q parser.TermQuery) (scoreSet, error) {
	postings, err := e.index.Postings(q.Field, q.Term)
	if err != nil {
		return nil, fmt.Errorf("searching term %q: %w", q.String(), err)
	}
	stats := e.stats(q.Field)
	idf := ranker.IDF(stats.TotalDocs, len(postings))
	scores := make(scoreSet, len(postings))
	for _, p := range postings {
		scores[p.DocID] = ranker.BM25(idf, p.Frequency, e.index.FieldLength(q.Field, p.DocID), stats)
	}
	return scores, nil
}

func (e *Executor) phrase(q parser.PhraseQuery) (scoreSet, error) {
	stats := e.stats(q.Field)
	lists := make([]index.PostingList, len(q.Terms))
	var idf float64
	for i, term := range q.Terms {
		postings, err := e.index.Postings(q.Field, term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		if len(postings) == 0 {
			return scoreSet{}, nil
		}
		lists[i] = postings
		idf += ranker.IDF(stats.TotalDocs, len(postings))
	}

	byDoc := make([]map[uint32][]int, len(lists))
	for i := 1; i < len(lists); i++ {
		byDoc[i] = make(map[uint32][]int, len(lists[i]))
		for _, p := range lists[i] {
			byDoc[i][p.DocID] = p.Positions
		}
	}

	scores := make(scoreSet)
	positions := make([][]int, len(lists))
	for _, first := range lists[0] {
		positions[0] = first.Positions
		complete := true
		for i := 1; i < len(lists); i++ {
			pos, ok := byDoc[i][first.DocID]
			if !ok {
				complete = false
				break
			}
			positions[i] = pos
		}
		if !complete {
			continue
		}
		if freq := phraseFrequency(positions, q.Offsets); freq > 0 {
			scores[first.DocID] = ranker.BM25(idf, freq, e.index.FieldLength(q.Field, first.DocID), stats)
		}
	}
	return scores, nil
}

// phraseFrequency counts the start positions at which every term occurs at
// its offset. Position lists are ascending.
func phraseFrequency(positions [][]int, offsets []int) int {
	count := 0
	for _, start := range positions[0] {
		base := start - offsets[0]
		matched := true
		for i := 1; i < len(positions); i++ {
			want := base + offsets[i]
			j := sort.SearchInts(positions[i], want)
			if j == len(positions[i]) || positions[i][j] != want {
				matched = false
				break
			}
		}
		if matched {
			count++
		}
	}
	return count
}

func (e *Executor) boolean(ctx context.Context, q parser.BooleanQuery) (scoreSet, error) {
	var must, should, mustNot []scoreSet
	for _, c := range q.Clauses {
		scores, err := e.eval(ctx, c.Query)
		if err != nil {
			return nil, err
		}
		switch c.Occur {
		case parser.Must:
			must = append(must, scores)
		case parser.MustNot:
			mustNot = append(mustNot, scores)
		default:
			should = append(should, scores)
		}
	}

	var result scoreSet
	if len(must) > 0 {
		sort.Slice(must, func(i, j int) bool { return len(must[i]) < len(must[j]) })
		result = must[0]
		for _, scores := range must[1:] {
			for docID := range result {
				score, ok := scores[docID]
				if !ok {
					delete(result, docID)
					continue
				}
				result[docID] += score
			}
		}
		for _, scores := range should {
			for docID := range result {
				result[docID] += scores[docID]
			}
		}
	} else {
		result = make(scoreSet)
		for _, scores := range should {
			for docID, score := range scores {
				result[docID] += score
			}
		}
	}
	for _, scores := range mustNot {
		for docID := range scores {
			delete(result, docID)
		}
	}
	return result, nil
}

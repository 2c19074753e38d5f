// Package merger selects the best scored documents.
package merger

import (
	"container/heap"

	"github.com/Phil-Holland/notes-serve/internal/searcher/ranker"
)

// TopK returns the limit highest scoring documents of scores in descending
// score order. Equal scores are ordered by ascending document id.
func TopK(scores map[uint32]float64, limit int) []ranker.ScoredDoc {
	if limit <= 0 || len(scores) == 0 {
		return []ranker.ScoredDoc{}
	}
	h := make(scoredDocHeap, 0, min(limit, len(scores))+1)
	for docID, score := range scores {
		heap.Push(&h, ranker.ScoredDoc{DocID: docID, Score: score})
		if h.Len() > limit {
			heap.Pop(&h)
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on (score, -docID) so the weakest candidate
// is evicted first.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

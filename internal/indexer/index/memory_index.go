// Package index accumulates postings and per-field document lengths in
// memory while a batch of documents is written, and hands them to the
// segment writer as a sorted snapshot.
package index

import (
	"sort"
	"sync"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

// ValueGap separates the positions of consecutive values of a repeated
// field so a phrase never matches across two values.
const ValueGap = 1

type termKey struct {
	field schema.Field
	term  string
}

type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[termKey]map[uint32]*Posting
	lengths  [schema.NumFields][]uint32
	docCount int
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[termKey]map[uint32]*Posting),
	}
}

// AddDocument analyses every indexed field value and records its postings
// under docID. Document ids must be added in increasing order starting at 0.
func (m *MemoryIndex) AddDocument(docID uint32, fields []FieldValues) {
	termData := make(map[termKey]*Posting)
	var lengths [schema.NumFields]uint32

	for _, fv := range fields {
		if !fv.Field.Indexed() {
			continue
		}
		offset := 0
		for _, value := range fv.Values {
			tokens := fv.Field.Analyze(value)
			for _, token := range tokens {
				key := termKey{field: fv.Field, term: token.Term}
				p, exists := termData[key]
				if !exists {
					p = &Posting{
						DocID:     docID,
						Positions: make([]int, 0, 4),
					}
					termData[key] = p
				}
				p.Frequency++
				p.Positions = append(p.Positions, offset+token.Position)
			}
			if n := len(tokens); n > 0 {
				offset += tokens[n-1].Position + 1 + ValueGap
			}
			lengths[fv.Field] += uint32(len(tokens))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, posting := range termData {
		if _, exists := m.index[key]; !exists {
			m.index[key] = make(map[uint32]*Posting)
		}
		m.index[key][docID] = posting
		m.size += int64(len(key.term) + len(posting.Positions)*8 + 64)
	}
	for f := range lengths {
		for uint32(len(m.lengths[f])) < docID {
			m.lengths[f] = append(m.lengths[f], 0)
		}
		m.lengths[f] = append(m.lengths[f], lengths[f])
	}
	m.docCount++
}

// Snapshot returns every term entry sorted by field and term, with each
// posting list sorted by DocID.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for key, docs := range m.index {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{
			Field:    key.field,
			Term:     key.term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Less(entries[j])
	})
	return entries
}

// FieldLengths returns, per field, the token count of every document in
// DocID order.
func (m *MemoryIndex) FieldLengths() map[schema.Field][]uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[schema.Field][]uint32, schema.NumFields)
	for f := range m.lengths {
		lengths := make([]uint32, m.docCount)
		copy(lengths, m.lengths[f])
		out[schema.Field(f)] = lengths
	}
	return out
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[termKey]map[uint32]*Posting)
	m.lengths = [schema.NumFields][]uint32{}
	m.docCount = 0
	m.size = 0
}

// Package indexer builds the on-disk note index and opens committed
// indexes for reading.
//
// An index directory holds one segment of postings and field norms, a bbolt
// store of stored field values, and meta.json. meta.json is the commit
// point: it is written last and a directory without it is not an index.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Phil-Holland/notes-serve/internal/indexer/docstore"
	"github.com/Phil-Holland/notes-serve/internal/indexer/index"
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
	"github.com/Phil-Holland/notes-serve/internal/indexer/segment"
)

const (
	MetaFileName = "meta.json"
	MetaVersion  = 1
)

// ErrNotCommitted is returned by Open when the directory holds no committed
// index.
var ErrNotCommitted = errors.New("index not committed")

// Meta is the commit record of a build.
type Meta struct {
	Version   int       `json:"version"`
	BuildID   string    `json:"build_id"`
	Segment   string    `json:"segment"`
	DocCount  int       `json:"doc_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is a read-only handle to a committed index. It is immutable and
// safe for concurrent use.
type Index struct {
	meta       Meta
	segment    *segment.Reader
	docs       *docstore.Store
	avgLengths [schema.NumFields]float64
}

// Open opens the index committed at path.
func Open(path string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(path, MetaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotCommitted)
		}
		return nil, fmt.Errorf("reading index meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing index meta: %w", err)
	}
	if meta.Version != MetaVersion {
		return nil, fmt.Errorf("unsupported index version %d", meta.Version)
	}

	seg, err := segment.OpenReader(filepath.Join(path, meta.Segment))
	if err != nil {
		return nil, fmt.Errorf("opening segment: %w", err)
	}
	if int(seg.DocCount()) != meta.DocCount {
		seg.Close()
		return nil, fmt.Errorf("segment holds %d documents, meta expects %d", seg.DocCount(), meta.DocCount)
	}
	docs, err := docstore.Open(filepath.Join(path, docstore.FileName))
	if err != nil {
		seg.Close()
		return nil, err
	}

	idx := &Index{
		meta:    meta,
		segment: seg,
		docs:    docs,
	}
	if meta.DocCount > 0 {
		for _, f := range schema.All() {
			idx.avgLengths[f] = float64(seg.TotalFieldLength(f)) / float64(meta.DocCount)
		}
	}
	return idx, nil
}

// BuildID identifies the build that produced this index.
func (idx *Index) BuildID() string {
	return idx.meta.BuildID
}

// CreatedAt is when the build committed.
func (idx *Index) CreatedAt() time.Time {
	return idx.meta.CreatedAt
}

func (idx *Index) DocCount() int {
	return idx.meta.DocCount
}

// Postings returns the posting list of an already analysed term.
func (idx *Index) Postings(field schema.Field, term string) (index.PostingList, error) {
	return idx.segment.Search(field, term)
}

// FieldLength returns the number of tokens field holds in document doc.
func (idx *Index) FieldLength(field schema.Field, doc uint32) int {
	return idx.segment.FieldLength(field, doc)
}

// AvgFieldLength returns the mean token count of field across all
// documents.
func (idx *Index) AvgFieldLength(field schema.Field) float64 {
	return idx.avgLengths[field]
}

// Stored returns the stored values of document doc.
func (idx *Index) Stored(doc uint32) (docstore.Document, error) {
	return idx.docs.Get(doc)
}

// Close releases the segment file and the document store.
func (idx *Index) Close() error {
	segErr := idx.segment.Close()
	docErr := idx.docs.Close()
	return errors.Join(segErr, docErr)
}

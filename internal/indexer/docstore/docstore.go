// Package docstore keeps the stored field values of every indexed document
// in a bbolt database, keyed by document id.
package docstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

// FileName is the name of the store inside an index directory.
const FileName = "docs.db"

var bucketDocs = []byte("docs")

var (
	// ErrNotFound is returned when no document is stored under an id.
	ErrNotFound = errors.New("stored document not found")
	ErrReadOnly = errors.New("document store is read-only")
)

// Document holds the stored values of one document, per field, in the
// order they were written.
type Document map[schema.Field][]string

// First returns the first value of field, or "" when it has none.
func (d Document) First(field schema.Field) string {
	if values := d[field]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// All returns every value of field. The result is never nil.
func (d Document) All(field schema.Field) []string {
	values := d[field]
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Store wraps a bbolt database.
type Store struct {
	db       *bolt.DB
	readOnly bool
}

// Create opens a writable store at path, creating the file if needed.
func Create(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening document store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Open opens an existing store read-only. Read-only stores may be shared by
// any number of concurrent readers.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o400, &bolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening document store %s: %w", path, err)
	}
	return &Store{db: db, readOnly: true}, nil
}

// PutAll writes docs in a single transaction; docs[i] is stored under id
// i. Either every document is written or none is.
func (s *Store) PutAll(docs []Document) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketDocs)
		if err != nil {
			return fmt.Errorf("creating bucket: %w", err)
		}
		b.FillPercent = 1.0
		for i, doc := range docs {
			data, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("marshaling document %d: %w", i, err)
			}
			if err := b.Put(key(uint32(i)), data); err != nil {
				return fmt.Errorf("storing document %d: %w", i, err)
			}
		}
		return nil
	})
}

// Get returns the stored values of document id.
func (s *Store) Get(id uint32) (Document, error) {
	var doc Document
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(key(id))
		if data == nil {
			return ErrNotFound
		}
		// data is only valid inside the transaction; Unmarshal copies.
		return json.Unmarshal(data, &doc)
	})
	if err != nil {
		return nil, fmt.Errorf("document %d: %w", id, err)
	}
	return doc, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(id uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], id)
	return k[:]
}

// Package notes loads the documents to index, either from the renderer's
// summary file or straight from a directory of markdown notes.
package notes

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Phil-Holland/notes-serve/internal/indexer"
)

// LoadSummary reads a JSON array of {file, title, tags, content} records.
func LoadSummary(path string) ([]indexer.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading summary file: %w", err)
	}
	var docs []indexer.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing summary file %s: %w", path, err)
	}
	return docs, nil
}

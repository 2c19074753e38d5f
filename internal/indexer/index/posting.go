package index

import "github.com/Phil-Holland/notes-serve/internal/indexer/schema"

// Posting records the occurrences of one term in one document field.
type Posting struct {
	DocID     uint32 `json:"d"`
	Frequency int    `json:"f"`
	Positions []int  `json:"p"`
}

// PostingList is ordered by ascending DocID.
type PostingList []Posting

// TermEntry is the posting list of one term within one field.
type TermEntry struct {
	Field    schema.Field
	Term     string
	Postings PostingList
}

// FieldValues are the raw values written to one field of a document.
type FieldValues struct {
	Field  schema.Field
	Values []string
}

// Less orders term entries by field, then term.
func (e TermEntry) Less(other TermEntry) bool {
	if e.Field != other.Field {
		return e.Field < other.Field
	}
	return e.Term < other.Term
}

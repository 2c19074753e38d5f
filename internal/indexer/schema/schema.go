// Package schema defines the fixed set of note fields, how each one is
// analysed, and which of them keep their original values for retrieval.
package schema

import (
	"fmt"

	"github.com/Phil-Holland/notes-serve/internal/indexer/tokenizer"
)

// Field identifies one of the four note fields. The set is closed.
type Field uint8

const (
	FieldFile Field = iota
	FieldTitle
	FieldTags
	FieldContent
)

// NumFields is the number of fields in the schema.
const NumFields = 4

// options describes how a field is written to the index.
type options struct {
	Name     string
	Indexed  bool
	Stored   bool
	Analyzer tokenizer.Analyzer
}

var fieldOptions = [NumFields]options{
	FieldFile:    {Name: "file", Indexed: true, Stored: true, Analyzer: tokenizer.Keyword},
	FieldTitle:   {Name: "title", Indexed: true, Stored: true, Analyzer: tokenizer.Text},
	FieldTags:    {Name: "tags", Indexed: true, Stored: true, Analyzer: tokenizer.Text},
	FieldContent: {Name: "content", Indexed: true, Stored: false, Analyzer: tokenizer.Text},
}

// All returns every field in declaration order.
func All() []Field {
	return []Field{FieldFile, FieldTitle, FieldTags, FieldContent}
}

// String returns the field name used in queries and on disk.
func (f Field) String() string {
	if int(f) >= NumFields {
		return fmt.Sprintf("field(%d)", uint8(f))
	}
	return fieldOptions[f].Name
}

// Indexed reports whether f is tokenized and searchable.
func (f Field) Indexed() bool { return fieldOptions[f].Indexed }

// Stored reports whether f keeps its original values.
func (f Field) Stored() bool { return fieldOptions[f].Stored }

// Analyze tokenizes a single value of f.
func (f Field) Analyze(value string) []tokenizer.Token {
	return tokenizer.Analyze(fieldOptions[f].Analyzer, value)
}

// Valid reports whether f is one of the declared fields.
func (f Field) Valid() bool {
	return int(f) < NumFields
}

// ParseField resolves a field name.
func ParseField(name string) (Field, error) {
	for i, opts := range fieldOptions {
		if opts.Name == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// MarshalText implements encoding.TextMarshaler so fields can key JSON maps.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid field %d", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	parsed, err := ParseField(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

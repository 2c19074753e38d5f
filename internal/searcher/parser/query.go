package parser

import (
	"strings"

	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

// Query is a node of a parsed query tree.
type Query interface {
	String() string
	isQuery()
}

// Occur says how a clause of a BooleanQuery constrains its matches.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) prefix() string {
	switch o {
	case Must:
		return "+"
	case MustNot:
		return "-"
	default:
		return ""
	}
}

// TermQuery matches documents holding an analysed term in one field.
type TermQuery struct {
	Field schema.Field
	Term  string
}

// PhraseQuery matches documents holding Terms in Field at the relative
// positions given by Offsets.
type PhraseQuery struct {
	Field   schema.Field
	Terms   []string
	Offsets []int
}

// Clause is one member of a BooleanQuery.
type Clause struct {
	Occur Occur
	Query Query
}

// BooleanQuery combines clauses. A document matches when it matches every
// Must clause, no MustNot clause, and, if there are no Must clauses, at
// least one Should clause.
type BooleanQuery struct {
	Clauses []Clause
}

// AllQuery matches every document.
type AllQuery struct{}

// EmptyQuery matches nothing.
type EmptyQuery struct{}

func (TermQuery) isQuery()    {}
func (PhraseQuery) isQuery()  {}
func (BooleanQuery) isQuery() {}
func (AllQuery) isQuery()     {}
func (EmptyQuery) isQuery()   {}

func (q TermQuery) String() string {
	return q.Field.String() + ":" + q.Term
}

func (q PhraseQuery) String() string {
	return q.Field.String() + ":\"" + strings.Join(q.Terms, " ") + "\""
}

func (q BooleanQuery) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = c.Occur.prefix() + c.Query.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (AllQuery) String() string { return "*" }

func (EmptyQuery) String() string { return "<empty>" }

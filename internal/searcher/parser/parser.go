// Package parser turns user query strings into Query trees.
//
// The grammar is
//
//	query  := orExpr?
//	orExpr := andExpr ("OR" andExpr)*
//	andExpr:= unary (["AND"] unary)*
//	unary  := ["+" | "-" | "NOT"] atom
//	atom   := "*" | "(" orExpr ")" | [field ":"] (word | "\"" phrase "\"")
//
// Two clauses written next to each other are joined by the parser's default
// combinator, which is OR unless SetConjunctionByDefault was called. Words
// and phrases are analysed with each target field's analyzer, so a clause
// without a field prefix matches in any default field.
package parser

import (
	"github.com/Phil-Holland/notes-serve/internal/indexer/schema"
)

// Parser parses queries against a set of default fields. Once configured it
// is safe for concurrent use.
type Parser struct {
	fields      []schema.Field
	conjunction bool
}

// New returns a parser whose unscoped clauses search fields. With no
// fields every schema field is searched.
func New(fields ...schema.Field) *Parser {
	if len(fields) == 0 {
		fields = schema.All()
	}
	return &Parser{fields: fields}
}

// SetConjunctionByDefault makes adjacent clauses combine with AND.
func (p *Parser) SetConjunctionByDefault() {
	p.conjunction = true
}

// Parse parses text. An empty or all-whitespace query yields EmptyQuery.
// Errors wrap ErrSyntax.
func (p *Parser) Parse(text string) (Query, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	st := &state{tokens: tokens, conjunction: p.conjunction}
	if st.peek().kind == tokEOF {
		return EmptyQuery{}, nil
	}

	q, err := st.parseOr(p.fields)
	if err != nil {
		return nil, err
	}
	if t := st.peek(); t.kind != tokEOF {
		msg := "unexpected " + t.kind.String()
		if t.kind == tokRParen {
			msg = "unbalanced ')'"
		}
		return nil, &SyntaxError{Offset: t.pos, Msg: msg}
	}
	if q == nil {
		return EmptyQuery{}, nil
	}
	return q, nil
}

// clause is a parsed unary expression. Should means no prefix was given;
// a nil query means the text analysed to nothing and the clause is dropped.
type clause struct {
	occur Occur
	query Query
}

type state struct {
	tokens      []token
	pos         int
	conjunction bool
}

func (st *state) peek() token {
	return st.tokens[st.pos]
}

func (st *state) next() token {
	t := st.tokens[st.pos]
	if t.kind != tokEOF {
		st.pos++
	}
	return t
}

func startsClause(k tokenKind) bool {
	switch k {
	case tokWord, tokPhrase, tokField, tokLParen, tokPlus, tokMinus, tokNot:
		return true
	}
	return false
}

func (st *state) parseOr(fields []schema.Field) (Query, error) {
	var groups [][]clause
	for {
		group, err := st.parseAnd(fields)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)

		t := st.peek()
		if t.kind == tokOr {
			st.next()
			continue
		}
		if !st.conjunction && startsClause(t.kind) {
			continue
		}
		break
	}

	if len(groups) == 1 {
		return conjoin(groups[0]), nil
	}
	clauses := make([]Clause, 0, len(groups))
	for _, group := range groups {
		if len(group) == 1 {
			if group[0].query != nil {
				clauses = append(clauses, Clause{Occur: group[0].occur, Query: group[0].query})
			}
			continue
		}
		if q := conjoin(group); q != nil {
			clauses = append(clauses, Clause{Occur: Should, Query: q})
		}
	}
	return combine(clauses), nil
}

func (st *state) parseAnd(fields []schema.Field) ([]clause, error) {
	c, err := st.parseUnary(fields)
	if err != nil {
		return nil, err
	}
	group := []clause{c}
	for {
		t := st.peek()
		if t.kind == tokAnd {
			st.next()
		} else if !st.conjunction || !startsClause(t.kind) {
			break
		}
		c, err := st.parseUnary(fields)
		if err != nil {
			return nil, err
		}
		group = append(group, c)
	}
	return group, nil
}

func (st *state) parseUnary(fields []schema.Field) (clause, error) {
	t := st.peek()
	occur := Should
	switch t.kind {
	case tokPlus:
		occur = Must
		st.next()
	case tokMinus, tokNot:
		occur = MustNot
		st.next()
	}
	q, err := st.parseAtom(fields)
	if err != nil {
		return clause{}, err
	}
	return clause{occur: occur, query: q}, nil
}

func (st *state) parseAtom(fields []schema.Field) (Query, error) {
	t := st.next()
	switch t.kind {
	case tokLParen:
		q, err := st.parseOr(fields)
		if err != nil {
			return nil, err
		}
		if st.peek().kind != tokRParen {
			return nil, &SyntaxError{Offset: t.pos, Msg: "unbalanced '('"}
		}
		st.next()
		return q, nil
	case tokPhrase:
		return analyse(fields, t.text), nil
	case tokWord:
		if t.text == "*" {
			return AllQuery{}, nil
		}
		return analyse(fields, t.text), nil
	case tokField:
		field, err := schema.ParseField(t.text)
		if err != nil {
			return nil, &SyntaxError{Offset: t.pos, Msg: err.Error()}
		}
		return st.parseAtom([]schema.Field{field})
	default:
		return nil, &SyntaxError{Offset: t.pos, Msg: "expected a term, found " + t.kind.String()}
	}
}

// conjoin combines an AND group. Unprefixed clauses become required.
func conjoin(group []clause) Query {
	clauses := make([]Clause, 0, len(group))
	for _, c := range group {
		if c.query == nil {
			continue
		}
		occur := c.occur
		if occur == Should {
			occur = Must
		}
		clauses = append(clauses, Clause{Occur: occur, Query: c.query})
	}
	return combine(clauses)
}

// combine returns nil when every clause was dropped. A group made only of
// exclusions is kept as is and matches nothing.
func combine(clauses []Clause) Query {
	if len(clauses) == 0 {
		return nil
	}
	if len(clauses) == 1 && clauses[0].Occur != MustNot {
		return clauses[0].Query
	}
	return BooleanQuery{Clauses: clauses}
}

// analyse runs text through the analyzer of every field. A field where text
// yields one token gets a term query, several tokens a phrase query.
func analyse(fields []schema.Field, text string) Query {
	alternatives := make([]Query, 0, len(fields))
	for _, f := range fields {
		tokens := f.Analyze(text)
		switch len(tokens) {
		case 0:
			continue
		case 1:
			alternatives = append(alternatives, TermQuery{Field: f, Term: tokens[0].Term})
		default:
			terms := make([]string, len(tokens))
			offsets := make([]int, len(tokens))
			for i, tok := range tokens {
				terms[i] = tok.Term
				offsets[i] = tok.Position - tokens[0].Position
			}
			alternatives = append(alternatives, PhraseQuery{Field: f, Terms: terms, Offsets: offsets})
		}
	}

	switch len(alternatives) {
	case 0:
		return nil
	case 1:
		return alternatives[0]
	}
	clauses := make([]Clause, len(alternatives))
	for i, q := range alternatives {
		clauses[i] = Clause{Occur: Should, Query: q}
	}
	return BooleanQuery{Clauses: clauses}
}

package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax is wrapped by every error Parse returns.
var ErrSyntax = errors.New("invalid query syntax")

// SyntaxError locates a parse failure in the query string.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrSyntax, e.Offset, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokField
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokField:
		return "field"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	default:
		return "unknown"
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isSpace(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsSpace(r)
}

// lex splits a query into tokens. A word of the form name:value is split
// into a field token and the value; name: must be followed directly by a
// phrase or a group.
func lex(input string) ([]token, error) {
	tokens := make([]token, 0, 8)
	i := 0
	for i < len(input) {
		if isSpace(input, i) {
			_, size := utf8.DecodeRuneInString(input[i:])
			i += size
			continue
		}
		c := input[i]
		switch c {
		case '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case '"':
			end := strings.IndexByte(input[i+1:], '"')
			if end < 0 {
				return nil, &SyntaxError{Offset: i, Msg: "unterminated phrase"}
			}
			tokens = append(tokens, token{kind: tokPhrase, text: input[i+1 : i+1+end], pos: i})
			i += end + 2
		case '+', '-':
			if i+1 >= len(input) || isSpace(input, i+1) || input[i+1] == ')' {
				return nil, &SyntaxError{Offset: i, Msg: fmt.Sprintf("dangling operator %q", c)}
			}
			kind := tokPlus
			if c == '-' {
				kind = tokMinus
			}
			tokens = append(tokens, token{kind: kind, pos: i})
			i++
		default:
			start := i
			for i < len(input) && !isSpace(input, i) && input[i] != '(' && input[i] != ')' && input[i] != '"' {
				i++
			}
			word := input[start:i]
			switch word {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, pos: start})
				continue
			case "OR":
				tokens = append(tokens, token{kind: tokOr, pos: start})
				continue
			case "NOT":
				tokens = append(tokens, token{kind: tokNot, pos: start})
				continue
			}
			colon := strings.IndexByte(word, ':')
			if colon <= 0 {
				tokens = append(tokens, token{kind: tokWord, text: word, pos: start})
				continue
			}
			tokens = append(tokens, token{kind: tokField, text: word[:colon], pos: start})
			if rest := word[colon+1:]; rest != "" {
				tokens = append(tokens, token{kind: tokWord, text: rest, pos: start + colon + 1})
				continue
			}
			if i >= len(input) || (input[i] != '"' && input[i] != '(') {
				return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("field %q has no value", word[:colon])}
			}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

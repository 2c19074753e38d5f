// Package tokenizer provides text tokenisation for the search engine.
// The text analyzer lower-cases input, splits on non-alphanumeric boundaries,
// drops over-long tokens, and applies a simple suffix-based stemmer. The
// keyword analyzer keeps a whole value as one lower-cased token.
package tokenizer

import (
	"strings"
	"unicode"
)

// MaxTokenLength is the longest token, in bytes, the text analyzer keeps.
const MaxTokenLength = 40

// Analyzer selects how a value is broken into tokens.
type Analyzer uint8

const (
	// Text splits, lower-cases and stems.
	Text Analyzer = iota
	// Keyword emits the whole lower-cased value as a single token.
	Keyword
)

func (a Analyzer) String() string {
	switch a {
	case Keyword:
		return "keyword"
	default:
		return "text"
	}
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Analyze runs the given analyzer over text.
func Analyze(a Analyzer, text string) []Token {
	if a == Keyword {
		return keyword(text)
	}
	return Tokenize(text)
}

// Tokenize breaks text into a slice of stemmed, lowercased Tokens.
func Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if len(word) > MaxTokenLength {
			continue
		}
		stemmed := stem(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
		})
		pos++
	}
	return tokens
}

func keyword(text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{Term: strings.ToLower(text), Position: 0}}
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}

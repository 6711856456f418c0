package lexical

import (
	"strings"
	"unicode"
)

// Stop words dropped before overlap scoring. Single letters are kept because
// they are usually variables, and "not" is kept because it changes meaning.
var stopWords = map[string]bool{
	"the": true, "an": true, "be": true, "is": true, "are": true, "was": true,
	"to": true, "of": true, "and": true, "or": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "on": true, "with": true, "as": true,
	"do": true, "at": true, "this": true, "but": true, "by": true, "from": true,
	"if": true, "then": true, "when": true, "there": true,
}

// Tokenize lowercases text, splits it on every character that is not a
// letter or digit (so "lemma_mul_le" yields lemma, mul, le) and drops stop words.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	toks := Tokenize(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

func union(sets ...map[string]struct{}) map[string]struct{} {
	n := 0
	for _, s := range sets {
		n += len(s)
	}
	out := make(map[string]struct{}, n)
	for _, s := range sets {
		for t := range s {
			out[t] = struct{}{}
		}
	}
	return out
}

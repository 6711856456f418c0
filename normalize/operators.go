package normalize

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical tokens produced by operator normalization.
const (
	Implication = "==>"
	Equivalence = "<==>"
	ForAll      = "forall"
	Exists      = "exists"
)

// operatorTable maps lowercase word forms and symbols to canonical operators.
// Word forms only match on word boundaries.
var operatorTable = map[string]string{
	"multiplied by": "*",
	"multiply":      "*",
	"times":         "*",
	"mul":           "*",
	"divided by":    "/",
	"divide":        "/",
	"div":           "/",
	"modulo":        "%",
	"mod":           "%",
	"leq":           "<=",
	"geq":           ">=",
	"neq":           "!=",
	"implies":       Implication,
	"iff":           Equivalence,
	"when":          "if",
	"for all":       ForAll,
	"forall":        ForAll,
	"there exists":  Exists,
	"exists":        Exists,

	"≤": "<=",
	"≥": ">=",
	"≠": "!=",
	"⇒": Implication,
	"⟹": Implication,
	"→": Implication,
	"⇔": Equivalence,
	"⟺": Equivalence,
	"↔": Equivalence,
	"∀": ForAll,
	"∃": Exists,
	"×": "*",
	"÷": "/",
}

var (
	operatorPattern = buildOperatorPattern()
	whitespace      = regexp.MustCompile(`\s+`)
)

// buildOperatorPattern compiles the table into one alternation.
// RE2 alternation prefers the leftmost branch, so longer forms are listed first
// and "multiply" can never be cut down to "mul" + "tiply".
func buildOperatorPattern() *regexp.Regexp {
	var words, symbols []string
	for k := range operatorTable {
		if isWordForm(k) {
			words = append(words, k)
		} else {
			symbols = append(symbols, k)
		}
	}
	sortLongestFirst(words)
	sortLongestFirst(symbols)

	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	alternatives := []string{`\b(?:` + strings.Join(quoted, "|") + `)\b`}
	for _, s := range symbols {
		alternatives = append(alternatives, regexp.QuoteMeta(s))
	}
	return regexp.MustCompile(`(?i)` + strings.Join(alternatives, "|"))
}

func isWordForm(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z') && r != ' ' {
			return false
		}
	}
	return true
}

func sortLongestFirst(s []string) {
	slices.SortFunc(s, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
}

// CollapseWhitespace trims text and replaces runs of whitespace with one space.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// NormalizeOperators maps operator word forms and symbols to canonical ASCII
// operators and collapses whitespace. Matching is case-insensitive and
// respects word boundaries, so "division" and "lemma_mul_le" are untouched.
// The function is idempotent.
func NormalizeOperators(text string) string {
	text = CollapseWhitespace(norm.NFKC.String(text))
	// A rewrite can complete a multi-word form ("there there exists") or leave
	// an ASCII operator before a combining mark that NFKC then composes, so
	// apply the table and fold again until nothing changes.
	for range len(text) + 1 {
		next := CollapseWhitespace(norm.NFKC.String(operatorPattern.ReplaceAllStringFunc(text, replaceOperator)))
		if next == text {
			break
		}
		text = next
	}
	return text
}

func replaceOperator(match string) string {
	key := strings.ToLower(whitespace.ReplaceAllString(match, " "))
	if rep, ok := operatorTable[key]; ok {
		return rep
	}
	return match
}

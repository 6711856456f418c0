package normalize

import (
	"strings"

	"github.com/poiesic/lemmafind/core"
)

// Normalizer turns raw queries into deduplicated QueryVariants.
type Normalizer struct {
	alternateWeight float64
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithAlternateWeight sets the fusion weight of every variant after the first.
// Default is 1.0, so all phrasings count equally.
func WithAlternateWeight(w float64) Option {
	return func(n *Normalizer) {
		if w > 0 {
			n.alternateWeight = w
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{alternateWeight: 1.0}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize runs operator normalization, variable normalization and variation
// generation. An empty or blank query yields a single empty variant.
func (n *Normalizer) Normalize(raw string) []core.QueryVariant {
	text := NormalizeVariables(NormalizeOperators(raw))
	if text == "" {
		return []core.QueryVariant{core.NewQueryVariant("")}
	}

	seen := make(map[string]bool, MaxVariations)
	variants := make([]core.QueryVariant, 0, MaxVariations)
	for _, v := range GenerateVariations(text) {
		if seen[v] {
			continue
		}
		seen[v] = true
		variant := core.NewQueryVariant(v)
		if len(variants) > 0 {
			variant.Weight = n.alternateWeight
		}
		variants = append(variants, variant)
	}
	return variants
}

// Normalize runs the default pipeline.
func Normalize(raw string) []core.QueryVariant {
	return defaultNormalizer.Normalize(raw)
}

var defaultNormalizer = New()

// LemmaText returns the embedding input for a record: its searchable text
// with operators normalized. Variables are left alone so names in
// documentation stay readable to the model.
func LemmaText(rec *core.LemmaRecord) string {
	return NormalizeOperators(rec.SearchableText())
}

// CanonicalClauses renders the record's contract as one implication,
// "if <requires joined by and> then <ensures joined by and>", with operators
// and variables normalized. Records without ensures clauses render only their
// requires; records without clauses render "".
func CanonicalClauses(rec *core.LemmaRecord) string {
	requires := joinClauses(rec.Requires)
	ensures := joinClauses(rec.Ensures)
	var text string
	switch {
	case requires != "" && ensures != "":
		text = "if " + requires + " then " + ensures
	case ensures != "":
		text = ensures
	default:
		text = requires
	}
	return NormalizeVariables(NormalizeOperators(text))
}

// NormalizeText applies operator and variable normalization to free text.
func NormalizeText(text string) string {
	return NormalizeVariables(NormalizeOperators(text))
}

func joinClauses(clauses []string) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c = CollapseWhitespace(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " and ")
}

// Package lexical scores lemmas against query text by token overlap, with no
// embeddings involved. Scores are deterministic and side-effect free.
package lexical

import (
	"strings"

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/normalize"
)

// Field identifies a scored part of a lemma.
type Field int

const (
	FieldName Field = iota
	FieldDocumentation
	FieldSignature
	FieldClauses
	numFields
)

// Weights multiply each field's overlap ratio.
type Weights struct {
	Name          float64
	Documentation float64
	Signature     float64
	Clauses       float64
}

// DefaultWeights boosts name matches by 2.0 and documentation matches by 1.5.
func DefaultWeights() Weights {
	return Weights{Name: 2.0, Documentation: 1.5, Signature: 1.0, Clauses: 1.0}
}

func (w Weights) of(f Field) float64 {
	switch f {
	case FieldName:
		return w.Name
	case FieldDocumentation:
		return w.Documentation
	case FieldSignature:
		return w.Signature
	default:
		return w.Clauses
	}
}

// Document is a lemma with its fields pre-tokenized.
type Document struct {
	Record *core.LemmaRecord
	fields  [numFields]map[string]struct{}
	clauses []clauseTokens
}

type clauseTokens struct {
	text   string
	tokens map[string]struct{}
}

// NewDocument tokenizes a record. The documentation field also holds tokens
// of the normalized documentation, and the clauses field also holds tokens of
// the canonical "if requires then ensures" rendering, so queries phrased with
// different variable names or operator words still overlap.
func NewDocument(rec *core.LemmaRecord) *Document {
	d := &Document{Record: rec}
	d.fields[FieldName] = TokenSet(rec.Name)
	d.fields[FieldDocumentation] = union(
		TokenSet(rec.Documentation),
		TokenSet(normalize.NormalizeText(rec.Documentation)),
	)
	d.fields[FieldSignature] = TokenSet(rec.Signature)
	d.fields[FieldClauses] = union(
		TokenSet(strings.Join(rec.Clauses(), " ")),
		TokenSet(normalize.NormalizeText(strings.Join(rec.Clauses(), " "))),
		TokenSet(normalize.CanonicalClauses(rec)),
	)
	for _, c := range rec.Clauses() {
		d.clauses = append(d.clauses, clauseTokens{
			text:   c,
			tokens: union(TokenSet(c), TokenSet(normalize.NormalizeText(c))),
		})
	}
	return d
}

// Tokens returns the token set of one field.
func (d *Document) Tokens(f Field) map[string]struct{} {
	return d.fields[f]
}

// Query is a tokenized query variant.
type Query struct {
	Text   string
	tokens map[string]struct{}
}

// NewQuery tokenizes query text.
func NewQuery(text string) Query {
	return Query{Text: text, tokens: TokenSet(text)}
}

// Empty reports whether the query has no scorable tokens.
func (q Query) Empty() bool {
	return len(q.tokens) == 0
}

// Scorer computes weighted token-overlap scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a Scorer with the given field weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the field weights.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the sum over fields of weight * |query ∩ field| / |query|.
// A query without tokens scores 0.
func (s *Scorer) Score(q Query, d *Document) float64 {
	if q.Empty() {
		return 0
	}
	var total float64
	for f := Field(0); f < numFields; f++ {
		total += s.weights.of(f) * overlap(q.tokens, d.fields[f])
	}
	return total
}

// MatchedClauses returns the record's clauses sharing at least one token with q,
// in record order.
func (s *Scorer) MatchedClauses(q Query, d *Document) []string {
	var out []string
	for _, c := range d.clauses {
		if overlap(q.tokens, c.tokens) > 0 {
			out = append(out, c.text)
		}
	}
	return out
}

func overlap(query, field map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	n := 0
	for t := range query {
		if _, ok := field[t]; ok {
			n++
		}
	}
	return float64(n) / float64(len(query))
}

// Package embedding scores query vectors against the precomputed lemma
// embeddings of an index.
package embedding

import (
	"fmt"
	"math"

	"github.com/poiesic/lemmafind/core"
)

// Cosine returns the cosine similarity of a and b, or 0 when either vector has
// zero norm. Vectors must have equal length; extra components are ignored.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Index wraps the embedded records of a core.Index.
type Index struct {
	names   []string
	vectors [][]float32
	dim     int
}

// NewIndex collects every record that has an embedding.
func NewIndex(idx *core.Index) *Index {
	e := &Index{dim: idx.Dimension()}
	for _, rec := range idx.Records() {
		if vals, ok := rec.Embedding.Values(); ok {
			e.names = append(e.names, rec.Name)
			e.vectors = append(e.vectors, vals)
		}
	}
	return e
}

// Len returns the number of embedded records.
func (e *Index) Len() int {
	return len(e.names)
}

// Dimension returns the vector length shared by all records.
func (e *Index) Dimension() int {
	return e.dim
}

// ScoreAll returns the cosine similarity between query and every embedded
// record, keyed by name. Records without an embedding are absent from the map,
// which is different from a score of 0. A query whose length differs from the
// index dimension fails the whole call.
func (e *Index) ScoreAll(query []float32) (map[string]float64, error) {
	if err := e.check(query); err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(e.names))
	for i, name := range e.names {
		scores[name] = Cosine(query, e.vectors[i])
	}
	return scores, nil
}

func (e *Index) check(query []float32) error {
	if len(query) == 0 {
		return fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyQueryVector)
	}
	if e.dim > 0 && len(query) != e.dim {
		return fmt.Errorf("%w: %w: query has %d, index has %d",
			core.ErrValidation, core.ErrDimensionMismatch, len(query), e.dim)
	}
	return nil
}

// Pair is one scored pair of embedded records, with I < J.
type Pair struct {
	I, J       int
	Similarity float64
}

// Name returns the record name at position i.
func (e *Index) Name(i int) string {
	return e.names[i]
}

// Row scores record i against every later record and returns the pairs at or
// above threshold.
func (e *Index) Row(i int, threshold float64) []Pair {
	var out []Pair
	for j := i + 1; j < len(e.vectors); j++ {
		sim := Cosine(e.vectors[i], e.vectors[j])
		if sim >= threshold {
			out = append(out, Pair{I: i, J: j, Similarity: sim})
		}
	}
	return out
}

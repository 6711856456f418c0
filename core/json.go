package core

import (
	"encoding/json"
	"fmt"
)

// lemmaJSON is the interchange shape produced by symbol extraction.
type lemmaJSON struct {
	Name          string    `json:"name"`
	FilePath      string    `json:"file_path"`
	LineNumber    *int      `json:"line_number"`
	Documentation string    `json:"documentation"`
	Signature     string    `json:"signature"`
	Requires      []string  `json:"requires_clauses"`
	Ensures       []string  `json:"ensures_clauses"`
	Decreases     []string  `json:"decreases_clauses,omitempty"`
	SymbolID      string    `json:"symbol_id,omitempty"`
	Source        string    `json:"source"`
	Embedding     []float32 `json:"embedding,omitempty"`
}

// MarshalJSON encodes the record in the interchange shape.
// An absent line number is written as null and an absent embedding is omitted.
func (r LemmaRecord) MarshalJSON() ([]byte, error) {
	w := lemmaJSON{
		Name:          r.Name,
		FilePath:      r.Location.FilePath,
		Documentation: r.Documentation,
		Signature:     r.Signature,
		Requires:      nonNil(r.Requires),
		Ensures:       nonNil(r.Ensures),
		Decreases:     r.Decreases,
		SymbolID:      r.SymbolID,
		Source:        r.Origin.String(),
	}
	if line, ok := r.Location.Line(); ok {
		w.LineNumber = &line
	}
	if vals, ok := r.Embedding.Values(); ok {
		w.Embedding = vals
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the interchange shape.
func (r *LemmaRecord) UnmarshalJSON(data []byte) error {
	var w lemmaJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	origin, err := ParseOrigin(w.Source)
	if err != nil {
		return fmt.Errorf("%w: lemma %q: %w", ErrValidation, w.Name, err)
	}
	*r = LemmaRecord{
		Name:          w.Name,
		Location:      NewSourceLocation(w.FilePath),
		Documentation: w.Documentation,
		Signature:     w.Signature,
		Requires:      w.Requires,
		Ensures:       w.Ensures,
		Decreases:     w.Decreases,
		SymbolID:      w.SymbolID,
		Origin:        origin,
	}
	if w.LineNumber != nil {
		r.Location = r.Location.WithLine(*w.LineNumber)
	}
	if w.Embedding != nil {
		r.Embedding = NewEmbedding(w.Embedding)
	}
	return nil
}

// IndexFile is the JSON document exchanged with external tooling.
type IndexFile struct {
	Version       string         `json:"version"`
	RepoRoot      string         `json:"repo_root,omitempty"`
	Model         string         `json:"embedding_model,omitempty"`
	HasEmbeddings bool           `json:"has_embeddings"`
	Lemmas        []*LemmaRecord `json:"lemmas"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a storage identifier derived from a lemma name.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Origin identifies where an indexed lemma comes from.
// It is informational only and never affects ranking.
type Origin int

const (
	// OriginProject marks lemmas from the indexed project itself.
	OriginProject Origin = iota + 1
	// OriginExternalLibrary marks lemmas from a dependency such as a standard library.
	OriginExternalLibrary
	// OriginOther marks lemmas of any other provenance.
	OriginOther
)

// String returns the canonical name of the origin.
func (o Origin) String() string {
	switch o {
	case OriginProject:
		return "project"
	case OriginExternalLibrary:
		return "external-library"
	case OriginOther:
		return "other"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// ParseOrigin converts an origin name into an Origin.
// An empty string is treated as project, matching extraction output that omits the field.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "project":
		return OriginProject, nil
	case "external-library", "external", "library", "vstd":
		return OriginExternalLibrary, nil
	case "other":
		return OriginOther, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidOrigin, s)
	}
}

// SourceLocation is the file position of a lemma declaration.
// It is opaque to ranking and used only for display and identity.
type SourceLocation struct {
	FilePath string
	line     int
	hasLine  bool
}

// NewSourceLocation creates a location without a line number.
func NewSourceLocation(path string) SourceLocation {
	return SourceLocation{FilePath: path}
}

// WithLine returns a copy of the location carrying a line number.
func (l SourceLocation) WithLine(line int) SourceLocation {
	l.line = line
	l.hasLine = true
	return l
}

// Line returns the line number and whether one is known.
func (l SourceLocation) Line() (int, bool) {
	return l.line, l.hasLine
}

// String renders the location as path or path:line.
func (l SourceLocation) String() string {
	if l.hasLine {
		return fmt.Sprintf("%s:%d", l.FilePath, l.line)
	}
	return l.FilePath
}

// Embedding is an optional fixed-length vector.
// The zero value is an absent embedding, which is distinct from a present
// vector whose components are all zero.
type Embedding struct {
	values  []float32
	present bool
}

// NoEmbedding returns an absent embedding.
func NoEmbedding() Embedding {
	return Embedding{}
}

// NewEmbedding returns a present embedding holding a copy of values.
func NewEmbedding(values []float32) Embedding {
	v := make([]float32, len(values))
	copy(v, values)
	return Embedding{values: v, present: true}
}

// Present reports whether a vector is attached.
func (e Embedding) Present() bool {
	return e.present
}

// Values returns the vector and whether it is present.
// The returned slice is shared and must not be modified.
func (e Embedding) Values() ([]float32, bool) {
	return e.values, e.present
}

// Dim returns the vector length, or 0 when absent.
func (e Embedding) Dim() int {
	if !e.present {
		return 0
	}
	return len(e.values)
}

// LemmaRecord is one indexed lemma.
type LemmaRecord struct {
	Name          string
	Location      SourceLocation
	Documentation string
	Signature     string
	Requires      []string // insertion order, compared as a set
	Ensures       []string
	Decreases     []string
	Origin        Origin
	SymbolID      string // identifier assigned by the symbol extractor, if any
	Embedding     Embedding
}

// ID returns the storage identifier for the record.
func (r *LemmaRecord) ID() ID {
	return IDFromContent(r.Name)
}

// HasSpecs reports whether any requires or ensures clause is known.
func (r *LemmaRecord) HasSpecs() bool {
	return len(r.Requires) > 0 || len(r.Ensures) > 0
}

// Clauses returns requires, ensures and decreases clauses in that order.
func (r *LemmaRecord) Clauses() []string {
	out := make([]string, 0, len(r.Requires)+len(r.Ensures)+len(r.Decreases))
	out = append(out, r.Requires...)
	out = append(out, r.Ensures...)
	out = append(out, r.Decreases...)
	return out
}

// Clone returns a copy that shares no slices with r.
func (r *LemmaRecord) Clone() *LemmaRecord {
	c := *r
	c.Requires = cloneStrings(r.Requires)
	c.Ensures = cloneStrings(r.Ensures)
	c.Decreases = cloneStrings(r.Decreases)
	if vals, ok := r.Embedding.Values(); ok {
		c.Embedding = NewEmbedding(vals)
	}
	return &c
}

// SearchableText renders the record as the text fed to an embedding model.
func (r *LemmaRecord) SearchableText() string {
	parts := []string{
		"Name: " + r.Name,
		"Documentation: " + r.Documentation,
		"Signature: " + r.Signature,
	}
	if len(r.Requires) > 0 {
		parts = append(parts, "Preconditions: "+strings.Join(r.Requires, " AND "))
	}
	if len(r.Ensures) > 0 {
		parts = append(parts, "Postconditions: "+strings.Join(r.Ensures, " AND "))
	}
	if len(r.Decreases) > 0 {
		parts = append(parts, "Decreases: "+strings.Join(r.Decreases, ", "))
	}
	return strings.Join(parts, " ")
}

// Display renders the record for terminal output.
func (r *LemmaRecord) Display() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if r.Origin != OriginProject {
		sb.WriteString(" (" + r.Origin.String() + ")")
	}
	sb.WriteString("\n  " + r.Location.String())
	if r.Documentation != "" {
		sb.WriteString("\n  " + r.Documentation)
	}
	if r.Signature != "" {
		sb.WriteString("\n  " + r.Signature)
	}
	writeClauses(&sb, "requires", r.Requires)
	writeClauses(&sb, "ensures", r.Ensures)
	writeClauses(&sb, "decreases", r.Decreases)
	return sb.String()
}

func writeClauses(sb *strings.Builder, label string, clauses []string) {
	if len(clauses) == 0 {
		return
	}
	sb.WriteString("\n  " + label + ":")
	for _, c := range clauses {
		sb.WriteString("\n    - " + strings.TrimSpace(c))
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// QueryVariant is one canonical rewrite of a raw query.
type QueryVariant struct {
	Text   string
	Weight float64 // fusion weight; non-positive values mean the default of 1.0
}

// NewQueryVariant returns a variant with the default weight.
func NewQueryVariant(text string) QueryVariant {
	return QueryVariant{Text: text, Weight: 1.0}
}

// EffectiveWeight returns the weight used during fusion.
func (q QueryVariant) EffectiveWeight() float64 {
	if q.Weight <= 0 {
		return 1.0
	}
	return q.Weight
}

// RankingSource identifies which scoring mode produced a ranking.
type RankingSource int

const (
	SourceLexical RankingSource = iota + 1
	SourceSemantic
	SourceHybrid
)

// String returns the name of the ranking source.
func (s RankingSource) String() string {
	switch s {
	case SourceLexical:
		return "lexical"
	case SourceSemantic:
		return "semantic"
	case SourceHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the three ranking modes.
func (s RankingSource) Valid() bool {
	return s >= SourceLexical && s <= SourceHybrid
}

// ParseRankingSource converts a mode name into a RankingSource.
func ParseRankingSource(s string) (RankingSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "keyword":
		return SourceLexical, nil
	case "semantic":
		return SourceSemantic, nil
	case "hybrid", "":
		return SourceHybrid, nil
	default:
		return 0, fmt.Errorf("%w: unknown search mode %q", ErrValidation, s)
	}
}

// ScoredResult is a transient ranked hit.
type ScoredResult struct {
	Record         *LemmaRecord
	Score          float64
	Source         RankingSource
	LexicalScore   float64 // best raw lexical score over query variants
	SemanticScore  float64 // best raw cosine over query variants, valid when HasSemantic
	HasSemantic    bool
	MatchedClauses []string
}

// IndexMetadata describes a built index.
type IndexMetadata struct {
	Version        string
	CreatedAt      time.Time
	Dimension      int
	EmbeddingModel string
	RepoRoot       string
	Count          int
}

package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Index is an ordered, read-only collection of lemmas sharing one embedding
// dimensionality. It is safe for concurrent readers because nothing mutates
// it after construction.
type Index struct {
	records []*LemmaRecord
	byName  map[string]int
	meta    IndexMetadata
}

// NewVersion returns a fresh index version tag.
func NewVersion() string {
	return uuid.NewString()
}

// NewIndex builds an Index from records, which are copied.
// Records must have unique names and every present embedding must have the
// same length. A non-zero meta.Dimension must agree with the records.
// A missing version or creation time is filled in.
func NewIndex(records []*LemmaRecord, meta IndexMetadata) (*Index, error) {
	idx := &Index{
		records: make([]*LemmaRecord, 0, len(records)),
		byName:  make(map[string]int, len(records)),
		meta:    meta,
	}

	for _, rec := range records {
		if err := ValidateLemma(rec); err != nil {
			return nil, err
		}
		if _, dup := idx.byName[rec.Name]; dup {
			return nil, fmt.Errorf("%w: %w: %q", ErrValidation, ErrDuplicateName, rec.Name)
		}
		if dim := rec.Embedding.Dim(); dim > 0 {
			if idx.meta.Dimension == 0 {
				idx.meta.Dimension = dim
			} else if dim != idx.meta.Dimension {
				return nil, fmt.Errorf("%w: %w: lemma %q has %d, index has %d",
					ErrValidation, ErrDimensionMismatch, rec.Name, dim, idx.meta.Dimension)
			}
		}
		idx.byName[rec.Name] = len(idx.records)
		idx.records = append(idx.records, rec.Clone())
	}

	if idx.meta.Version == "" {
		idx.meta.Version = NewVersion()
	}
	if idx.meta.CreatedAt.IsZero() {
		idx.meta.CreatedAt = time.Now().UTC()
	}
	idx.meta.Count = len(idx.records)
	return idx, nil
}

// Len returns the number of records.
func (i *Index) Len() int {
	return len(i.records)
}

// Records returns the records in index order.
// The records themselves are shared and must not be modified.
func (i *Index) Records() []*LemmaRecord {
	out := make([]*LemmaRecord, len(i.records))
	copy(out, i.records)
	return out
}

// At returns the record at position n.
func (i *Index) At(n int) *LemmaRecord {
	return i.records[n]
}

// Lookup finds a record by name.
func (i *Index) Lookup(name string) (*LemmaRecord, bool) {
	n, ok := i.byName[name]
	if !ok {
		return nil, false
	}
	return i.records[n], true
}

// Get finds a record by name, returning ErrNotFound when absent.
func (i *Index) Get(name string) (*LemmaRecord, error) {
	rec, ok := i.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rec, nil
}

// Dimension returns the shared embedding length, or 0 if no record has one.
func (i *Index) Dimension() int {
	return i.meta.Dimension
}

// Metadata returns a copy of the index metadata.
func (i *Index) Metadata() IndexMetadata {
	return i.meta
}

// Version returns the index version tag.
func (i *Index) Version() string {
	return i.meta.Version
}

// CreatedAt returns when the index was built.
func (i *Index) CreatedAt() time.Time {
	return i.meta.CreatedAt
}

// EmbeddedCount returns how many records carry an embedding.
func (i *Index) EmbeddedCount() int {
	n := 0
	for _, rec := range i.records {
		if rec.Embedding.Present() {
			n++
		}
	}
	return n
}

// HasEmbeddings reports whether at least one record carries an embedding.
func (i *Index) HasEmbeddings() bool {
	return i.EmbeddedCount() > 0
}

// Merge combines two indexes into a new one; neither input is modified.
//
// Embedding dimensions must match when both sides have embeddings.
// Records of b whose name already exists in a are kept under the name
// "name@origin" when the origins differ. Equal origins, or a qualified
// name that still collides, fail with ErrDuplicateName.
func Merge(a, b *Index) (*Index, error) {
	if a.Dimension() > 0 && b.Dimension() > 0 && a.Dimension() != b.Dimension() {
		return nil, fmt.Errorf("%w: %w: cannot merge %d with %d",
			ErrValidation, ErrDimensionMismatch, a.Dimension(), b.Dimension())
	}

	merged := make([]*LemmaRecord, 0, a.Len()+b.Len())
	names := make(map[string]*LemmaRecord, a.Len()+b.Len())
	for _, rec := range a.records {
		merged = append(merged, rec)
		names[rec.Name] = rec
	}

	for _, rec := range b.records {
		existing, collides := names[rec.Name]
		if !collides {
			merged = append(merged, rec)
			names[rec.Name] = rec
			continue
		}
		if existing.Origin == rec.Origin {
			return nil, fmt.Errorf("%w: %w: %q exists in both indexes with origin %s",
				ErrValidation, ErrDuplicateName, rec.Name, rec.Origin)
		}
		qualified := QualifiedName(rec)
		if _, taken := names[qualified]; taken {
			return nil, fmt.Errorf("%w: %w: %q", ErrValidation, ErrDuplicateName, qualified)
		}
		renamed := rec.Clone()
		renamed.Name = qualified
		merged = append(merged, renamed)
		names[qualified] = renamed
	}

	meta := IndexMetadata{
		Dimension:      max(a.Dimension(), b.Dimension()),
		EmbeddingModel: a.meta.EmbeddingModel,
		RepoRoot:       a.meta.RepoRoot,
	}
	if meta.EmbeddingModel == "" {
		meta.EmbeddingModel = b.meta.EmbeddingModel
	}
	return NewIndex(merged, meta)
}

// QualifiedName returns the origin-qualified name used to disambiguate merges.
func QualifiedName(rec *LemmaRecord) string {
	return rec.Name + "@" + rec.Origin.String()
}

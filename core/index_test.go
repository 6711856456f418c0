package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lemma(name string, origin Origin, vec ...float32) *LemmaRecord {
	rec := &LemmaRecord{Name: name, Origin: origin}
	if len(vec) > 0 {
		rec.Embedding = NewEmbedding(vec)
	}
	return rec
}

func TestNewIndex(t *testing.T) {
	idx, err := NewIndex([]*LemmaRecord{
		lemma("b", OriginProject, 1, 0),
		lemma("a", OriginProject),
	}, IndexMetadata{EmbeddingModel: "test"})
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 2, idx.Dimension())
	assert.Equal(t, 1, idx.EmbeddedCount())
	assert.True(t, idx.HasEmbeddings())
	assert.NotEmpty(t, idx.Version())
	assert.False(t, idx.CreatedAt().IsZero())
	assert.Equal(t, 2, idx.Metadata().Count)

	// insertion order is preserved
	assert.Equal(t, "b", idx.Records()[0].Name)
	assert.Equal(t, "a", idx.At(1).Name)

	rec, ok := idx.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", rec.Name)
}

func TestNewIndex_DuplicateName(t *testing.T) {
	_, err := NewIndex([]*LemmaRecord{
		lemma("a", OriginProject),
		lemma("a", OriginExternalLibrary),
	}, IndexMetadata{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestNewIndex_DimensionMismatch(t *testing.T) {
	_, err := NewIndex([]*LemmaRecord{
		lemma("a", OriginProject, 1, 0),
		lemma("b", OriginProject, 1, 0, 0),
	}, IndexMetadata{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewIndex([]*LemmaRecord{lemma("a", OriginProject, 1, 0)}, IndexMetadata{Dimension: 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestIndex_Get(t *testing.T) {
	idx, err := NewIndex([]*LemmaRecord{lemma("a", OriginProject)}, IndexMetadata{})
	require.NoError(t, err)

	_, err = idx.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_IsolatedFromInput(t *testing.T) {
	in := lemma("a", OriginProject)
	in.Requires = []string{"x > 0"}
	idx, err := NewIndex([]*LemmaRecord{in}, IndexMetadata{})
	require.NoError(t, err)

	in.Requires[0] = "mutated"
	rec, _ := idx.Lookup("a")
	assert.Equal(t, "x > 0", rec.Requires[0])
}

func TestMerge(t *testing.T) {
	a, err := NewIndex([]*LemmaRecord{
		lemma("shared", OriginProject, 1, 0),
		lemma("only_a", OriginProject, 0, 1),
	}, IndexMetadata{EmbeddingModel: "m"})
	require.NoError(t, err)
	b, err := NewIndex([]*LemmaRecord{
		lemma("shared", OriginExternalLibrary, 1, 1),
		lemma("only_b", OriginExternalLibrary),
	}, IndexMetadata{})
	require.NoError(t, err)

	merged, err := Merge(a, b)
	require.NoError(t, err)

	assert.Equal(t, 4, merged.Len())
	assert.Equal(t, 2, merged.Dimension())
	assert.Equal(t, "m", merged.Metadata().EmbeddingModel)
	assert.NotEqual(t, a.Version(), merged.Version())

	_, ok := merged.Lookup("shared")
	assert.True(t, ok)
	renamed, ok := merged.Lookup("shared@external-library")
	require.True(t, ok)
	assert.Equal(t, OriginExternalLibrary, renamed.Origin)

	// inputs untouched
	assert.Equal(t, 2, a.Len())
	_, ok = b.Lookup("shared")
	assert.True(t, ok)
}

func TestMerge_DimensionMismatch(t *testing.T) {
	a, err := NewIndex([]*LemmaRecord{lemma("a", OriginProject, 1, 0)}, IndexMetadata{})
	require.NoError(t, err)
	b, err := NewIndex([]*LemmaRecord{lemma("b", OriginProject, 1, 0, 0)}, IndexMetadata{})
	require.NoError(t, err)

	merged, err := Merge(a, b)
	assert.Nil(t, merged)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMerge_UnembeddedSideAccepted(t *testing.T) {
	a, err := NewIndex([]*LemmaRecord{lemma("a", OriginProject, 1, 0)}, IndexMetadata{})
	require.NoError(t, err)
	b, err := NewIndex([]*LemmaRecord{lemma("b", OriginProject)}, IndexMetadata{})
	require.NoError(t, err)

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Dimension())
}

func TestMerge_SameOriginCollision(t *testing.T) {
	a, err := NewIndex([]*LemmaRecord{lemma("x", OriginProject)}, IndexMetadata{})
	require.NoError(t, err)
	b, err := NewIndex([]*LemmaRecord{lemma("x", OriginProject)}, IndexMetadata{})
	require.NoError(t, err)

	_, err = Merge(a, b)
	assert.ErrorIs(t, err, ErrDuplicateName)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMerge_QualifiedNameCollision(t *testing.T) {
	a, err := NewIndex([]*LemmaRecord{
		lemma("x", OriginProject),
		lemma("x@other", OriginProject),
	}, IndexMetadata{})
	require.NoError(t, err)
	b, err := NewIndex([]*LemmaRecord{lemma("x", OriginOther)}, IndexMetadata{})
	require.NoError(t, err)

	_, err = Merge(a, b)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

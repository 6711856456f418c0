package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "lemma name", content: "lemma_mul_le_implies_div_le"},
		{name: "empty string", content: ""},
		{name: "qualified name", content: "lemma_add_comm@external-library"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}

	assert.NotEqual(t, IDFromContent("lemma_a"), IDFromContent("lemma_b"))
}

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    Origin
		wantErr bool
	}{
		{in: "", want: OriginProject},
		{in: "project", want: OriginProject},
		{in: "vstd", want: OriginExternalLibrary},
		{in: "External-Library", want: OriginExternalLibrary},
		{in: "other", want: OriginOther},
		{in: "nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrigin(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOrigin)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceLocation(t *testing.T) {
	loc := NewSourceLocation("src/arith.rs")
	_, ok := loc.Line()
	assert.False(t, ok)
	assert.Equal(t, "src/arith.rs", loc.String())

	withLine := loc.WithLine(42)
	line, ok := withLine.Line()
	assert.True(t, ok)
	assert.Equal(t, 42, line)
	assert.Equal(t, "src/arith.rs:42", withLine.String())

	// original is unchanged
	_, ok = loc.Line()
	assert.False(t, ok)
}

func TestEmbedding_AbsentVersusZero(t *testing.T) {
	absent := NoEmbedding()
	assert.False(t, absent.Present())
	assert.Equal(t, 0, absent.Dim())

	zero := NewEmbedding([]float32{0, 0, 0})
	assert.True(t, zero.Present())
	assert.Equal(t, 3, zero.Dim())

	vals, ok := zero.Values()
	assert.True(t, ok)
	assert.Equal(t, []float32{0, 0, 0}, vals)
}

func TestNewEmbedding_CopiesInput(t *testing.T) {
	in := []float32{1, 2}
	e := NewEmbedding(in)
	in[0] = 9

	vals, _ := e.Values()
	assert.Equal(t, float32(1), vals[0])
}

func TestLemmaRecord_SearchableText(t *testing.T) {
	rec := &LemmaRecord{
		Name:          "lemma_div_pos",
		Documentation: "division of positives",
		Signature:     "proof fn lemma_div_pos(a: int, b: int)",
		Requires:      []string{"a > 0", "b > 0"},
		Ensures:       []string{"a / b >= 0"},
	}

	text := rec.SearchableText()
	assert.Contains(t, text, "Name: lemma_div_pos")
	assert.Contains(t, text, "Preconditions: a > 0 AND b > 0")
	assert.Contains(t, text, "Postconditions: a / b >= 0")
	assert.NotContains(t, text, "Decreases")
}

func TestLemmaRecord_Clone(t *testing.T) {
	rec := &LemmaRecord{
		Name:      "lemma",
		Requires:  []string{"b > 0"},
		Embedding: NewEmbedding([]float32{1, 0}),
	}
	c := rec.Clone()
	c.Requires[0] = "changed"

	assert.Equal(t, "b > 0", rec.Requires[0])
	assert.True(t, c.Embedding.Present())
}

func TestLemmaRecord_Display(t *testing.T) {
	rec := &LemmaRecord{
		Name:     "lemma_x",
		Location: NewSourceLocation("a.rs").WithLine(3),
		Origin:   OriginExternalLibrary,
		Ensures:  []string{"  x <= y "},
	}
	out := rec.Display()
	assert.Contains(t, out, "lemma_x (external-library)")
	assert.Contains(t, out, "a.rs:3")
	assert.Contains(t, out, "- x <= y")
}

func TestQueryVariant_EffectiveWeight(t *testing.T) {
	assert.Equal(t, 1.0, NewQueryVariant("q").EffectiveWeight())
	assert.Equal(t, 1.0, QueryVariant{Text: "q"}.EffectiveWeight())
	assert.Equal(t, 0.5, QueryVariant{Text: "q", Weight: 0.5}.EffectiveWeight())
}

func TestParseRankingSource(t *testing.T) {
	for in, want := range map[string]RankingSource{
		"hybrid":   SourceHybrid,
		"":         SourceHybrid,
		"semantic": SourceSemantic,
		"lexical":  SourceLexical,
		"keyword":  SourceLexical,
	} {
		got, err := ParseRankingSource(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseRankingSource("fuzzy")
	assert.ErrorIs(t, err, ErrValidation)

	assert.True(t, SourceSemantic.Valid())
	assert.False(t, RankingSource(0).Valid())
	assert.False(t, RankingSource(9).Valid())
}

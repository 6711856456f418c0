package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const divSource = `use vstd::prelude::*;

verus! {

/// Dividing both sides keeps the order.
pub proof fn lemma_mul_le_implies_div_le(a: nat, b: nat, c: nat)
    requires
        b > 0,
        a * b <= c,
    ensures
        a <= c / b,
{
    lemma_div_is_ordered(a * b, c, b as int);
}

pub proof fn lemma_sum_bound(s: Seq<int>, n: int)
    requires
        forall|i: int, j: int| 0 <= i < j < s.len() ==> s[i] <= s[j], // sorted
        max(n, s.len() as int) == n,
    ensures
        sum(s, 0, s.len()) <= n * s.len(),
    decreases s.len()
{
}

pub open spec fn no_specs(x: int) -> int {
    x + 1
}

}
`

func TestNewClauseExtractor(t *testing.T) {
	for engine, name := range map[string]string{
		EngineAuto:    "scanner+regex",
		"":            "scanner+regex",
		EngineScanner: "scanner",
		EngineRegex:   "regex",
	} {
		e, err := NewClauseExtractor(engine)
		require.NoError(t, err)
		assert.Equal(t, name, e.Name())
	}

	_, err := NewClauseExtractor("parser")
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestExtractors_SimpleHeader(t *testing.T) {
	for _, e := range []ClauseExtractor{NewRegexExtractor(), NewScanExtractor()} {
		t.Run(e.Name(), func(t *testing.T) {
			specs, err := e.Extract(divSource, "lemma_mul_le_implies_div_le")
			require.NoError(t, err)
			assert.True(t, specs.Found())
			assert.Equal(t, 6, specs.Line)
			assert.Equal(t, []string{"b > 0", "a * b <= c"}, specs.Requires)
			assert.Equal(t, []string{"a <= c / b"}, specs.Ensures)
			assert.Empty(t, specs.Decreases)
		})
	}
}

func TestExtractors_MissingFunction(t *testing.T) {
	for _, e := range []ClauseExtractor{NewRegexExtractor(), NewScanExtractor()} {
		specs, err := e.Extract(divSource, "lemma_absent")
		require.NoError(t, err)
		assert.False(t, specs.Found())
		assert.Empty(t, specs.Requires)
	}
}

func TestExtractors_NoSpecs(t *testing.T) {
	for _, e := range []ClauseExtractor{NewRegexExtractor(), NewScanExtractor()} {
		specs, err := e.Extract(divSource, "no_specs")
		require.NoError(t, err)
		assert.True(t, specs.Found())
		assert.Empty(t, specs.Requires)
		assert.Empty(t, specs.Ensures)
	}
}

func TestScanExtractor_Nesting(t *testing.T) {
	specs, err := NewScanExtractor().Extract(divSource, "lemma_sum_bound")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"forall|i: int, j: int| 0 <= i < j < s.len() ==> s[i] <= s[j]",
		"max(n, s.len() as int) == n",
	}, specs.Requires)
	assert.Equal(t, []string{"sum(s, 0, s.len()) <= n * s.len()"}, specs.Ensures)
	assert.Equal(t, []string{"s.len()"}, specs.Decreases)
}

func TestRegexExtractor_SplitsNestedCommas(t *testing.T) {
	specs, err := NewRegexExtractor().Extract(divSource, "lemma_sum_bound")
	require.NoError(t, err)
	assert.Greater(t, len(specs.Requires), 2)
	assert.Equal(t, "forall|i: int", specs.Requires[0])
}

func TestScanExtractor_Unbalanced(t *testing.T) {
	src := "proof fn broken(a: int)\n    requires (a > 0,\n    ensures a ]\n{\n}\n"
	_, err := NewScanExtractor().Extract(src, "broken")
	assert.ErrorIs(t, err, ErrUnbalanced)

	// auto falls back to the regex extractor
	auto, err := NewClauseExtractor(EngineAuto)
	require.NoError(t, err)
	specs, err := auto.Extract(src, "broken")
	require.NoError(t, err)
	assert.True(t, specs.Found())
	assert.Equal(t, []string{"(a > 0"}, specs.Requires)
}

func TestScanExtractor_CommentsAndLiterals(t *testing.T) {
	src := `fn lit(c: char)
    requires
        c != '{', /* block, comment */ c != '}',
        "a,b".len() == 3,
    ensures true;
`
	specs, err := NewScanExtractor().Extract(src, "lit")
	require.NoError(t, err)
	assert.Equal(t, []string{"c != '{'", "c != '}'", `"a,b".len() == 3`}, specs.Requires)
	assert.Equal(t, []string{"true"}, specs.Ensures)
}

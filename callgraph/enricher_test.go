package callgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const graphJSON = `{
  "graph_id": "div-crate",
  "nodes": [
    {
      "id": 1,
      "display_name": "lemma_div_a",
      "body": "proof fn lemma_div_a(a: nat, b: nat, c: nat)\n    requires b > 0"
    },
    {"id": 2, "display_name": "", "body": "fn main() {}"},
    {
      "id": 3,
      "display_name": "unrelated_qqq",
      "similar_lemmas": [{"name": "stale", "score": 0.5, "file_path": "x.rs", "line_number": null, "signature": ""}]
    }
  ],
  "edges": [{"from": 1, "to": 3}]
}`

func lemmas() []*core.LemmaRecord {
	return []*core.LemmaRecord{
		{
			Name:          "lemma_div_a",
			Location:      core.NewSourceLocation("src/div.rs").WithLine(3),
			Documentation: "division keeps the order",
			Signature:     "proof fn lemma_div_a(a: nat, b: nat, c: nat)",
			Requires:      []string{"b > 0", "a * b <= c"},
			Ensures:       []string{"a <= c / b"},
			Origin:        core.OriginProject,
		},
		{
			Name:          "lemma_div_b",
			Location:      core.NewSourceLocation("src/div.rs").WithLine(12),
			Documentation: "division keeps the order",
			Signature:     "proof fn lemma_div_b(a: nat, b: nat, c: nat)",
			Requires:      []string{"a * b <= c", "b > 0"},
			Ensures:       []string{"a <= c / b"},
			Origin:        core.OriginProject,
		},
		{
			Name:          "lemma_seq_len_nonneg",
			Location:      core.NewSourceLocation("src/seq.rs"),
			Documentation: "the length of a sequence is never negative",
			Ensures:       []string{"s.len() >= 0"},
			Origin:        core.OriginExternalLibrary,
		},
	}
}

func newSearcher(t *testing.T) *search.Searcher {
	t.Helper()
	idx, err := core.NewIndex(lemmas(), core.IndexMetadata{})
	require.NoError(t, err)
	s, err := search.NewSearcher(idx, search.WithMode(core.SourceLexical))
	require.NoError(t, err)
	return s
}

func readGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := ReadGraph(strings.NewReader(graphJSON))
	require.NoError(t, err)
	return g
}

func TestReadGraph(t *testing.T) {
	g := readGraph(t)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "lemma_div_a", g.Nodes[0].DisplayName)
	assert.Contains(t, g.Nodes[0].Body, "requires b > 0")
	assert.Empty(t, g.Nodes[1].DisplayName)
	require.Len(t, g.Nodes[2].Similar, 1)
	assert.Nil(t, g.Nodes[2].Similar[0].LineNumber)

	g, err := ReadGraph(strings.NewReader(`{"graph_id": "empty"}`))
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)

	for _, bad := range []string{`[1, 2]`, `null`, `{"nodes": 3}`, `{"nodes": [null]}`, `{"nodes": [{"display_name": 7}]}`} {
		_, err := ReadGraph(strings.NewReader(bad))
		assert.ErrorIs(t, err, ErrInvalidGraph, bad)
	}

	_, err = LoadGraph(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewEnricher(t *testing.T) {
	_, err := NewEnricher(nil)
	assert.ErrorIs(t, err, ErrSearcherRequired)

	_, err = NewEnricher(newSearcher(t), WithTopK(0))
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = NewEnricher(newSearcher(t), WithBodyLines(-1))
	assert.ErrorIs(t, err, core.ErrValidation)

	e, err := NewEnricher(newSearcher(t), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, defaultTopK, e.topK)
}

func TestEnrich(t *testing.T) {
	var progress bytes.Buffer
	e, err := NewEnricher(newSearcher(t), WithTopK(1), WithProgress(&progress))
	require.NoError(t, err)

	g := readGraph(t)
	stats, err := e.Enrich(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, Stats{Nodes: 3, Skipped: 1, Enriched: 1}, stats)
	assert.Contains(t, progress.String(), "3/3")

	// The node itself is excluded
	require.Len(t, g.Nodes[0].Similar, 1)
	similar := g.Nodes[0].Similar[0]
	assert.Equal(t, "lemma_div_b", similar.Name)
	assert.Equal(t, "src/div.rs", similar.FilePath)
	require.NotNil(t, similar.LineNumber)
	assert.Equal(t, 12, *similar.LineNumber)
	assert.Equal(t, "proof fn lemma_div_b(a: nat, b: nat, c: nat)", similar.Signature)
	assert.Greater(t, similar.Score, 0.0)
	assert.Equal(t, math.Round(similar.Score*1000)/1000, similar.Score)

	// No match replaces stale annotations
	assert.Empty(t, g.Nodes[2].Similar)
}

func TestEnrich_WritesDocumentBack(t *testing.T) {
	e, err := NewEnricher(newSearcher(t), WithTopK(2))
	require.NoError(t, err)
	g := readGraph(t)
	_, err = e.Enrich(context.Background(), g)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		GraphID string           `json:"graph_id"`
		Edges   []map[string]int `json:"edges"`
		Nodes   []map[string]any `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "div-crate", doc.GraphID)
	assert.Equal(t, []map[string]int{{"from": 1, "to": 3}}, doc.Edges)
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, float64(1), doc.Nodes[0]["id"])
	assert.Contains(t, doc.Nodes[0], "similar_lemmas")
	assert.NotContains(t, doc.Nodes[1], "similar_lemmas")
	assert.NotContains(t, doc.Nodes[2], "similar_lemmas")

	// Reading the output back gives the same annotations
	again, err := LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, g.Nodes[0].Similar, again.Nodes[0].Similar)
}

// recordingSearcher captures requests and fails when err is set.
type recordingSearcher struct {
	requests []search.Request
	err      error
}

func (r *recordingSearcher) SearchWithMonitor(_ context.Context, req search.Request, _ search.SearchMonitor) (*search.Response, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &search.Response{}, nil
}

func TestEnrich_Query(t *testing.T) {
	rec := &recordingSearcher{}
	e, err := NewEnricher(rec, WithTopK(4))
	require.NoError(t, err)

	body := "l1\nl2\nl3\nl4\nl5\nl6\nl7"
	g := &Graph{Nodes: []*Node{{DisplayName: "f", Body: body}, {DisplayName: "g"}}}
	stats, err := e.Enrich(context.Background(), g)
	require.NoError(t, err)
	assert.Zero(t, stats.Enriched)

	require.Len(t, rec.requests, 2)
	assert.Equal(t, "f l1 l2 l3 l4 l5", rec.requests[0].Query)
	assert.Equal(t, 5, rec.requests[0].TopK)
	assert.Equal(t, "g", rec.requests[1].Query)
}

func TestEnrich_Errors(t *testing.T) {
	t.Run("search failure", func(t *testing.T) {
		errEmbed := errors.New("model offline")
		e, err := NewEnricher(&recordingSearcher{err: errEmbed})
		require.NoError(t, err)
		_, err = e.Enrich(context.Background(), readGraph(t))
		assert.ErrorIs(t, err, errEmbed)
		assert.Contains(t, err.Error(), "lemma_div_a")
	})

	t.Run("cancelled", func(t *testing.T) {
		e, err := NewEnricher(&recordingSearcher{})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = e.Enrich(ctx, readGraph(t))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

package lemmafind

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/lemmafind/ai/mock"
	"github.com/poiesic/lemmafind/config"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecords() []*core.LemmaRecord {
	return []*core.LemmaRecord{
		{
			Name:          "lemma_mul_le_implies_div_le",
			Location:      core.NewSourceLocation("src/div.rs").WithLine(1),
			Documentation: "if a*b<=c and b>0 then a<=c/b",
			Origin:        core.OriginProject,
		},
		{
			Name:          "lemma_seq_len_nonneg",
			Location:      core.NewSourceLocation("src/seq.rs"),
			Documentation: "the length of a sequence is never negative",
			Ensures:       []string{"s.len() >= 0"},
			Origin:        core.OriginProject,
		},
	}
}

func newTestDatabase(t *testing.T, opts ...DatabaseOption) *Database {
	t.Helper()
	base := []DatabaseOption{WithProvider(mock.NewMockProviderWithEmbedder(mock.NewTokenEmbedder(
		"length", "sequence", "negative", "div", "mul",
	), "token-5"))}
	db, err := NewDatabase(filepath.Join(t.TempDir(), "lemmas.db"), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ingest(t *testing.T, db *Database, records ...*core.LemmaRecord) *core.Index {
	t.Helper()
	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	result, err := pipeline.Ingest(context.Background(), &core.IndexFile{Lemmas: records})
	require.NoError(t, err)
	return result.Index
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.LemmaRepository())
		assert.NotNil(t, db.MetadataRepository())
		assert.NotNil(t, db.Embedder())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("embeddings disabled", func(t *testing.T) {
		cfg := config.NewConfig(config.WithEmbeddingsDisabled())
		db, err := NewDatabase("", WithInMemory(), WithConfig(cfg))
		require.NoError(t, err)
		defer db.Close()
		assert.Nil(t, db.Embedder())

		err = db.Reembed(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmbeddingsDisabled)
	})

	t.Run("error with invalid config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Search.DefaultTopK = 0
		db, err := NewDatabase(t.TempDir(), WithConfig(cfg))
		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Nil(t, db)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile)
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	tmpDir := t.TempDir()
	db, err := NewDatabase(tmpDir)
	require.NoError(t, err)
	require.NotNil(t, db)

	// Close the database
	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_IngestAndSearch(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	ingest(t, db, testRecords()...)

	idx, err := db.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 5, idx.Dimension())
	assert.Equal(t, "token-5", idx.Metadata().EmbeddingModel)
	assert.Equal(t, "lemma_mul_le_implies_div_le", idx.At(0).Name)

	searcher, err := db.NewSearcher(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.SourceHybrid, searcher.Mode())

	resp, err := searcher.Search(ctx, "length of a sequence")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "lemma_seq_len_nonneg", resp.Results[0].Record.Name)
	assert.False(t, resp.Degraded())

	detector, err := db.NewDetector()
	require.NoError(t, err)
	report, err := detector.Detect(ctx, idx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Compared)
}

func TestDatabase_LoadEmpty(t *testing.T) {
	db := newTestDatabase(t)
	idx, err := db.LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Zero(t, idx.Len())
	assert.NotEmpty(t, idx.Version())
}

func writeDivSource(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	src := "pub proof fn lemma_mul_le_implies_div_le(a: nat, b: nat, c: nat)\n" +
		"    requires\n        b > 0,\n        a * b <= c,\n    ensures\n        a <= c / b,\n{\n}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "div.rs"), []byte(src), 0644))
	return root
}

func storedVector(t *testing.T, db *Database, name string) []float32 {
	t.Helper()
	rec, err := db.LemmaRepository().GetLemma(context.Background(), name)
	require.NoError(t, err)
	v, ok := rec.Embedding.Values()
	require.True(t, ok)
	return v
}

func TestDatabase_FillSpecs(t *testing.T) {
	const div = "lemma_mul_le_implies_div_le"
	ctx := context.Background()

	newDB := func(t *testing.T) (*Database, *mock.MockEmbedder) {
		embedder := mock.NewMockEmbedder()
		embedder.Dim = 8
		db := newTestDatabase(t, WithProvider(mock.NewMockProviderWithEmbedder(embedder, "mock-8")))
		ingest(t, db, testRecords()...)
		return db, embedder
	}

	t.Run("filled lemmas are re-embedded", func(t *testing.T) {
		db, embedder := newDB(t)
		old := storedVector(t, db, div)

		var embedded []string
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			embedded = append(embedded, texts...)
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{0, 0, 0, 0, 0, 0, 0, 1}
			}
			return out, nil
		}

		result, err := db.FillSpecs(ctx, writeDivSource(t), false, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Filled)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, 1, result.Reembedded)
		require.Len(t, embedded, 1)
		assert.Contains(t, embedded[0], div)

		rec, err := db.LemmaRepository().GetLemma(ctx, div)
		require.NoError(t, err)
		assert.Equal(t, []string{"b > 0", "a * b <= c"}, rec.Requires)
		assert.Equal(t, []string{"a <= c / b"}, rec.Ensures)
		v := storedVector(t, db, div)
		assert.NotEqual(t, old, v)
		assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 1}, v)
	})

	t.Run("embeddings kept when not requested", func(t *testing.T) {
		db, _ := newDB(t)
		old := storedVector(t, db, div)

		result, err := db.FillSpecs(ctx, writeDivSource(t), false, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Filled)
		assert.Zero(t, result.Reembedded)
		assert.Equal(t, old, storedVector(t, db, div))
	})

	t.Run("different model is not mixed into the index", func(t *testing.T) {
		db, _ := newDB(t)
		old := storedVector(t, db, div)
		meta, err := db.MetadataRepository().LoadMetadata(ctx)
		require.NoError(t, err)
		meta.EmbeddingModel = "another-model"
		require.NoError(t, db.MetadataRepository().SaveMetadata(ctx, meta))

		result, err := db.FillSpecs(ctx, writeDivSource(t), false, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Filled)
		assert.Zero(t, result.Reembedded)
		assert.Equal(t, old, storedVector(t, db, div))
	})
}

func TestDatabase_Merge(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	a, err := core.NewIndex(testRecords(), core.IndexMetadata{})
	require.NoError(t, err)
	vstd := testRecords()[1]
	vstd.Origin = core.OriginExternalLibrary
	b, err := core.NewIndex([]*core.LemmaRecord{vstd}, core.IndexMetadata{})
	require.NoError(t, err)

	merged, err := db.Merge(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())

	count, err := db.LemmaRepository().CountLemmas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	_, err = db.LemmaRepository().GetLemma(ctx, core.QualifiedName(vstd))
	assert.NoError(t, err)

	_, err = db.Merge(ctx, a, b)
	assert.ErrorIs(t, err, ingestion.ErrStoreNotEmpty)
}

func TestDatabase_Reembed(t *testing.T) {
	cfg := config.NewConfig(config.WithEmbeddingsDisabled())
	ctx := context.Background()

	// Ingest without embeddings, then reembed with a provider
	plain := newTestDatabase(t, WithConfig(cfg), WithProvider(nil))
	ingest(t, plain, testRecords()...)
	idx, err := plain.LoadIndex(ctx)
	require.NoError(t, err)
	assert.False(t, idx.HasEmbeddings())

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 8
	db := newTestDatabase(t, WithProvider(mock.NewMockProviderWithEmbedder(embedder, "mock-8")))
	_, err = db.Merge(ctx, idx, mustIndex(t))
	require.NoError(t, err)

	require.NoError(t, db.Reembed(ctx, nil))

	idx, err = db.LoadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.EmbeddedCount())
	assert.Equal(t, 8, idx.Dimension())
	assert.Equal(t, "mock-8", idx.Metadata().EmbeddingModel)
}

func mustIndex(t *testing.T, records ...*core.LemmaRecord) *core.Index {
	t.Helper()
	idx, err := core.NewIndex(records, core.IndexMetadata{})
	require.NoError(t, err)
	return idx
}

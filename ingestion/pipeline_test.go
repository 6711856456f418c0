package ingestion

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/lemmafind/ai/mock"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/extraction"
	"github.com/poiesic/lemmafind/storage"
	"github.com/poiesic/lemmafind/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dump = `{
  "version": "extractor-1",
  "repo_root": "/src/vstd",
  "has_embeddings": false,
  "lemmas": [
    {
      "name": "lemma_mul_le_implies_div_le",
      "file_path": "src/div.rs",
      "line_number": 4,
      "documentation": "Dividing both sides keeps the order.",
      "signature": "pub proof fn lemma_mul_le_implies_div_le(a: nat, b: nat, c: nat)",
      "requires_clauses": ["b > 0", "a * b <= c"],
      "ensures_clauses": ["a <= c / b"],
      "source": "project"
    },
    {
      "name": "lemma_seq_len_nonneg",
      "file_path": "src/seq.rs",
      "line_number": null,
      "documentation": "",
      "signature": "proof fn lemma_seq_len_nonneg(s: Seq<int>)",
      "requires_clauses": [],
      "ensures_clauses": [],
      "source": "vstd",
      "extra_field": true
    }
  ]
}`

func setupTestRepositories(t *testing.T) (storage.LemmaRepository, storage.MetadataRepository) {
	backend, err := badger.OpenBackend(t.TempDir(), false)
	require.NoError(t, err)

	lemmaRepo, err := badger.NewLemmaRepository(backend)
	require.NoError(t, err)

	t.Cleanup(func() {
		lemmaRepo.Close()
		backend.Close()
	})

	return lemmaRepo, badger.NewMetadataRepository(backend)
}

func readDump(t *testing.T) *core.IndexFile {
	t.Helper()
	file, err := ReadIndexFile(strings.NewReader(dump))
	require.NoError(t, err)
	return file
}

func TestReadIndexFile(t *testing.T) {
	file := readDump(t)
	assert.Equal(t, "/src/vstd", file.RepoRoot)
	require.Len(t, file.Lemmas, 2)
	assert.Equal(t, core.OriginExternalLibrary, file.Lemmas[1].Origin)
	_, hasLine := file.Lemmas[1].Location.Line()
	assert.False(t, hasLine)

	_, err := ReadIndexFile(strings.NewReader(`{"lemmas": [null]}`))
	assert.ErrorIs(t, err, ErrIndexFile)

	_, err = ReadIndexFile(strings.NewReader(`{"lemmas": [{"name": "x", "source": "moon"}]}`))
	assert.ErrorIs(t, err, ErrIndexFile)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = LoadIndexFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewPipeline(t *testing.T) {
	lemmas, metadata := setupTestRepositories(t)

	_, err := NewPipeline(nil, metadata)
	assert.ErrorIs(t, err, ErrLemmaRepositoryRequired)

	_, err = NewPipeline(lemmas, nil)
	assert.ErrorIs(t, err, ErrMetadataRepositoryRequired)

	_, err = NewPipeline(lemmas, metadata, WithBatchSize(0))
	assert.ErrorIs(t, err, core.ErrValidation)

	p, err := NewPipeline(lemmas, metadata, WithPoolSize(0), WithLogger(nil))
	require.NoError(t, err)
	p.Release()
}

func TestIngest_WithoutEmbeddings(t *testing.T) {
	lemmas, metadata := setupTestRepositories(t)
	p, err := NewPipeline(lemmas, metadata, WithBatchSize(1))
	require.NoError(t, err)
	defer p.Release()

	ctx := context.Background()
	file := readDump(t)
	result, err := p.Ingest(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Index.Len())
	assert.Zero(t, result.Embedded)
	assert.False(t, result.Index.HasEmbeddings())

	stored, err := lemmas.ListLemmas(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "lemma_mul_le_implies_div_le", stored[0].Name)
	assert.Equal(t, []string{"b > 0", "a * b <= c"}, stored[0].Requires)

	meta, err := metadata.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.Index.Version(), meta.Version)
	assert.Equal(t, "/src/vstd", meta.RepoRoot)
	assert.Equal(t, 2, meta.Count)
	assert.Zero(t, meta.Dimension)

	// The store now holds lemmas
	_, err = p.Ingest(ctx, file)
	assert.ErrorIs(t, err, ErrStoreNotEmpty)
}

func TestIngest_WithEmbeddings(t *testing.T) {
	lemmas, metadata := setupTestRepositories(t)

	embedder := mock.NewMockEmbedder()
	embedder.Dim = 16
	var progress bytes.Buffer
	p, err := NewPipeline(lemmas, metadata,
		WithEmbedder(embedder, "mock-16"),
		WithBatchSize(1),
		WithPoolSize(2),
		WithProgress(&progress),
		WithRepoRoot("/work/vstd"))
	require.NoError(t, err)
	defer p.Release()

	ctx := context.Background()
	file := readDump(t)
	result, err := p.Ingest(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 2, embedder.CallCount())
	assert.Equal(t, 16, result.Index.Dimension())
	assert.Contains(t, progress.String(), "2/2")

	// The dump itself is untouched
	assert.False(t, file.Lemmas[0].Embedding.Present())

	rec, err := lemmas.GetLemma(ctx, "lemma_seq_len_nonneg")
	require.NoError(t, err)
	assert.Equal(t, 16, rec.Embedding.Dim())

	meta, err := metadata.LoadMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock-16", meta.EmbeddingModel)
	assert.Equal(t, "/work/vstd", meta.RepoRoot)
	assert.Equal(t, 16, meta.Dimension)
}

func TestIngest_EmbeddingFailureStoresNothing(t *testing.T) {
	lemmas, metadata := setupTestRepositories(t)

	var calls atomic.Int32
	embedder := &mock.MockEmbedder{
		EmbedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls.Add(1)
			return nil, errors.New("model not loaded")
		},
	}
	p, err := NewPipeline(lemmas, metadata,
		WithEmbedder(embedder, "broken"),
		WithRetry(2, time.Millisecond),
		WithRateLimit(0))
	require.NoError(t, err)
	defer p.Release()

	_, err = p.Ingest(context.Background(), readDump(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
	assert.Equal(t, int32(2), calls.Load())

	count, err := lemmas.CountLemmas(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

// flakyLemmas fails AddLemmas from the failAt-th call on.
type flakyLemmas struct {
	storage.LemmaRepository
	calls  atomic.Int32
	failAt int32
}

func (f *flakyLemmas) AddLemmas(ctx context.Context, records ...*core.LemmaRecord) error {
	if f.calls.Add(1) >= f.failAt {
		return errors.New("disk full")
	}
	return f.LemmaRepository.AddLemmas(ctx, records...)
}

type brokenMetadata struct {
	storage.MetadataRepository
}

func (brokenMetadata) SaveMetadata(context.Context, *core.IndexMetadata) error {
	return errors.New("disk full")
}

func TestIngest_StoreFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("second batch fails", func(t *testing.T) {
		lemmas, metadata := setupTestRepositories(t)
		flaky := &flakyLemmas{LemmaRepository: lemmas, failAt: 2}
		p, err := NewPipeline(flaky, metadata, WithBatchSize(1))
		require.NoError(t, err)
		defer p.Release()

		_, err = p.Ingest(ctx, readDump(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")

		count, err := lemmas.CountLemmas(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		meta, err := metadata.LoadMetadata(ctx)
		require.NoError(t, err)
		assert.Nil(t, meta)

		// The store is usable again
		p2, err := NewPipeline(lemmas, metadata, WithBatchSize(1))
		require.NoError(t, err)
		defer p2.Release()
		result, err := p2.Ingest(ctx, readDump(t))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Index.Len())
	})

	t.Run("metadata fails", func(t *testing.T) {
		lemmas, metadata := setupTestRepositories(t)
		p, err := NewPipeline(lemmas, brokenMetadata{metadata})
		require.NoError(t, err)
		defer p.Release()

		_, err = p.Ingest(ctx, readDump(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storing metadata")

		count, err := lemmas.CountLemmas(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestIngest_InvalidRecords(t *testing.T) {
	lemmas, metadata := setupTestRepositories(t)
	p, err := NewPipeline(lemmas, metadata)
	require.NoError(t, err)
	defer p.Release()

	ctx := context.Background()
	file := &core.IndexFile{Lemmas: []*core.LemmaRecord{
		{Name: "a", Origin: core.OriginProject},
		{Name: "a", Origin: core.OriginProject},
	}}
	_, err = p.Ingest(ctx, file)
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	file = &core.IndexFile{Lemmas: []*core.LemmaRecord{{Name: ""}}}
	_, err = p.Ingest(ctx, file)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestIngest_FillsSpecs(t *testing.T) {
	root := t.TempDir()
	src := "pub proof fn lemma_seq_len_nonneg(s: Seq<int>)\n    ensures\n        s.len() >= 0,\n{\n}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "seq.rs"), []byte(src), 0644))

	reader, err := extraction.NewSourceReader(root, 8)
	require.NoError(t, err)
	defer reader.Close()
	extractor, err := extraction.NewClauseExtractor(extraction.EngineAuto)
	require.NoError(t, err)
	filler, err := extraction.NewSpecFiller(reader, extractor)
	require.NoError(t, err)

	lemmas, metadata := setupTestRepositories(t)
	p, err := NewPipeline(lemmas, metadata, WithSpecFiller(filler))
	require.NoError(t, err)
	defer p.Release()

	result, err := p.Ingest(context.Background(), readDump(t))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fill.Filled)
	assert.Equal(t, 1, result.Fill.Skipped)

	rec, err := lemmas.GetLemma(context.Background(), "lemma_seq_len_nonneg")
	require.NoError(t, err)
	assert.Equal(t, []string{"s.len() >= 0"}, rec.Ensures)
	line, ok := rec.Location.Line()
	assert.True(t, ok)
	assert.Equal(t, 1, line)
}

func TestExportIndexFile(t *testing.T) {
	idx, err := core.NewIndex(readDump(t).Lemmas, core.IndexMetadata{RepoRoot: "/r", EmbeddingModel: "m"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteIndexFile(&buf, ExportIndexFile(idx)))

	back, err := ReadIndexFile(&buf)
	require.NoError(t, err)
	assert.Equal(t, idx.Version(), back.Version)
	assert.Equal(t, "/r", back.RepoRoot)
	assert.Equal(t, "m", back.Model)
	assert.False(t, back.HasEmbeddings)
	require.Len(t, back.Lemmas, 2)
	assert.Equal(t, idx.Records()[0].Requires, back.Lemmas[0].Requires)
}

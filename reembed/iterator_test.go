package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/storage"
	"github.com/poiesic/lemmafind/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (storage.LemmaRepository, storage.MetadataRepository) {
	lemmas, metadata, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)

	t.Cleanup(func() {
		lemmas.Close()
		backend.Close()
	})

	return lemmas, metadata
}

func seed(t *testing.T, repo storage.LemmaRepository, n int) []*core.LemmaRecord {
	t.Helper()
	records := testLemmas(n)
	require.NoError(t, repo.AddLemmas(context.Background(), records...))
	return records
}

func TestLemmaIterator_Basic(t *testing.T) {
	repo, _ := setupTestDB(t)
	seed(t, repo, 3)

	iter := NewLemmaIterator(repo, 2) // Batch size of 2
	var batches [][]string
	err := iter.ForEach(context.Background(), func(records []*core.LemmaRecord) error {
		var names []string
		for _, rec := range records {
			names = append(names, rec.Name)
		}
		batches = append(batches, names)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"lemma_00", "lemma_01"}, {"lemma_02"}}, batches)
}

func TestLemmaIterator_BatchSizes(t *testing.T) {
	repo, _ := setupTestDB(t)
	seed(t, repo, 10)

	tests := []struct {
		batchSize       int
		expectedBatches int
	}{
		{1, 10},
		{3, 4},
		{5, 2},
		{10, 1},
		{20, 1},
	}

	for _, tt := range tests {
		iter := NewLemmaIterator(repo, tt.batchSize)
		batches, total := 0, 0
		err := iter.ForEach(context.Background(), func(records []*core.LemmaRecord) error {
			batches++
			total += len(records)
			assert.LessOrEqual(t, len(records), tt.batchSize)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, tt.expectedBatches, batches, "batch size %d", tt.batchSize)
		assert.Equal(t, 10, total)
	}
}

func TestLemmaIterator_EmptyDatabase(t *testing.T) {
	repo, _ := setupTestDB(t)

	called := false
	err := NewLemmaIterator(repo, 10).ForEach(context.Background(), func([]*core.LemmaRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called, "should not call fn for empty database")
}

func TestLemmaIterator_ErrorHandling(t *testing.T) {
	repo, _ := setupTestDB(t)
	seed(t, repo, 5)

	expectedErr := errors.New("test error")
	batches := 0
	err := NewLemmaIterator(repo, 2).ForEach(context.Background(), func([]*core.LemmaRecord) error {
		batches++
		if batches == 2 {
			return expectedErr
		}
		return nil
	})
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 2, batches, "should stop at the failing batch")
}

func TestLemmaIterator_ContextCancellation(t *testing.T) {
	repo, _ := setupTestDB(t)
	seed(t, repo, 6)

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	err := NewLemmaIterator(repo, 2).ForEach(ctx, func([]*core.LemmaRecord) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)

	// Already cancelled before starting
	err = NewLemmaIterator(repo, 2).ForEach(ctx, func([]*core.LemmaRecord) error {
		t.Fatal("should not be called")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLemmaIterator_InvalidBatchSize(t *testing.T) {
	repo, _ := setupTestDB(t)
	assert.Equal(t, DefaultBatchSize, NewLemmaIterator(repo, 0).batchSize)
	assert.Equal(t, DefaultBatchSize, NewLemmaIterator(repo, -5).batchSize)
}

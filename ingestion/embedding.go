package ingestion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/progress"
	"github.com/poiesic/lemmafind/reembed"
)

// embeddingProcessor generates embeddings for lemma records in batches.
type embeddingProcessor struct {
	batch     *reembed.BatchProcessor
	batchSize int
	logger    *slog.Logger
}

func newEmbeddingProcessor(batch *reembed.BatchProcessor, batchSize int, logger *slog.Logger) *embeddingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		batch:     batch,
		batchSize: max(batchSize, 1),
		logger:    logger.With("processor", "embeddings"),
	}
}

// process embeds every record, running batches on pool. Records are updated
// in place only by successful batches; the first error is returned after all
// submitted batches have stopped.
func (ep *embeddingProcessor) process(ctx context.Context, pool *ants.Pool, records []*core.LemmaRecord, tracker *progress.Tracker) error {
	ep.logger.Info("processing records for embeddings", "records", len(records), "batch_size", ep.batchSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(records); start += ep.batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := records[start:min(start+ep.batchSize, len(records))]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := ep.batch.Embed(ctx, batch); err != nil {
				ep.logger.Error("error generating embeddings", "first", batch[0].Name, "err", err)
				fail(err)
				return
			}
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

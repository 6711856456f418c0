// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/progress"
	"github.com/poiesic/lemmafind/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each embedding call
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// RequestsPerSecond caps embedding requests; zero means unlimited
	RequestsPerSecond float64

	// Model is recorded in the index metadata after a successful run
	Model string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the reembedding of all lemmas in a database.
type Reembedder struct {
	repo      storage.LemmaRepository
	metadata  storage.MetadataRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *LemmaIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// metadata may be nil, in which case no metadata is updated.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	repo storage.LemmaRepository,
	metadata storage.MetadataRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
	logger *slog.Logger,
) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}

	processor := NewBatchProcessor(embedder, config.MaxRetries, config.RetryDelay,
		WithRateLimit(config.RequestsPerSecond), WithBatchLogger(logger))

	return &Reembedder{
		repo:      repo,
		metadata:  metadata,
		config:    config,
		progress:  progress,
		processor: processor,
		iterator:  NewLemmaIterator(repo, config.BatchSize),
		logger:    logger.With("component", "reembedder"),
	}, nil
}

// Run executes the reembedding operation.
// Every stored lemma is reembedded and updated in place. When a metadata
// repository is configured, its dimension, model and version are refreshed.
func (r *Reembedder) Run(ctx context.Context) error {
	totalRecords, err := r.repo.CountLemmas(ctx)
	if err != nil {
		return fmt.Errorf("failed to count lemmas: %w", err)
	}

	if totalRecords == 0 {
		fmt.Fprintf(r.progress, "No lemmas found in database (0 records)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d lemmas (batch size: %d)\n",
		totalRecords, r.iterator.batchSize)
	r.logger.Info("reembedding", "lemmas", totalRecords, "model", r.config.Model)

	tracker := progress.NewTracker(r.progress, totalRecords, r.config.ReportInterval, "lemmas")
	tracker.Start()

	processed := 0
	dimension := 0

	err = r.iterator.ForEach(ctx, func(records []*core.LemmaRecord) error {
		if err := r.processor.Embed(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		dim := records[0].Embedding.Dim()
		if dimension == 0 {
			dimension = dim
		} else if dim != dimension {
			return fmt.Errorf("%w: %w: batch has %d, earlier batches have %d",
				core.ErrValidation, core.ErrDimensionMismatch, dim, dimension)
		}

		if err := r.repo.UpdateLemmas(ctx, records...); err != nil {
			return fmt.Errorf("failed to update lemmas: %w", err)
		}

		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	if err := r.updateMetadata(ctx, dimension, processed); err != nil {
		return err
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d lemmas in %v (%.1f lemmas/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

func (r *Reembedder) updateMetadata(ctx context.Context, dimension, count int) error {
	if r.metadata == nil {
		return nil
	}
	meta, err := r.metadata.LoadMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}
	if meta == nil {
		meta = &core.IndexMetadata{CreatedAt: time.Now().UTC()}
	}
	meta.Version = core.NewVersion()
	meta.Dimension = dimension
	meta.Count = count
	if r.config.Model != "" {
		meta.EmbeddingModel = r.config.Model
	}
	if err := r.metadata.SaveMetadata(ctx, meta); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

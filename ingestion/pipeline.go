package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/extraction"
	"github.com/poiesic/lemmafind/progress"
	"github.com/poiesic/lemmafind/reembed"
	"github.com/poiesic/lemmafind/storage"
)

const defaultBatchSize = 32

// Pipeline orchestrates building a stored lemma index from a lemma dump.
type Pipeline struct {
	lemmaRepository    storage.LemmaRepository
	metadataRepository storage.MetadataRepository
	embeddingPool      *ants.Pool
	embedder           ai.Embedder
	model              string
	filler             *extraction.SpecFiller
	batchSize          int
	maxRetries         int
	retryDelay         time.Duration
	requestsPerSecond  float64
	repoRoot           string
	progress           io.Writer
	logger             *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedder computes an embedding for every record with embedder,
// replacing embeddings carried by the dump. model is recorded in the metadata.
func WithEmbedder(embedder ai.Embedder, model string) Option {
	return func(p *Pipeline) error {
		p.embedder = embedder
		p.model = model
		return nil
	}
}

// WithSpecFiller fills clauses from source files before embedding.
func WithSpecFiller(filler *extraction.SpecFiller) Option {
	return func(p *Pipeline) error {
		p.filler = filler
		return nil
	}
}

// WithBatchSize sets how many records go into one embedding request and one
// storage transaction. Default is 32.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrValidation, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the attempts and base backoff delay for embedding requests.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(p *Pipeline) error {
		p.maxRetries = maxRetries
		p.retryDelay = delay
		return nil
	}
}

// WithRateLimit caps embedding requests per second. Zero means unlimited.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(p *Pipeline) error {
		p.requestsPerSecond = requestsPerSecond
		return nil
	}
}

// WithRepoRoot records the repository root in the index metadata,
// overriding the one in the dump.
func WithRepoRoot(root string) Option {
	return func(p *Pipeline) error {
		p.repoRoot = root
		return nil
	}
}

// WithProgress writes embedding progress to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	lemmaRepository storage.LemmaRepository,
	metadataRepository storage.MetadataRepository,
	opts ...Option,
) (*Pipeline, error) {
	if lemmaRepository == nil {
		return nil, ErrLemmaRepositoryRequired
	}
	if metadataRepository == nil {
		return nil, ErrMetadataRepositoryRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	// Create pipeline with defaults
	p := &Pipeline{
		lemmaRepository:    lemmaRepository,
		metadataRepository: metadataRepository,
		embeddingPool:      embeddingPool,
		batchSize:          defaultBatchSize,
		maxRetries:         3,
		retryDelay:         time.Second,
		logger:             slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Result summarizes one ingestion.
type Result struct {
	Index    *core.Index
	Fill     extraction.FillStats
	Embedded int
}

// Ingest validates, completes and stores the lemmas of file. The store must
// be empty. The dump is not modified.
func (p *Pipeline) Ingest(ctx context.Context, file *core.IndexFile) (*Result, error) {
	count, err := p.lemmaRepository.CountLemmas(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: holds %d lemmas", ErrStoreNotEmpty, count)
	}

	records := make([]*core.LemmaRecord, len(file.Lemmas))
	for i, rec := range file.Lemmas {
		if err := core.ValidateLemma(rec); err != nil {
			return nil, err
		}
		records[i] = rec.Clone()
	}
	p.logger.Info("ingesting lemmas", "lemmas", len(records))

	result := &Result{}
	if p.filler != nil {
		stats, err := p.filler.Fill(ctx, records)
		if err != nil {
			return nil, err
		}
		result.Fill = stats
	}

	meta := core.IndexMetadata{
		EmbeddingModel: file.Model,
		RepoRoot:       file.RepoRoot,
	}
	if p.repoRoot != "" {
		meta.RepoRoot = p.repoRoot
	}

	if p.embedder != nil && len(records) > 0 {
		if err := p.embed(ctx, records); err != nil {
			return nil, err
		}
		result.Embedded = len(records)
		meta.EmbeddingModel = p.model
	}

	idx, err := core.NewIndex(records, meta)
	if err != nil {
		return nil, err
	}
	if err := p.Store(ctx, idx); err != nil {
		return nil, err
	}
	result.Index = idx
	return result, nil
}

func (p *Pipeline) embed(ctx context.Context, records []*core.LemmaRecord) error {
	batch := reembed.NewBatchProcessor(p.embedder, p.maxRetries, p.retryDelay,
		reembed.WithRateLimit(p.requestsPerSecond), reembed.WithBatchLogger(p.logger))
	proc := newEmbeddingProcessor(batch, p.batchSize, p.logger)

	var tracker *progress.Tracker
	if p.progress != nil {
		tracker = progress.NewTracker(p.progress, len(records), p.batchSize, "lemmas")
		tracker.Start()
	}
	if err := proc.process(ctx, p.embeddingPool, records, tracker); err != nil {
		return err
	}
	if tracker != nil {
		tracker.Finish()
	}
	return nil
}

// Store writes every record of idx and its metadata. Records are added in
// transactions of at most the batch size, in index order. If any write fails
// the records already added are removed again, leaving the store as it was.
func (p *Pipeline) Store(ctx context.Context, idx *core.Index) error {
	records := idx.Records()
	stored := 0
	for stored < len(records) {
		if err := ctx.Err(); err != nil {
			return p.rollback(ctx, records[:stored], err)
		}
		end := min(stored+p.batchSize, len(records))
		if err := p.lemmaRepository.AddLemmas(ctx, records[stored:end]...); err != nil {
			return p.rollback(ctx, records[:stored], fmt.Errorf("storing lemmas: %w", err))
		}
		stored = end
	}

	meta := idx.Metadata()
	if err := p.metadataRepository.SaveMetadata(ctx, &meta); err != nil {
		return p.rollback(ctx, records, fmt.Errorf("storing metadata: %w", err))
	}
	p.logger.Info("stored index",
		"lemmas", len(records),
		"embedded", idx.EmbeddedCount(),
		"dimension", meta.Dimension,
		"version", meta.Version)
	return nil
}

// rollback removes the stored records in one transaction and returns cause.
func (p *Pipeline) rollback(ctx context.Context, stored []*core.LemmaRecord, cause error) error {
	if len(stored) == 0 {
		return cause
	}
	names := make([]string, len(stored))
	for i, rec := range stored {
		names[i] = rec.Name
	}
	err := p.lemmaRepository.WithTransaction(context.WithoutCancel(ctx), func(ctx context.Context) error {
		return p.lemmaRepository.DeleteLemmas(ctx, names...)
	})
	if err != nil {
		p.logger.Error("rollback failed, store holds a partial index", "lemmas", len(stored), "err", err)
		return fmt.Errorf("%w (rollback failed: %w)", cause, err)
	}
	p.logger.Warn("store failed, removed partially stored lemmas", "lemmas", len(stored), "err", cause)
	return cause
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

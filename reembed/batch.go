package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/normalize"
	"golang.org/x/time/rate"
)

// BatchProcessor generates embeddings for batches of lemma records.
// It is safe for concurrent use when the embedder is.
type BatchProcessor struct {
	embedder       ai.Embedder
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithRateLimit caps embedding requests per second. Zero or less means unlimited.
func WithRateLimit(requestsPerSecond float64) BatchOption {
	return func(bp *BatchProcessor) {
		if requestsPerSecond > 0 {
			bp.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
		} else {
			bp.limiter = nil
		}
	}
}

// WithBatchLogger sets a custom logger.
// Default is slog.Default().
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(bp *BatchProcessor) {
		if logger != nil {
			bp.logger = logger
		}
	}
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding API call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(bp)
	}
	bp.logger = bp.logger.With("component", "batch_embedder")
	return bp
}

// Embed generates embeddings for records and attaches them in place.
// The embedding input is normalize.LemmaText; vectors are normalized to unit
// length. Every vector of one call must have the same dimension.
func (bp *BatchProcessor) Embed(ctx context.Context, records []*core.LemmaRecord) error {
	if len(records) == 0 {
		return nil
	}
	if bp.embedder == nil {
		return ErrEmbedderRequired
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = normalize.LemmaText(record)
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		if bp.limiter != nil {
			if err := bp.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(records) {
			return Permanent(fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCountMismatch, len(records), len(embeddings)))
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) == 0 || len(vec) != dim {
			return fmt.Errorf("%w: %w: lemma %q has %d, batch has %d",
				core.ErrValidation, core.ErrDimensionMismatch, records[i].Name, len(vec), dim)
		}
	}

	// Normalize vectors and assign to records
	for i := range records {
		records[i].Embedding = core.NewEmbedding(NormalizeVector(embeddings[i]))
	}

	bp.logger.Debug("embedded batch", "records", len(records), "dimension", dim)
	return nil
}

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


package lemmafind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/ai/openai"
	"github.com/poiesic/lemmafind/config"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/duplicates"
	"github.com/poiesic/lemmafind/extraction"
	"github.com/poiesic/lemmafind/ingestion"
	"github.com/poiesic/lemmafind/reembed"
	"github.com/poiesic/lemmafind/search"
	"github.com/poiesic/lemmafind/storage"
	"github.com/poiesic/lemmafind/storage/badger"
)

// ErrEmbeddingsDisabled is returned by operations that need an embedder when
// none is configured.
var ErrEmbeddingsDisabled = errors.New("embeddings are disabled")

type Database struct {
	cfg          config.Config
	backend      *badger.Backend
	lemmaRepo    *badger.LemmaRepository
	metadataRepo *badger.MetadataRepository
	provider     ai.AIProvider
	logger       *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	cfg      config.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.cfg = cfg
	}
}

// WithProvider uses provider instead of an OpenAI-compatible one built from
// the embedding configuration.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the store in memory; filePath is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens or creates the lemma store at filePath. When embeddings
// are enabled and no provider is given, an OpenAI-compatible provider is
// created from the configuration.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		cfg: config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory, badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, err
	}

	lemmaRepo, err := badger.NewLemmaRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil && options.cfg.Embedding.Enabled {
		provider, err = openai.NewProvider(options.cfg.AI())
		if err != nil {
			lemmaRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		cfg:          options.cfg,
		backend:      backend,
		lemmaRepo:    lemmaRepo,
		metadataRepo: badger.NewMetadataRepository(backend),
		provider:     provider,
		logger:       options.logger,
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}

	if err := db.lemmaRepo.Close(); err != nil {
		db.logger.Error("error closing lemma repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) Config() config.Config {
	return db.cfg
}

func (db *Database) LemmaRepository() storage.LemmaRepository {
	return db.lemmaRepo
}

func (db *Database) MetadataRepository() storage.MetadataRepository {
	return db.metadataRepo
}

// Embedder returns the configured embedder, or nil when embeddings are disabled.
func (db *Database) Embedder() ai.Embedder {
	if db.provider == nil {
		return nil
	}
	return db.provider.Embedder()
}

// LoadIndex reads every stored lemma, in insertion order, into an Index.
func (db *Database) LoadIndex(ctx context.Context) (*core.Index, error) {
	records, err := db.lemmaRepo.ListLemmas(ctx)
	if err != nil {
		return nil, err
	}
	meta, err := db.metadataRepo.LoadMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &core.IndexMetadata{}
	}
	return core.NewIndex(records, *meta)
}

// NewSearcher loads the stored index and builds a searcher configured from
// the search section. Later options override the configured ones.
func (db *Database) NewSearcher(ctx context.Context, opts ...search.Option) (*search.Searcher, error) {
	idx, err := db.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	base := []search.Option{
		search.WithConfig(db.cfg.Search),
		search.WithLogger(db.logger),
	}
	if embedder := db.Embedder(); embedder != nil {
		base = append(base, search.WithEmbedder(embedder))
	}
	return search.NewSearcher(idx, append(base, opts...)...)
}

func (db *Database) NewDetector(opts ...duplicates.Option) (*duplicates.Detector, error) {
	base := []duplicates.Option{
		duplicates.WithConfig(db.cfg.Duplicates),
		duplicates.WithLogger(db.logger),
	}
	return duplicates.NewDetector(append(base, opts...)...)
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	emb := db.cfg.Embedding
	base := []ingestion.Option{
		ingestion.WithLogger(db.logger),
		ingestion.WithPoolSize(emb.Workers),
		ingestion.WithBatchSize(emb.BatchSize),
		ingestion.WithRetry(max(emb.MaxRetries, 1), time.Second),
		ingestion.WithRateLimit(emb.RequestsPerSecond),
	}
	if db.provider != nil {
		base = append(base, ingestion.WithEmbedder(db.provider.Embedder(), db.provider.Model()))
	}
	return ingestion.NewPipeline(db.lemmaRepo, db.metadataRepo, append(base, opts...)...)
}

// NewSpecFiller builds a filler reading sources under repoRoot with the
// configured extraction engine. The returned reader must be closed.
func (db *Database) NewSpecFiller(repoRoot string, opts ...extraction.FillerOption) (*extraction.SpecFiller, *extraction.SourceReader, error) {
	extractor, err := extraction.NewClauseExtractor(db.cfg.Extraction.Engine)
	if err != nil {
		return nil, nil, err
	}
	reader, err := extraction.NewSourceReader(repoRoot, db.cfg.Extraction.MaxCachedFiles,
		extraction.WithReaderLogger(db.logger))
	if err != nil {
		return nil, nil, err
	}
	base := []extraction.FillerOption{extraction.WithFillerLogger(db.logger)}
	filler, err := extraction.NewSpecFiller(reader, extractor, append(base, opts...)...)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	return filler, reader, nil
}

// FillResult reports a FillSpecs run.
type FillResult struct {
	extraction.FillStats
	Reembedded int // lemmas whose embedding was recomputed
}

// FillSpecs extracts clauses for the stored lemmas from the sources under
// repoRoot and updates the store. When reembedFilled is set, lemmas whose
// clauses changed and that carry an embedding are re-embedded with the
// configured provider, as long as it is the model that built the store.
// Clause and embedding updates are written in one transaction.
func (db *Database) FillSpecs(ctx context.Context, repoRoot string, overwrite, reembedFilled bool) (FillResult, error) {
	var opts []extraction.FillerOption
	if overwrite {
		opts = append(opts, extraction.WithOverwrite())
	}
	filler, reader, err := db.NewSpecFiller(repoRoot, opts...)
	if err != nil {
		return FillResult{}, err
	}
	defer reader.Close()

	records, err := db.lemmaRepo.ListLemmas(ctx)
	if err != nil {
		return FillResult{}, err
	}
	before := make([]string, len(records))
	for i, rec := range records {
		before[i] = clauseKey(rec)
	}

	var result FillResult
	result.FillStats, err = filler.Fill(ctx, records)
	if err != nil {
		return result, err
	}

	var changed []*core.LemmaRecord
	for i, rec := range records {
		if rec.Embedding.Present() && clauseKey(rec) != before[i] {
			changed = append(changed, rec)
		}
	}
	if len(changed) > 0 {
		if reembedFilled {
			if result.Reembedded, err = db.reembedRecords(ctx, changed); err != nil {
				return result, err
			}
		}
		if result.Reembedded == 0 {
			db.logger.Warn("clauses changed but embeddings were kept, run reembed to refresh them",
				"stale", len(changed))
		}
	}

	if result.Filled > 0 {
		if err := db.lemmaRepo.UpdateLemmas(ctx, records...); err != nil {
			return result, fmt.Errorf("updating lemmas: %w", err)
		}
	}
	db.logger.Info("filled specs",
		"filled", result.Filled,
		"skipped", result.Skipped,
		"not_found", result.NotFound,
		"failed", result.Failed,
		"reembedded", result.Reembedded)
	return result, nil
}

func clauseKey(rec *core.LemmaRecord) string {
	return fmt.Sprintf("%q|%q|%q", rec.Requires, rec.Ensures, rec.Decreases)
}

// reembedRecords recomputes the embeddings of records in place. It embeds
// nothing when no provider is configured or the provider's model differs
// from the one recorded in the store metadata.
func (db *Database) reembedRecords(ctx context.Context, records []*core.LemmaRecord) (int, error) {
	if db.provider == nil {
		return 0, nil
	}
	meta, err := db.metadataRepo.LoadMetadata(ctx)
	if err != nil {
		return 0, err
	}
	if meta != nil && meta.EmbeddingModel != "" && meta.EmbeddingModel != db.provider.Model() {
		db.logger.Warn("embedding model differs from the stored index, not re-embedding",
			"stored", meta.EmbeddingModel,
			"configured", db.provider.Model())
		return 0, nil
	}

	emb := db.cfg.Embedding
	batch := reembed.NewBatchProcessor(db.provider.Embedder(), max(emb.MaxRetries, 1), time.Second,
		reembed.WithRateLimit(emb.RequestsPerSecond), reembed.WithBatchLogger(db.logger))
	for start := 0; start < len(records); start += emb.BatchSize {
		end := min(start+emb.BatchSize, len(records))
		if err := batch.Embed(ctx, records[start:end]); err != nil {
			return 0, err
		}
	}
	if meta != nil && meta.Dimension != 0 && records[0].Embedding.Dim() != meta.Dimension {
		return 0, fmt.Errorf("%w: %w: re-embedded vectors have %d dimensions, index has %d",
			core.ErrValidation, core.ErrDimensionMismatch, records[0].Embedding.Dim(), meta.Dimension)
	}
	return len(records), nil
}

// Merge combines a and b and stores the result. The store must be empty.
func (db *Database) Merge(ctx context.Context, a, b *core.Index) (*core.Index, error) {
	count, err := db.lemmaRepo.CountLemmas(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: holds %d lemmas", ingestion.ErrStoreNotEmpty, count)
	}

	merged, err := core.Merge(a, b)
	if err != nil {
		return nil, err
	}
	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()

	if err := pipeline.Store(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// Reembed recomputes every stored embedding with the configured provider.
func (db *Database) Reembed(ctx context.Context, progress io.Writer) error {
	if db.provider == nil {
		return ErrEmbeddingsDisabled
	}
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = db.cfg.Embedding.BatchSize
	cfg.MaxRetries = max(db.cfg.Embedding.MaxRetries, 1)
	cfg.RequestsPerSecond = db.cfg.Embedding.RequestsPerSecond
	cfg.Model = db.provider.Model()

	r, err := reembed.NewReembedder(db.lemmaRepo, db.metadataRepo, db.provider.Embedder(), cfg, progress, db.logger)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

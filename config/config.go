// Package config holds the tunable values of search, duplicate detection,
// embedding and extraction. Components receive a copy of the relevant section
// in their constructors, so a Config is never mutated after use.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/core"
)

// SearchConfig tunes the Ranker and the Lexical Scorer.
type SearchConfig struct {
	// KeywordWeight and SemanticWeight are meant to sum to 1.0.
	KeywordWeight  float64 `yaml:"keyword_weight" validate:"gte=0,lte=1"`
	SemanticWeight float64 `yaml:"semantic_weight" validate:"gte=0,lte=1"`
	DefaultTopK    int     `yaml:"default_top_k" validate:"gt=0"`
	NameMatchBoost float64 `yaml:"name_match_boost" validate:"gte=0"`
	DocMatchBoost  float64 `yaml:"doc_match_boost" validate:"gte=0"`
	Mode           string  `yaml:"mode" validate:"oneof=hybrid semantic lexical"`
	// IncludeSelf keeps the queried lemma in similar-by-name results.
	IncludeSelf bool `yaml:"include_self"`
	// DegradeOnEmbeddingFailure turns a failing embedder into a lexical fallback.
	DegradeOnEmbeddingFailure bool `yaml:"degrade_on_embedding_failure"`
}

// DuplicatesConfig tunes the duplicate detector.
type DuplicatesConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	SimilarThreshold    float64 `yaml:"similar_threshold" validate:"gte=0,lte=1"`
	IncludeSimilar      bool    `yaml:"include_similar"`
	Workers             int     `yaml:"workers" validate:"gte=1,lte=256"`
}

// EmbeddingConfig describes the embedding service and batch behaviour.
type EmbeddingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Host              string  `yaml:"host"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size" validate:"gte=1"`
	Workers           int     `yaml:"workers" validate:"gte=1,lte=64"`
	MaxRetries        int     `yaml:"max_retries" validate:"gte=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// ExtractionConfig tunes clause extraction from source files.
type ExtractionConfig struct {
	MaxCachedFiles int    `yaml:"max_cached_files" validate:"gte=1"`
	Engine         string `yaml:"engine" validate:"oneof=auto scanner regex"`
}

// StorageConfig locates the on-disk index.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the complete application configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Duplicates DuplicatesConfig `yaml:"duplicates"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Storage    StorageConfig    `yaml:"storage"`
}

var validate = validator.New()

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	aiDefaults := ai.DefaultConfig()
	return Config{
		Search: SearchConfig{
			KeywordWeight:  0.3,
			SemanticWeight: 0.7,
			DefaultTopK:    10,
			NameMatchBoost: 2.0,
			DocMatchBoost:  1.5,
			Mode:           "hybrid",
		},
		Duplicates: DuplicatesConfig{
			SimilarityThreshold: 0.75,
			SimilarThreshold:    0.90,
			IncludeSimilar:      true,
			Workers:             1,
		},
		Embedding: EmbeddingConfig{
			Enabled:    true,
			Host:       aiDefaults.EmbeddingHost,
			Model:      aiDefaults.EmbeddingModel,
			BatchSize:  32,
			Workers:    4,
			MaxRetries: 3,
		},
		Extraction: ExtractionConfig{
			MaxCachedFiles: 256,
			Engine:         "auto",
		},
		Storage: StorageConfig{
			Path: "lemma_index.db",
		},
	}
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithWeights sets the keyword and semantic fusion weights.
func WithWeights(keyword, semantic float64) Option {
	return func(c *Config) {
		c.Search.KeywordWeight = keyword
		c.Search.SemanticWeight = semantic
	}
}

// WithTopK sets the default number of results.
func WithTopK(k int) Option {
	return func(c *Config) {
		c.Search.DefaultTopK = k
	}
}

// WithMode sets the default ranking mode.
func WithMode(mode string) Option {
	return func(c *Config) {
		c.Search.Mode = mode
	}
}

// WithThresholds sets the duplicate detector thresholds.
func WithThresholds(similarity, similar float64) Option {
	return func(c *Config) {
		c.Duplicates.SimilarityThreshold = similarity
		c.Duplicates.SimilarThreshold = similar
	}
}

// WithEmbeddingsDisabled turns off all embedding calls.
func WithEmbeddingsDisabled() Option {
	return func(c *Config) {
		c.Embedding.Enabled = false
	}
}

// WithStoragePath sets the index database location.
func WithStoragePath(path string) Option {
	return func(c *Config) {
		c.Storage.Path = path
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Validate checks every section. Out-of-range values are errors, never clamped.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrInvalidConfig, describe(err))
	}
	if c.Embedding.Enabled {
		if strings.TrimSpace(c.Embedding.Host) == "" {
			return fmt.Errorf("%w: %w: embedding.host is required when embeddings are enabled", core.ErrValidation, ErrInvalidConfig)
		}
		if strings.TrimSpace(c.Embedding.Model) == "" {
			return fmt.Errorf("%w: %w: embedding.model is required when embeddings are enabled", core.ErrValidation, ErrInvalidConfig)
		}
	}
	return nil
}

// RankingMode returns the configured default mode.
func (c Config) RankingMode() core.RankingSource {
	mode, err := core.ParseRankingSource(c.Search.Mode)
	if err != nil {
		return core.SourceHybrid
	}
	return mode
}

// AI converts the embedding section into a provider configuration.
func (c Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
	)
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}
	return strings.Join(parts, "; ")
}

var current atomic.Pointer[Config]

// Install validates cfg and publishes it as the process-wide snapshot
// returned by Current. The snapshot is a copy and cannot be changed in place.
func Install(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	current.Store(&cfg)
	return nil
}

// Current returns the installed snapshot, or the defaults if none was installed.
func Current() Config {
	if cfg := current.Load(); cfg != nil {
		return *cfg
	}
	return DefaultConfig()
}

// Validate checks the search section on its own.
func (s SearchConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrInvalidConfig, describe(err))
	}
	return nil
}

// Validate checks the duplicates section on its own.
func (d DuplicatesConfig) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrInvalidConfig, describe(err))
	}
	return nil
}

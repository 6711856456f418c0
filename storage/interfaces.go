package storage

import (
	"context"

	"github.com/poiesic/lemmafind/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// Calls made with the context passed to fn join the transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// LemmaRepository provides operations for managing lemma records.
// Records are keyed by name and listed in insertion order.
type LemmaRepository interface {
	Repository

	// AddLemmas stores new lemmas atomically.
	// Returns ErrDuplicateKey if any name is already stored or repeated.
	AddLemmas(ctx context.Context, records ...*core.LemmaRecord) error

	// UpdateLemmas replaces stored lemmas, keeping their position.
	// Returns ErrNotFound if any lemma doesn't exist.
	UpdateLemmas(ctx context.Context, records ...*core.LemmaRecord) error

	// DeleteLemmas removes lemmas by name.
	// Returns ErrNotFound if any lemma doesn't exist.
	DeleteLemmas(ctx context.Context, names ...string) error

	// GetLemma retrieves a single lemma by name.
	// Returns ErrNotFound if the lemma doesn't exist.
	GetLemma(ctx context.Context, name string) (*core.LemmaRecord, error)

	// ListLemmas returns every lemma in insertion order.
	ListLemmas(ctx context.Context) ([]*core.LemmaRecord, error)

	// CountLemmas returns the number of stored lemmas.
	CountLemmas(ctx context.Context) (int, error)
}

// MetadataRepository persists the metadata of the stored index.
type MetadataRepository interface {
	// SaveMetadata replaces the stored metadata.
	SaveMetadata(ctx context.Context, meta *core.IndexMetadata) error

	// LoadMetadata returns the stored metadata.
	// Returns nil, nil if none was saved.
	LoadMetadata(ctx context.Context) (*core.IndexMetadata, error)
}

package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/storage"
)

// MetadataRepository implements storage.MetadataRepository for BadgerDB.
type MetadataRepository struct {
	backend *Backend
}

var _ storage.MetadataRepository = (*MetadataRepository)(nil)

// NewMetadataRepository creates a new MetadataRepository.
func NewMetadataRepository(backend *Backend) *MetadataRepository {
	return &MetadataRepository{
		backend: backend,
	}
}

// SaveMetadata persists the index metadata, replacing any previous value.
func (r *MetadataRepository) SaveMetadata(ctx context.Context, meta *core.IndexMetadata) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		return tx.Set([]byte(indexMetadataKey), storage.MarshalMetadata(meta))
	})
}

// LoadMetadata retrieves the index metadata.
// Returns nil, nil if none was saved.
func (r *MetadataRepository) LoadMetadata(ctx context.Context) (*core.IndexMetadata, error) {
	var meta *core.IndexMetadata
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(indexMetadataKey))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			meta, unmarshalErr = storage.UnmarshalMetadata(val)
			return unmarshalErr
		})
	})

	return meta, err
}

package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/storage"
)

// LemmaRepository implements storage.LemmaRepository for BadgerDB.
//
// Each record is stored under the content ID of its name together with its
// insertion sequence. A second key space maps the sequence back to the ID so
// ListLemmas can return records in the order they were added.
type LemmaRepository struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.LemmaRepository = (*LemmaRepository)(nil)

// NewLemmaRepository creates a new LemmaRepository.
func NewLemmaRepository(backend *Backend) (*LemmaRepository, error) {
	seq, err := backend.GetSequence(lemmaSeq)
	if err != nil {
		return nil, err
	}

	return &LemmaRepository{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the insertion sequence.
func (r *LemmaRepository) Close() error {
	return r.seq.Release()
}

// WithTransaction delegates to the backend.
func (r *LemmaRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddLemmas adds one or more lemmas to storage.
func (r *LemmaRepository) AddLemmas(ctx context.Context, records ...*core.LemmaRecord) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		seen := make(map[core.ID]string, len(records))
		for _, record := range records {
			id := record.ID()
			if prev, ok := seen[id]; ok {
				return fmt.Errorf("%w: %s collides with %s", storage.ErrDuplicateKey, record.Name, prev)
			}
			seen[id] = record.Name

			key := makeLemmaKey(id)
			_, existing, err := readLemma(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: %s collides with %s", storage.ErrDuplicateKey, record.Name, existing.Name)
			}

			next, err := r.nextSeq()
			if err != nil {
				return err
			}

			// Store primary record
			if err := tx.Set(key, storage.MarshalLemma(next, record)); err != nil {
				return err
			}

			// Update order index
			if err := tx.Set(makeLemmaOrderKey(next), storage.MarshalID(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateLemmas replaces existing lemmas.
func (r *LemmaRepository) UpdateLemmas(ctx context.Context, records ...*core.LemmaRecord) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, record := range records {
			key := makeLemmaKey(record.ID())
			seq, old, err := readLemma(tx, key)
			if err != nil {
				return err
			}
			if old == nil || old.Name != record.Name {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, record.Name)
			}
			if err := tx.Set(key, storage.MarshalLemma(seq, record)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteLemmas removes lemmas by name.
func (r *LemmaRepository) DeleteLemmas(ctx context.Context, names ...string) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, name := range names {
			key := makeLemmaKey(core.IDFromContent(name))
			seq, old, err := readLemma(tx, key)
			if err != nil {
				return err
			}
			if old == nil || old.Name != name {
				return fmt.Errorf("%w: %s", storage.ErrNotFound, name)
			}

			// Delete from order index
			if err := tx.Delete(makeLemmaOrderKey(seq)); err != nil {
				return err
			}

			// Delete primary record
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLemma retrieves a single lemma by name.
func (r *LemmaRepository) GetLemma(ctx context.Context, name string) (*core.LemmaRecord, error) {
	var result *core.LemmaRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		_, record, err := readLemma(tx, makeLemmaKey(core.IDFromContent(name)))
		if err != nil {
			return err
		}
		if record == nil || record.Name != name {
			return storage.ErrNotFound
		}
		result = record
		return nil
	})
	return result, err
}

// ListLemmas retrieves every lemma in insertion order.
func (r *LemmaRepository) ListLemmas(ctx context.Context) ([]*core.LemmaRecord, error) {
	var results []*core.LemmaRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var ids []core.ID
		err := scanOrderIndex(tx, func(val []byte) error {
			id, err := storage.UnmarshalID(val)
			if err != nil {
				return err
			}
			ids = append(ids, id)
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, record, err := readLemma(tx, makeLemmaKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	})

	return results, err
}

// CountLemmas returns the number of stored lemmas.
func (r *LemmaRepository) CountLemmas(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scanOrderIndex(tx, func([]byte) error {
			count++
			return nil
		})
	})
	return count, err
}

// Helper methods

func (r *LemmaRepository) nextSeq() (uint64, error) {
	next, err := r.seq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if next == 0 {
		return r.seq.Next()
	}
	return next, nil
}

// scanOrderIndex calls fn with each value of the order index, in sequence order.
func scanOrderIndex(tx *badger.Txn, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = lemmaOrderScanPrefix()
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := iter.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// readLemma reads a lemma and its sequence from the transaction.
// Returns a nil record if the key doesn't exist.
func readLemma(tx *badger.Txn, key []byte) (uint64, *core.LemmaRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	var (
		seq    uint64
		record *core.LemmaRecord
	)
	err = item.Value(func(val []byte) error {
		var err error
		seq, record, err = storage.UnmarshalLemma(val)
		return err
	})
	return seq, record, err
}

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

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 32
)

// LemmaIterator iterates over all stored lemmas in batches, in insertion order.
type LemmaIterator struct {
	repo      storage.LemmaRepository
	batchSize int
}

// NewLemmaIterator creates a new lemma iterator.
// batchSize: number of records in each batch (DefaultBatchSize if <= 0)
func NewLemmaIterator(repo storage.LemmaRepository, batchSize int) *LemmaIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &LemmaIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach iterates over all lemmas, calling fn for each batch.
// Iteration stops on first error from fn or when all records are processed.
// Context cancellation is checked between batches.
func (it *LemmaIterator) ForEach(ctx context.Context, fn func([]*core.LemmaRecord) error) error {
	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := it.repo.ListLemmas(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += it.batchSize {
		end := min(start+it.batchSize, len(records))

		if err := fn(records[start:end]); err != nil {
			return err
		}

		// Check context after each batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

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

package search

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexRequired is returned when no index is provided.
	ErrIndexRequired = errors.New("lemma index required")

	// ErrEmbeddingFailed matches every EmbeddingError.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// EmbeddingError reports that the embedding function failed during a live
// query. The Searcher never retries; callers decide whether to fall back.
type EmbeddingError struct {
	Variant string
	Err     error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding query variant %q: %v", e.Variant, e.Err)
}

// Unwrap exposes both ErrEmbeddingFailed and the underlying cause.
func (e *EmbeddingError) Unwrap() []error {
	return []error{ErrEmbeddingFailed, e.Err}
}

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


// Package storage provides the persistence abstraction for lemma indexes.
//
// This package defines repository interfaces that decouple the on-disk index
// from ingestion, search and maintenance code. The BadgerDB implementation
// lives in the badger subpackage.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return interfaces where a
// caller only needs the abstraction:
//
//	lemmas, meta, backend, err := badger.NewMemoryRepositories()
//
// Internal constructors may return concrete types.
//
// # Architecture
//
//   - Repository: transaction support and lifecycle shared by all repositories
//   - LemmaRepository: lemma records keyed by name, kept in insertion order
//   - MetadataRepository: the single IndexMetadata of a store
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage

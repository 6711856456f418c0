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


// Package search ranks lemmas for a raw query.
//
// The Searcher runs a multi-stage pipeline:
//   - Normalization of the query into at most two canonical variants
//   - Lexical scoring of every lemma, keeping the best variant per lemma
//   - Semantic scoring against lemma embeddings, keeping the best variant
//   - Max-normalization and weighted fusion of both signals (hybrid mode)
//   - Ordering by score, then by name, and truncation to the top K
//
// Lexical and semantic modes use one signal only. When embeddings are
// unavailable the Searcher falls back to lexical ranking and reports the
// condition as a Warning in the Response instead of failing.
package search

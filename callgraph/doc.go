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

// Package callgraph annotates call graph documents with related lemmas.
//
// A call graph is a JSON object with a "nodes" array. Each node carries a
// display_name and optionally a body. The Enricher searches the lemma index
// with the display name plus the first lines of the body and stores the best
// matches, excluding the node itself, under the node's "similar_lemmas" key.
// Every other field of the document is written back as it was read.
//
// Usage:
//
//	g, err := callgraph.LoadGraph("callgraph.json")
//	if err != nil {
//		return err
//	}
//	enricher, err := callgraph.NewEnricher(searcher, callgraph.WithTopK(3))
//	if err != nil {
//		return err
//	}
//	stats, err := enricher.Enrich(ctx, g)
//	if err != nil {
//		return err
//	}
//	return g.WriteFile("callgraph.json")
package callgraph

// Package ingestion builds a persistent lemma index from a JSON lemma dump.
//
// The Pipeline type manages the ingestion workflow:
//   - Validating the records of an IndexFile
//   - Filling requires/ensures/decreases clauses from source files (optional)
//   - Generating embeddings concurrently in batches (optional)
//   - Storing the records and the index metadata
//
// Embedding batches run on a worker pool. The first failing batch cancels the
// remaining ones and fails the ingestion; nothing is stored in that case.
package ingestion

// Package reembed computes lemma embeddings in batches and re-embeds stored
// lemmas with a new or updated embedding model.
//
// BatchProcessor embeds the searchable text of a batch of records with retry
// and exponential backoff, an optional request rate limit, and unit-length
// normalization so cosine scores stay comparable across models. Reembedder
// walks every stored lemma with a LemmaIterator, updates the records in
// place, reports progress, and stamps the index metadata with the new model.
package reembed

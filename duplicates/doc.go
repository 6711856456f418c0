// Package duplicates finds exact duplicates, subsumed lemmas and refactoring
// candidates across a whole index.
//
// Every unordered pair of embedded lemmas is compared by cosine similarity
// first. Only pairs at or above the similarity threshold reach the structural
// comparison of their clause sets:
//   - EXACT: equal ensures sets and equal requires sets
//   - SUBSUMES: equal ensures sets and one requires set a strict subset of the
//     other; the lemma with fewer preconditions is the general one
//   - SIMILAR: no structural relation, but similarity at or above the
//     higher similar threshold
//
// The scan is quadratic and meant for offline batch runs. Rows of the pair
// matrix are spread over a worker pool.
package duplicates

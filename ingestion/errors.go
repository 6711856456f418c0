package ingestion

import "errors"

var (
	// ErrLemmaRepositoryRequired is returned when a lemma repository is not provided.
	ErrLemmaRepositoryRequired = errors.New("lemma repository required")

	// ErrMetadataRepositoryRequired is returned when a metadata repository is not provided.
	ErrMetadataRepositoryRequired = errors.New("metadata repository required")

	// ErrStoreNotEmpty is returned when ingesting into a store that already holds lemmas.
	ErrStoreNotEmpty = errors.New("lemma store is not empty")

	// ErrIndexFile is returned when a lemma dump cannot be decoded.
	ErrIndexFile = errors.New("invalid index file")
)

package callgraph

import "errors"

var (
	// ErrInvalidGraph is returned when a document is not a call graph.
	ErrInvalidGraph = errors.New("invalid call graph")
	// ErrSearcherRequired is returned when no searcher is given.
	ErrSearcherRequired = errors.New("searcher is required")
)

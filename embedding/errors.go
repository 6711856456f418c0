package embedding

import "errors"

var (
	// ErrEmptyQueryVector indicates a query vector of length zero.
	ErrEmptyQueryVector = errors.New("query vector is empty")
)

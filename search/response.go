package search

import (
	"fmt"
	"strings"

	"github.com/poiesic/lemmafind/core"
)

// WarningKind classifies degraded-mode conditions.
type WarningKind int

const (
	// WarnNoEmbedder means semantic scoring was requested without an embedding function.
	WarnNoEmbedder WarningKind = iota + 1
	// WarnNoIndexEmbeddings means no record in the index has an embedding.
	WarnNoIndexEmbeddings
	// WarnPartialEmbeddings means some records lack embeddings and are ranked lexically.
	WarnPartialEmbeddings
	// WarnEmbeddingFailed means the embedding function failed and the search fell back.
	WarnEmbeddingFailed
)

// String returns a short identifier for the kind.
func (k WarningKind) String() string {
	switch k {
	case WarnNoEmbedder:
		return "no_embedder"
	case WarnNoIndexEmbeddings:
		return "no_index_embeddings"
	case WarnPartialEmbeddings:
		return "partial_embeddings"
	case WarnEmbeddingFailed:
		return "embedding_failed"
	default:
		return "unknown"
	}
}

// Warning is a non-fatal degraded-mode condition.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Message
}

// Response is the outcome of one search.
type Response struct {
	Results   []core.ScoredResult
	Requested core.RankingSource // mode asked for
	Mode      core.RankingSource // mode that produced the ranking
	Variants  []core.QueryVariant
	Warnings  []Warning
	// NotFound is set by FindSimilarTo when the queried name is not indexed.
	NotFound bool
}

// Degraded reports whether the ranking mode differs from the requested one.
func (r *Response) Degraded() bool {
	return r.Mode != r.Requested
}

// HasWarning reports whether a warning of the given kind was raised.
func (r *Response) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// Names returns result names in rank order.
func (r *Response) Names() []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Record.Name
	}
	return out
}

// Format renders the results for terminal output.
func (r *Response) Format() string {
	var sb strings.Builder
	for _, w := range r.Warnings {
		sb.WriteString("warning: " + w.Message + "\n")
	}
	if r.NotFound {
		sb.WriteString("lemma not found\n")
		return sb.String()
	}
	for i, res := range r.Results {
		fmt.Fprintf(&sb, "%d. [%.4f %s] %s\n", i+1, res.Score, res.Source, res.Record.Display())
		if len(res.MatchedClauses) > 0 {
			sb.WriteString("  matched: " + strings.Join(res.MatchedClauses, "; ") + "\n")
		}
	}
	return sb.String()
}

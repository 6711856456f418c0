package callgraph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/progress"
	"github.com/poiesic/lemmafind/search"
)

const (
	defaultTopK      = 3
	defaultBodyLines = 5
	reportEvery      = 100
)

// Searcher ranks lemmas for a request. *search.Searcher implements it.
type Searcher interface {
	SearchWithMonitor(ctx context.Context, req search.Request, monitor search.SearchMonitor) (*search.Response, error)
}

var _ Searcher = (*search.Searcher)(nil)

// Stats reports an enrichment run.
type Stats struct {
	Nodes    int // nodes in the graph
	Skipped  int // nodes without a display name
	Enriched int // nodes that received similar lemmas
}

// Enricher attaches similar lemmas to call graph nodes.
type Enricher struct {
	searcher  Searcher
	monitor   search.SearchMonitor
	topK      int
	bodyLines int
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher) error

// WithTopK sets how many lemmas are attached per node. Default is 3.
func WithTopK(k int) Option {
	return func(e *Enricher) error {
		if k < 1 {
			return fmt.Errorf("%w: top-k must be positive, got %d", core.ErrValidation, k)
		}
		e.topK = k
		return nil
	}
}

// WithBodyLines sets how many leading body lines join the query. Default is 5.
func WithBodyLines(n int) Option {
	return func(e *Enricher) error {
		if n < 0 {
			return fmt.Errorf("%w: body lines must not be negative, got %d", core.ErrValidation, n)
		}
		e.bodyLines = n
		return nil
	}
}

// WithMonitor passes monitor to every search.
func WithMonitor(monitor search.SearchMonitor) Option {
	return func(e *Enricher) error {
		e.monitor = monitor
		return nil
	}
}

// WithProgress reports processed nodes to w.
func WithProgress(w io.Writer) Option {
	return func(e *Enricher) error {
		e.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEnricher creates an Enricher searching with s.
func NewEnricher(s Searcher, opts ...Option) (*Enricher, error) {
	if s == nil {
		return nil, ErrSearcherRequired
	}
	e := &Enricher{
		searcher:  s,
		topK:      defaultTopK,
		bodyLines: defaultBodyLines,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "callgraph")
	return e, nil
}

// Query returns the search text for a node: its display name followed by the
// first lines of its body.
func (e *Enricher) Query(n *Node) string {
	parts := []string{n.DisplayName}
	if n.Body != "" && e.bodyLines > 0 {
		lines := strings.Split(n.Body, "\n")
		parts = append(parts, lines[:min(e.bodyLines, len(lines))]...)
	}
	return strings.Join(parts, " ")
}

// Enrich searches for every named node and replaces its similar lemmas. A
// lemma named like the node itself is never attached to it. Search errors
// abort the run and leave the remaining nodes untouched.
func (e *Enricher) Enrich(ctx context.Context, g *Graph) (Stats, error) {
	stats := Stats{Nodes: len(g.Nodes)}
	var tracker *progress.Tracker
	if e.progress != nil {
		tracker = progress.NewTracker(e.progress, len(g.Nodes), reportEvery, "nodes")
		tracker.Start()
	}

	for _, n := range g.Nodes {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if tracker != nil {
			tracker.Increment(1)
		}
		if n.DisplayName == "" {
			stats.Skipped++
			continue
		}

		// One extra result leaves room for the node itself
		req := search.Request{Query: e.Query(n), TopK: e.topK + 1}
		resp, err := e.searcher.SearchWithMonitor(ctx, req, e.monitor)
		if err != nil {
			return stats, fmt.Errorf("node %q: %w", n.DisplayName, err)
		}

		n.Similar = similarLemmas(resp.Results, n.DisplayName, e.topK)
		if len(n.Similar) > 0 {
			stats.Enriched++
		}
	}

	if tracker != nil {
		tracker.Finish()
	}
	e.logger.Info("enriched call graph",
		"nodes", stats.Nodes,
		"skipped", stats.Skipped,
		"enriched", stats.Enriched)
	return stats, nil
}

func similarLemmas(results []core.ScoredResult, self string, topK int) []SimilarLemma {
	var out []SimilarLemma
	for _, res := range results {
		rec := res.Record
		if rec.Name == self {
			continue
		}
		lemma := SimilarLemma{
			Name:      rec.Name,
			Score:     math.Round(res.Score*1000) / 1000,
			FilePath:  rec.Location.FilePath,
			Signature: rec.Signature,
		}
		if line, ok := rec.Location.Line(); ok {
			lemma.LineNumber = &line
		}
		out = append(out, lemma)
		if len(out) == topK {
			break
		}
	}
	return out
}

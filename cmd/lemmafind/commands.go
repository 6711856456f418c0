package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/lemmafind/callgraph"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/duplicates"
	"github.com/poiesic/lemmafind/extraction"
	"github.com/poiesic/lemmafind/ingestion"
	"github.com/poiesic/lemmafind/search"
	"github.com/urfave/cli/v2"
)

const defaultLockTimeout = 30 * time.Second

func (r *runner) ingestCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return fmt.Errorf("ingest expects exactly one lemma dump, got %d arguments", c.NArg())
	}

	file, err := ingestion.LoadIndexFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read lemma dump: %w", err)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []ingestion.Option{ingestion.WithProgress(c.App.ErrWriter)}
	if root := c.String("repo-root"); root != "" {
		var fillOpts []extraction.FillerOption
		if c.Bool("overwrite-specs") {
			fillOpts = append(fillOpts, extraction.WithOverwrite())
		}
		filler, reader, err := db.NewSpecFiller(root, fillOpts...)
		if err != nil {
			return err
		}
		defer reader.Close()
		opts = append(opts, ingestion.WithSpecFiller(filler), ingestion.WithRepoRoot(root))
	}

	pipeline, err := db.NewIngestionPipeline(opts...)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	start := time.Now()
	result, err := pipeline.Ingest(ctx, file)
	if err != nil {
		r.operations.Observe("ingest", 0, time.Since(start), err)
		return fmt.Errorf("ingestion failed: %w", err)
	}
	r.operations.Observe("ingest", result.Index.Len(), time.Since(start), nil)

	meta := result.Index.Metadata()
	fmt.Fprintf(c.App.Writer, "Indexed %d lemmas (%d with embeddings, dimension %d)\n",
		result.Index.Len(), result.Index.EmbeddedCount(), meta.Dimension)
	if c.String("repo-root") != "" {
		fmt.Fprintf(c.App.Writer, "Specs: %d filled, %d skipped, %d not found, %d failed\n",
			result.Fill.Filled, result.Fill.Skipped, result.Fill.NotFound, result.Fill.Failed)
	}
	fmt.Fprintf(c.App.Writer, "Version: %s\n", meta.Version)
	return nil
}

// searchRequest builds a request from the search flags.
func searchRequest(c *cli.Context, query string) (search.Request, error) {
	req := search.Request{Query: query, TopK: c.Int("top-k")}
	if mode := c.String("mode"); mode != "" {
		parsed, err := core.ParseRankingSource(mode)
		if err != nil {
			return req, err
		}
		req.Mode = parsed
	}
	for _, name := range c.StringSlice("origin") {
		origin, err := core.ParseOrigin(name)
		if err != nil {
			return req, err
		}
		req.Origins = append(req.Origins, origin)
	}
	return req, nil
}

func (r *runner) searchCommand(c *cli.Context) error {
	ctx := context.Background()
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("search expects a query")
	}
	req, err := searchRequest(c, query)
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(ctx)
	if err != nil {
		return err
	}
	resp, err := searcher.SearchWithMonitor(ctx, req, r.search)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, resp.Format())
	return nil
}

func (r *runner) similarCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return errors.New("similar expects one lemma name")
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(ctx)
	if err != nil {
		return err
	}
	name := c.Args().First()
	resp, err := searcher.FindSimilarTo(ctx, name, c.Int("top-k"))
	if err != nil {
		return err
	}
	if resp.NotFound {
		r.search.RecordNotFound()
		fmt.Fprintf(c.App.Writer, "Lemma %q not found\n", name)
		return nil
	}
	fmt.Fprint(c.App.Writer, resp.Format())
	return nil
}

func (r *runner) detectCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg := r.cfg.Duplicates
	if c.Bool("no-similar") {
		cfg.IncludeSimilar = false
	}
	if c.IsSet("threshold") {
		cfg.SimilarityThreshold = c.Float64("threshold")
	}
	if c.IsSet("similar-threshold") {
		cfg.SimilarThreshold = c.Float64("similar-threshold")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	idx, err := db.LoadIndex(ctx)
	if err != nil {
		return err
	}
	detector, err := db.NewDetector(duplicates.WithConfig(cfg))
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := detector.Detect(ctx, idx)
	r.operations.Observe("detect-duplicates", idx.EmbeddedCount(), time.Since(start), err)
	if err != nil {
		return err
	}
	r.operations.ObserveDuplicates(report)

	fmt.Fprint(c.App.Writer, report.Format())
	if path := c.String("output"); path != "" {
		if err := report.WriteFile(path, c.Duration("lock-timeout")); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Report written to %s\n", path)
	}
	return nil
}

func (r *runner) mergeCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 2 {
		return fmt.Errorf("merge expects two source databases, got %d arguments", c.NArg())
	}

	a, err := r.loadIndexAt(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	b, err := r.loadIndexAt(ctx, c.Args().Get(1))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	merged, err := db.Merge(ctx, a, b)
	if err != nil {
		r.operations.Observe("merge", 0, time.Since(start), err)
		return fmt.Errorf("merge failed: %w", err)
	}
	r.operations.Observe("merge", merged.Len(), time.Since(start), nil)

	renamed := 0
	for _, rec := range b.Records() {
		if _, ok := a.Lookup(rec.Name); ok {
			renamed++
		}
	}
	fmt.Fprintf(c.App.Writer, "Merged %d + %d lemmas into %d (%d renamed)\n",
		a.Len(), b.Len(), merged.Len(), renamed)
	return nil
}

func (r *runner) loadIndexAt(ctx context.Context, path string) (*core.Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("source database: %w", err)
	}
	db, err := r.openDatabaseAt(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.LoadIndex(ctx)
}

func (r *runner) reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", r.cfg.Storage.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", r.cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", r.cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	start := time.Now()
	err = db.Reembed(ctx, c.App.ErrWriter)
	if err != nil {
		r.operations.Observe("reembed", 0, time.Since(start), err)
		return fmt.Errorf("reembedding failed: %w", err)
	}
	count, err := db.LemmaRepository().CountLemmas(ctx)
	if err != nil {
		return err
	}
	r.operations.Observe("reembed", count, time.Since(start), nil)
	return nil
}

func (r *runner) fillSpecsCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	result, err := db.FillSpecs(ctx, c.String("repo-root"), c.Bool("overwrite"), !c.Bool("no-reembed"))
	r.operations.Observe("fill-specs", result.Filled, time.Since(start), err)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Specs: %d filled, %d skipped, %d not found, %d failed\n",
		result.Filled, result.Skipped, result.NotFound, result.Failed)
	if result.Reembedded > 0 {
		fmt.Fprintf(c.App.Writer, "Re-embedded %d lemmas\n", result.Reembedded)
	}
	return nil
}

func (r *runner) exportCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	idx, err := db.LoadIndex(ctx)
	if err != nil {
		return err
	}

	w := c.App.Writer
	if path := c.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return ingestion.WriteIndexFile(w, ingestion.ExportIndexFile(idx))
}

func (r *runner) enrichGraphCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return fmt.Errorf("enrich-graph expects one call graph file, got %d arguments", c.NArg())
	}
	input := c.Args().First()
	output := c.String("output")
	if output == "" {
		output = input
	}

	var searchOpts []search.Option
	if mode := c.String("mode"); mode != "" {
		parsed, err := core.ParseRankingSource(mode)
		if err != nil {
			return err
		}
		searchOpts = append(searchOpts, search.WithMode(parsed))
	}

	graph, err := callgraph.LoadGraph(input)
	if err != nil {
		return fmt.Errorf("failed to read call graph: %w", err)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(ctx, searchOpts...)
	if err != nil {
		return err
	}
	enricher, err := callgraph.NewEnricher(searcher,
		callgraph.WithTopK(c.Int("top-k")),
		callgraph.WithMonitor(r.search),
		callgraph.WithProgress(c.App.ErrWriter),
		callgraph.WithLogger(slog.Default()))
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := enricher.Enrich(ctx, graph)
	r.operations.Observe("enrich-graph", stats.Nodes, time.Since(start), err)
	if err != nil {
		return err
	}
	if err := graph.WriteFile(output); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Enriched %d of %d nodes with similar lemmas (%d without a name)\n",
		stats.Enriched, stats.Nodes, stats.Skipped)
	fmt.Fprintf(c.App.Writer, "Output: %s\n", output)
	return nil
}

func (r *runner) interactiveCommand(c *cli.Context) error {
	ctx := context.Background()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher(ctx)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%d lemmas loaded (mode %s). Enter a query, :similar <name>, or :quit.\n",
		searcher.Index().Len(), searcher.Mode())

	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		case strings.HasPrefix(line, ":similar "):
			name := strings.TrimSpace(strings.TrimPrefix(line, ":similar "))
			resp, err := searcher.FindSimilarTo(ctx, name, c.Int("top-k"))
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			if resp.NotFound {
				r.search.RecordNotFound()
			}
			fmt.Fprint(out, resp.Format())
		default:
			req, err := searchRequest(c, line)
			if err != nil {
				return err
			}
			resp, err := searcher.SearchWithMonitor(ctx, req, r.search)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprint(out, resp.Format())
		}
	}
}

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


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/lemmafind"
	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/config"
	"github.com/poiesic/lemmafind/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr, nil)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner carries the state shared by the commands of one invocation.
type runner struct {
	cfg      config.Config
	provider ai.AIProvider // overrides the configured provider when set

	registry   *prometheus.Registry
	search     *metrics.SearchMetrics
	operations *metrics.OperationMetrics
}

func newApp(in io.Reader, out, errOut io.Writer, provider ai.AIProvider) *cli.App {
	r := &runner{provider: provider}
	dbFlag := &cli.StringFlag{
		Name:    "db",
		Aliases: []string{"d"},
		Usage:   "Path to BadgerDB database directory (overrides storage.path)",
	}

	return &cli.App{
		Name:      "lemmafind",
		Usage:     "Search and deduplicate a formal-verification lemma library",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			dbFlag,
			&cli.BoolFlag{
				Name:  "no-embeddings",
				Usage: "Disable the embedding service; searches rank lexically",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides embedding.host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides embedding.model)",
			},
			&cli.StringFlag{
				Name:  "metrics-out",
				Usage: "Write Prometheus metrics to this textfile on exit",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return r.setup(c)
		},
		After: r.writeMetrics,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Build the index from a JSON lemma dump",
				ArgsUsage: "<dump.json>",
				Action:    r.ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "repo-root",
						Usage: "Fill missing clauses from the sources under this directory",
					},
					&cli.BoolFlag{
						Name:  "overwrite-specs",
						Usage: "Replace clauses carried by the dump with extracted ones",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank lemmas for a query",
				ArgsUsage: "<query>",
				Action:    r.searchCommand,
				Flags:     searchFlags(),
			},
			{
				Name:      "similar",
				Usage:     "Find lemmas similar to an indexed lemma",
				ArgsUsage: "<lemma name>",
				Action:    r.similarCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   5,
					},
				},
			},
			{
				Name:   "detect-duplicates",
				Usage:  "Report exact, subsuming and similar lemma pairs",
				Action: r.detectCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the JSON report to this file",
					},
					&cli.BoolFlag{
						Name:  "no-similar",
						Usage: "Do not report SIMILAR pairs",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum cosine for a pair to be compared (overrides duplicates.similarity_threshold)",
					},
					&cli.Float64Flag{
						Name:  "similar-threshold",
						Usage: "Minimum cosine for SIMILAR (overrides duplicates.similar_threshold)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent row scanners (overrides duplicates.workers)",
					},
					&cli.DurationFlag{
						Name:  "lock-timeout",
						Usage: "How long to wait for a concurrent report writer",
						Value: defaultLockTimeout,
					},
				},
			},
			{
				Name:      "merge",
				Usage:     "Merge two stored indexes into the database",
				ArgsUsage: "<db-a> <db-b>",
				Action:    r.mergeCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all lemmas with the configured embedding model",
				Action: r.reembedCommand,
			},
			{
				Name:   "fill-specs",
				Usage:  "Extract requires/ensures/decreases clauses from source files",
				Action: r.fillSpecsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "repo-root",
						Usage:    "Repository the lemma file paths are relative to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "overwrite",
						Usage: "Replace existing clauses",
					},
					&cli.BoolFlag{
						Name:  "no-reembed",
						Usage: "Keep the stored embeddings of lemmas whose clauses changed",
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Write the stored index as a JSON lemma dump",
				Action: r.exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default stdout)",
					},
				},
			},
			{
				Name:      "enrich-graph",
				Usage:     "Attach the most similar lemmas to every node of a call graph JSON",
				ArgsUsage: "<graph.json>",
				Action:    r.enrichGraphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default overwrites the input graph)",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Similar lemmas per node",
						Value:   3,
					},
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Ranking mode: lexical, semantic or hybrid (default from config)",
					},
				},
			},
			{
				Name:   "interactive",
				Usage:  "Read queries from stdin until EOF or :quit",
				Action: r.interactiveCommand,
				Flags:  searchFlags(),
			},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "top-k",
			Aliases: []string{"k"},
			Usage:   "Number of results (overrides search.default_top_k)",
		},
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Ranking mode: hybrid, semantic or lexical (overrides search.mode)",
		},
		&cli.StringSliceFlag{
			Name:  "origin",
			Usage: "Restrict results to an origin (project, external-library, other); repeatable",
		},
	}
}

// setup loads the configuration, applies the global flag overrides and
// installs the result.
func (r *runner) setup(c *cli.Context) error {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.Bool("no-embeddings") {
		cfg.Embedding.Enabled = false
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if err := config.Install(cfg); err != nil {
		return err
	}
	r.cfg = config.Current()

	r.registry = prometheus.NewRegistry()
	r.search = metrics.NewSearchMetrics(r.registry)
	r.operations = metrics.NewOperationMetrics(r.registry)
	return nil
}

func (r *runner) writeMetrics(c *cli.Context) error {
	path := c.String("metrics-out")
	if path == "" || r.registry == nil {
		return nil
	}
	return metrics.WriteTextfile(path, r.registry)
}

func (r *runner) openDatabase() (*lemmafind.Database, error) {
	return r.openDatabaseAt(r.cfg.Storage.Path)
}

func (r *runner) openDatabaseAt(path string) (*lemmafind.Database, error) {
	opts := []lemmafind.DatabaseOption{
		lemmafind.WithConfig(r.cfg),
		lemmafind.WithLogger(slog.Default()),
	}
	if r.provider != nil {
		opts = append(opts, lemmafind.WithProvider(r.provider))
	}
	db, err := lemmafind.NewDatabase(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

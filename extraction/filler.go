package extraction

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/poiesic/lemmafind/core"
)

// FillStats summarizes one Fill run.
type FillStats struct {
	Filled   int // records that received at least one clause
	Skipped  int // records that already had specs
	NotFound int // declaration or file not found
	Failed   int // read or extraction errors
}

// SpecFiller completes lemma records with clauses read from their source files.
type SpecFiller struct {
	reader    *SourceReader
	extractor ClauseExtractor
	overwrite bool
	logger    *slog.Logger
}

// FillerOption configures a SpecFiller.
type FillerOption func(*SpecFiller) error

// WithFillerLogger sets a custom logger.
// Default is slog.Default().
func WithFillerLogger(logger *slog.Logger) FillerOption {
	return func(f *SpecFiller) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// WithOverwrite re-extracts clauses for records that already have specs.
func WithOverwrite() FillerOption {
	return func(f *SpecFiller) error {
		f.overwrite = true
		return nil
	}
}

// NewSpecFiller creates a filler using reader and extractor.
func NewSpecFiller(reader *SourceReader, extractor ClauseExtractor, opts ...FillerOption) (*SpecFiller, error) {
	f := &SpecFiller{
		reader:    reader,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "spec_filler", "engine", extractor.Name())
	return f, nil
}

// Fill extracts clauses for every record and updates it in place. Records
// whose declaration cannot be found are left unchanged. A known declaration
// line is recorded on locations that have none.
func (f *SpecFiller) Fill(ctx context.Context, records []*core.LemmaRecord) (FillStats, error) {
	var stats FillStats
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if rec.HasSpecs() && !f.overwrite {
			stats.Skipped++
			continue
		}

		content, err := f.reader.Read(rec.Location.FilePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				stats.NotFound++
				f.logger.Debug("source file not found", "lemma", rec.Name, "path", rec.Location.FilePath)
				continue
			}
			stats.Failed++
			f.logger.Warn("reading source failed", "lemma", rec.Name, "error", err)
			continue
		}

		specs, err := f.extractor.Extract(content, rec.Name)
		if err != nil {
			stats.Failed++
			f.logger.Warn("extracting clauses failed", "lemma", rec.Name, "error", err)
			continue
		}
		if !specs.Found() {
			stats.NotFound++
			continue
		}

		rec.Requires = specs.Requires
		rec.Ensures = specs.Ensures
		rec.Decreases = specs.Decreases
		if _, ok := rec.Location.Line(); !ok {
			rec.Location = rec.Location.WithLine(specs.Line)
		}
		if rec.HasSpecs() {
			stats.Filled++
		}
	}

	f.logger.Info("filled specs",
		"filled", stats.Filled,
		"skipped", stats.Skipped,
		"not_found", stats.NotFound,
		"failed", stats.Failed)
	return stats, nil
}

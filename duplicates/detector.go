package duplicates

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lemmafind/config"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/embedding"
	"github.com/poiesic/lemmafind/normalize"
	"github.com/poiesic/lemmafind/progress"
)

// Kind classifies a reported pair.
type Kind int

const (
	KindExact Kind = iota + 1
	KindSubsumes
	KindSimilar
)

// String returns the lowercase kind name used in reports.
func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindSubsumes:
		return "subsumes"
	case KindSimilar:
		return "similar"
	default:
		return "unknown"
	}
}

// Finding is one reported pair. For SUBSUMES, General is the lemma whose
// requires set is the strict subset and Redundant is the other one. For EXACT
// and SIMILAR the two are ordered by name.
type Finding struct {
	Kind       Kind
	General    *core.LemmaRecord
	Redundant  *core.LemmaRecord
	Similarity float64
}

// Detector runs corpus-wide duplicate detection.
type Detector struct {
	cfg      config.DuplicatesConfig
	progress *progress.Tracker
	logger   *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithConfig replaces the thresholds and worker count. Invalid values are rejected.
func WithConfig(cfg config.DuplicatesConfig) Option {
	return func(d *Detector) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		d.cfg = cfg
		return nil
	}
}

// WithProgress reports completed rows to tracker.
func WithProgress(tracker *progress.Tracker) Option {
	return func(d *Detector) error {
		d.progress = tracker
		return nil
	}
}

// NewDetector creates a detector with the default thresholds.
func NewDetector(opts ...Option) (*Detector, error) {
	d := &Detector{
		cfg:    config.DefaultConfig().Duplicates,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "duplicates")
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() config.DuplicatesConfig {
	return d.cfg
}

type contract struct {
	requires map[string]struct{}
	ensures  map[string]struct{}
}

func newContract(rec *core.LemmaRecord) contract {
	return contract{requires: clauseSet(rec.Requires), ensures: clauseSet(rec.Ensures)}
}

func clauseSet(clauses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(clauses))
	for _, c := range clauses {
		if c = normalize.CollapseWhitespace(c); c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Detect compares every pair of embedded records in idx. Records without an
// embedding are skipped and counted in the report. The index is only read.
func (d *Detector) Detect(ctx context.Context, idx *core.Index) (*Report, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}

	vectors := embedding.NewIndex(idx)
	n := vectors.Len()
	records := make([]*core.LemmaRecord, n)
	contracts := make([]contract, n)
	for i := range n {
		records[i], _ = idx.Lookup(vectors.Name(i))
		contracts[i] = newContract(records[i])
	}

	d.logger.Info("detecting duplicates",
		"embedded", n,
		"skipped", idx.Len()-n,
		"threshold", d.cfg.SimilarityThreshold,
		"similar_threshold", d.cfg.SimilarThreshold)

	if d.progress != nil {
		d.progress.Start()
	}

	pool, err := ants.NewPool(d.cfg.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	rows := make([][]Finding, n)
	var (
		wg        sync.WaitGroup
		submitErr error
	)
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			rows[i] = d.scanRow(vectors, i, records, contracts)
			if d.progress != nil {
				d.progress.Increment(1)
			}
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()

	if submitErr != nil {
		return nil, submitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.progress != nil {
		d.progress.Finish()
	}

	report := &Report{
		SimilarityThreshold: d.cfg.SimilarityThreshold,
		SimilarThreshold:    d.cfg.SimilarThreshold,
		IncludeSimilar:      d.cfg.IncludeSimilar,
		Compared:            n,
		Skipped:             idx.Len() - n,
	}
	for _, row := range rows {
		report.Findings = append(report.Findings, row...)
	}
	sortFindings(report.Findings)

	d.logger.Info("duplicate detection finished",
		"exact", report.Count(KindExact),
		"subsumes", report.Count(KindSubsumes),
		"similar", report.Count(KindSimilar))
	return report, nil
}

// scanRow classifies record i against every later record.
func (d *Detector) scanRow(vectors *embedding.Index, i int, records []*core.LemmaRecord, contracts []contract) []Finding {
	var out []Finding
	for _, pair := range vectors.Row(i, d.cfg.SimilarityThreshold) {
		if f, ok := d.classify(pair, records, contracts); ok {
			out = append(out, f)
		}
	}
	return out
}

func (d *Detector) classify(pair embedding.Pair, records []*core.LemmaRecord, contracts []contract) (Finding, bool) {
	a, b := records[pair.I], records[pair.J]
	ca, cb := contracts[pair.I], contracts[pair.J]

	if len(ca.ensures) > 0 && setEqual(ca.ensures, cb.ensures) {
		switch {
		case setEqual(ca.requires, cb.requires):
			general, redundant := byName(a, b)
			return Finding{Kind: KindExact, General: general, Redundant: redundant, Similarity: pair.Similarity}, true
		case strictSubset(ca.requires, cb.requires):
			return Finding{Kind: KindSubsumes, General: a, Redundant: b, Similarity: pair.Similarity}, true
		case strictSubset(cb.requires, ca.requires):
			return Finding{Kind: KindSubsumes, General: b, Redundant: a, Similarity: pair.Similarity}, true
		}
	}

	if d.cfg.IncludeSimilar && pair.Similarity >= d.cfg.SimilarThreshold {
		general, redundant := byName(a, b)
		return Finding{Kind: KindSimilar, General: general, Redundant: redundant, Similarity: pair.Similarity}, true
	}
	return Finding{}, false
}

func byName(a, b *core.LemmaRecord) (*core.LemmaRecord, *core.LemmaRecord) {
	if b.Name < a.Name {
		return b, a
	}
	return a, b
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func strictSubset(a, b map[string]struct{}) bool {
	if len(a) >= len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// sortFindings orders by kind, then similarity descending, then names.
func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		fi, fj := findings[i], findings[j]
		if fi.Kind != fj.Kind {
			return fi.Kind < fj.Kind
		}
		if fi.Similarity != fj.Similarity {
			return fi.Similarity > fj.Similarity
		}
		if fi.General.Name != fj.General.Name {
			return fi.General.Name < fj.General.Name
		}
		return fi.Redundant.Name < fj.Redundant.Name
	})
}

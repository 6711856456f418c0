package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/lemmafind/ai"
	"github.com/poiesic/lemmafind/config"
	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/embedding"
	"github.com/poiesic/lemmafind/lexical"
	"github.com/poiesic/lemmafind/normalize"
)

// Searcher ranks the lemmas of one read-only Index.
// It is safe for concurrent use.
type Searcher struct {
	index      *core.Index
	docs       []*lexical.Document
	positions  map[string]int
	vectors    *embedding.Index
	scorer     *lexical.Scorer
	normalizer *normalize.Normalizer
	embedder   ai.Embedder
	cfg        config.SearchConfig
	mode       core.RankingSource
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithEmbedder sets the function used to embed query variants.
// Without one, semantic and hybrid searches degrade to lexical ranking.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(s *Searcher) error {
		s.embedder = embedder
		return nil
	}
}

// WithConfig replaces the search configuration. Invalid values are rejected.
func WithConfig(cfg config.SearchConfig) Option {
	return func(s *Searcher) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		mode, err := core.ParseRankingSource(cfg.Mode)
		if err != nil {
			return err
		}
		s.cfg = cfg
		s.mode = mode
		return nil
	}
}

// WithMode overrides the default ranking mode.
func WithMode(mode core.RankingSource) Option {
	return func(s *Searcher) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: unknown ranking mode %d", core.ErrValidation, mode)
		}
		s.mode = mode
		s.cfg.Mode = mode.String()
		return nil
	}
}

// WithDegradeOnEmbeddingFailure makes a failing embedder produce a lexical
// ranking with a warning instead of an EmbeddingError.
func WithDegradeOnEmbeddingFailure() Option {
	return func(s *Searcher) error {
		s.cfg.DegradeOnEmbeddingFailure = true
		return nil
	}
}

// WithNormalizer sets a custom query normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Searcher) error {
		if n != nil {
			s.normalizer = n
		}
		return nil
	}
}

// NewSearcher creates a searcher over index. Lemma documents are tokenized
// once here; the index must not change afterwards.
func NewSearcher(index *core.Index, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}

	s := &Searcher{
		index:      index,
		normalizer: normalize.New(),
		cfg:        config.DefaultConfig().Search,
		mode:       core.SourceHybrid,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	s.scorer = lexical.NewScorer(lexical.Weights{
		Name:          s.cfg.NameMatchBoost,
		Documentation: s.cfg.DocMatchBoost,
		Signature:     1.0,
		Clauses:       1.0,
	})
	s.docs = make([]*lexical.Document, index.Len())
	s.positions = make(map[string]int, index.Len())
	for i, rec := range index.Records() {
		s.docs[i] = lexical.NewDocument(rec)
		s.positions[rec.Name] = i
	}
	s.vectors = embedding.NewIndex(index)

	return s, nil
}

// Config returns the search configuration in use.
func (s *Searcher) Config() config.SearchConfig {
	return s.cfg
}

// Mode returns the default ranking mode.
func (s *Searcher) Mode() core.RankingSource {
	return s.mode
}

// Index returns the index being searched.
func (s *Searcher) Index() *core.Index {
	return s.index
}

// Request describes one search.
type Request struct {
	Query string
	// TopK defaults to the configured default_top_k when not positive.
	TopK int
	// Mode defaults to the configured mode when zero.
	Mode core.RankingSource
	// Origins restricts candidates to the listed origins. Empty means all.
	Origins []core.Origin
	// Variants bypasses query normalization when set.
	Variants []core.QueryVariant

	exclude string
}

// Search ranks lemmas for a raw query with the configured mode and top K.
func (s *Searcher) Search(ctx context.Context, query string) (*Response, error) {
	return s.SearchWithMonitor(ctx, Request{Query: query}, nil)
}

// SearchRequest ranks lemmas for a fully specified request.
func (s *Searcher) SearchRequest(ctx context.Context, req Request) (*Response, error) {
	return s.SearchWithMonitor(ctx, req, nil)
}

// SearchVariants ranks lemmas for pre-normalized query variants.
func (s *Searcher) SearchVariants(ctx context.Context, variants []core.QueryVariant, topK int, mode core.RankingSource) (*Response, error) {
	return s.SearchWithMonitor(ctx, Request{Variants: variants, TopK: topK, Mode: mode}, nil)
}

// FindSimilarTo ranks lemmas similar to an indexed lemma. The pseudo-query is
// built from the lemma's documentation, signature and clauses. The lemma itself
// is excluded unless include_self is configured. An unknown name yields a
// Response with NotFound set and no error.
func (s *Searcher) FindSimilarTo(ctx context.Context, name string, topK int) (*Response, error) {
	rec, ok := s.index.Lookup(name)
	if !ok {
		s.logger.Debug("similar lookup for unknown lemma", "name", name)
		return &Response{Requested: s.mode, Mode: s.mode, NotFound: true}, nil
	}

	req := Request{Query: pseudoQuery(rec), TopK: topK}
	if !s.cfg.IncludeSelf {
		req.exclude = rec.Name
	}
	return s.SearchWithMonitor(ctx, req, nil)
}

func pseudoQuery(rec *core.LemmaRecord) string {
	parts := make([]string, 0, 2+len(rec.Requires)+len(rec.Ensures)+len(rec.Decreases))
	for _, p := range append([]string{rec.Documentation, rec.Signature}, rec.Clauses()...) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return rec.Name
	}
	return strings.Join(parts, " ")
}

// SearchWithMonitor runs the ranking pipeline. The monitor receives callbacks
// at each stage; nil disables monitoring.
func (s *Searcher) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) (*Response, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	mode := req.Mode
	if mode == 0 {
		mode = s.mode
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown ranking mode %d", core.ErrValidation, mode)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	monitor.Start(req.Query, mode)

	// 1. Normalize
	variants := req.Variants
	if len(variants) == 0 {
		variants = s.normalizer.Normalize(req.Query)
	}
	monitor.AfterNormalization(variants)

	resp := &Response{Requested: mode, Mode: mode, Variants: variants}
	candidates := s.candidates(req)

	// 2. Lexical scoring, best variant per record
	lex := s.lexicalScores(variants, candidates)
	monitor.AfterLexicalScoring(countPositive(lex))

	// 3. Semantic scoring, best variant per record
	var sem map[string]float64
	if mode != core.SourceLexical {
		var warning *Warning
		var err error
		sem, warning, err = s.semanticScores(ctx, variants)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			s.degrade(resp, *warning, monitor)
			resp.Mode = core.SourceLexical
		} else {
			monitor.AfterSemanticScoring(len(sem))
			if missing := s.index.Len() - s.vectors.Len(); missing > 0 {
				s.degrade(resp, Warning{
					Kind:    WarnPartialEmbeddings,
					Message: fmt.Sprintf("%d of %d lemmas have no embedding", missing, s.index.Len()),
				}, monitor)
			}
		}
	}

	// 4. Fuse and rank
	results := s.fuse(resp.Mode, candidates, lex, sem)
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Name < results[j].Record.Name
	})
	if len(results) > topK {
		results = results[:topK]
	}

	queries := make([]lexical.Query, len(variants))
	for i, v := range variants {
		queries[i] = lexical.NewQuery(v.Text)
	}
	for i := range results {
		results[i].MatchedClauses = s.matchedClauses(queries, s.docs[s.positions[results[i].Record.Name]])
	}
	resp.Results = results

	monitor.Finish(resp)
	return resp, nil
}

func (s *Searcher) degrade(resp *Response, warning Warning, monitor SearchMonitor) {
	s.logger.Warn("search degraded", "kind", warning.Kind.String(), "reason", warning.Message)
	resp.Warnings = append(resp.Warnings, warning)
	monitor.Degraded(warning)
}

// candidates returns index positions eligible for this request.
func (s *Searcher) candidates(req Request) []int {
	allowed := make(map[core.Origin]bool, len(req.Origins))
	for _, o := range req.Origins {
		allowed[o] = true
	}
	out := make([]int, 0, s.index.Len())
	for i, rec := range s.index.Records() {
		if req.exclude != "" && rec.Name == req.exclude {
			continue
		}
		if len(allowed) > 0 && !allowed[rec.Origin] {
			continue
		}
		out = append(out, i)
	}
	return out
}

// lexicalScores returns the best weighted lexical score per index position.
func (s *Searcher) lexicalScores(variants []core.QueryVariant, candidates []int) []float64 {
	scores := make([]float64, s.index.Len())
	for _, v := range variants {
		q := lexical.NewQuery(v.Text)
		if q.Empty() {
			continue
		}
		w := v.EffectiveWeight()
		for _, i := range candidates {
			if score := w * s.scorer.Score(q, s.docs[i]); score > scores[i] {
				scores[i] = score
			}
		}
	}
	return scores
}

// semanticScores returns the best weighted cosine per embedded record. A
// non-nil Warning means semantic scoring is unavailable for this query.
func (s *Searcher) semanticScores(ctx context.Context, variants []core.QueryVariant) (map[string]float64, *Warning, error) {
	if s.embedder == nil {
		return nil, &Warning{Kind: WarnNoEmbedder, Message: "no embedding function configured, using lexical ranking"}, nil
	}
	if s.vectors.Len() == 0 {
		return nil, &Warning{Kind: WarnNoIndexEmbeddings, Message: "no lemma in the index has an embedding, using lexical ranking"}, nil
	}

	best := make(map[string]float64, s.vectors.Len())
	for _, v := range variants {
		if strings.TrimSpace(v.Text) == "" {
			continue
		}
		vec, err := s.embedder.EmbedText(ctx, v.Text)
		if err != nil {
			if s.cfg.DegradeOnEmbeddingFailure {
				return nil, &Warning{Kind: WarnEmbeddingFailed, Message: fmt.Sprintf("embedding failed, using lexical ranking: %v", err)}, nil
			}
			s.logger.Error("error generating embedding for query", "variant", v.Text, "err", err)
			return nil, nil, &EmbeddingError{Variant: v.Text, Err: err}
		}
		scores, err := s.vectors.ScoreAll(vec)
		if err != nil {
			return nil, nil, err
		}
		w := v.EffectiveWeight()
		for name, score := range scores {
			score *= w
			if prev, ok := best[name]; !ok || score > prev {
				best[name] = score
			}
		}
	}
	return best, nil, nil
}

// fuse turns raw scores into ranked results for the given mode.
func (s *Searcher) fuse(mode core.RankingSource, candidates []int, lex []float64, sem map[string]float64) []core.ScoredResult {
	var maxLex, maxSem float64
	for _, i := range candidates {
		maxLex = max(maxLex, lex[i])
		if score, ok := sem[s.index.At(i).Name]; ok {
			maxSem = max(maxSem, score)
		}
	}

	results := make([]core.ScoredResult, 0, len(candidates))
	for _, i := range candidates {
		rec := s.index.At(i)
		semScore, hasSem := sem[rec.Name]
		res := core.ScoredResult{
			Record:        rec,
			Source:        mode,
			LexicalScore:  lex[i],
			SemanticScore: semScore,
			HasSemantic:   hasSem,
		}

		switch mode {
		case core.SourceLexical:
			if lex[i] <= 0 {
				continue
			}
			res.Score = lex[i]
		case core.SourceSemantic:
			// records without a vector are not candidates at all
			if !hasSem {
				continue
			}
			res.Score = semScore
		default:
			lexNorm := ratio(lex[i], maxLex)
			if hasSem {
				res.Score = s.cfg.SemanticWeight*ratio(max(semScore, 0), maxSem) + s.cfg.KeywordWeight*lexNorm
			} else if s.cfg.KeywordWeight > 0 {
				res.Score = lexNorm
			}
			if res.Score <= 0 {
				continue
			}
		}
		results = append(results, res)
	}
	return results
}

func (s *Searcher) matchedClauses(queries []lexical.Query, doc *lexical.Document) []string {
	var out []string
	seen := make(map[string]bool)
	for _, q := range queries {
		for _, c := range s.scorer.MatchedClauses(q, doc) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func ratio(v, maxV float64) float64 {
	if maxV <= 0 {
		return 0
	}
	return v / maxV
}

func countPositive(scores []float64) int {
	n := 0
	for _, v := range scores {
		if v > 0 {
			n++
		}
	}
	return n
}

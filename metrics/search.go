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


package metrics

import (
	"sync"
	"time"

	"github.com/poiesic/lemmafind/core"
	"github.com/poiesic/lemmafind/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lemmafind"

// SearchMetrics records Prometheus metrics for searches. It implements
// search.SearchMonitor and may be shared by concurrent searches, though
// latency is only exact when searches do not overlap.
type SearchMetrics struct {
	queries  *prometheus.CounterVec
	degraded *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	results  prometheus.Histogram
	variants prometheus.Histogram
	lexical  prometheus.Histogram
	semantic prometheus.Histogram
	notFound prometheus.Counter

	mu      sync.Mutex
	started time.Time
	mode    core.RankingSource
}

var _ search.SearchMonitor = (*SearchMetrics)(nil)

// NewSearchMetrics registers the search metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &SearchMetrics{
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Searches by requested ranking mode",
		}, []string{"mode"}),
		degraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "degraded_total",
			Help:      "Degraded-mode warnings by kind",
		}, []string{"kind"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "latency_seconds",
			Help:      "Search latency in seconds by ranking mode",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"mode"}),
		results: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}),
		variants: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "query_variants",
			Help:      "Number of query variants after normalization",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}),
		lexical: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "lexical_matches",
			Help:      "Records with a positive lexical score per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		semantic: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "semantic_scored",
			Help:      "Records scored by embedding similarity per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		notFound: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "similar_not_found_total",
			Help:      "Similar-lemma lookups for names that are not indexed",
		}),
	}
}

func (m *SearchMetrics) Start(_ string, mode core.RankingSource) {
	m.queries.WithLabelValues(mode.String()).Inc()

	m.mu.Lock()
	m.started = time.Now()
	m.mode = mode
	m.mu.Unlock()
}

func (m *SearchMetrics) AfterNormalization(variants []core.QueryVariant) {
	m.variants.Observe(float64(len(variants)))
}

func (m *SearchMetrics) AfterLexicalScoring(matched int) {
	m.lexical.Observe(float64(matched))
}

func (m *SearchMetrics) AfterSemanticScoring(scored int) {
	m.semantic.Observe(float64(scored))
}

func (m *SearchMetrics) Degraded(warning search.Warning) {
	m.degraded.WithLabelValues(warning.Kind.String()).Inc()
}

func (m *SearchMetrics) Finish(resp *search.Response) {
	m.mu.Lock()
	elapsed := time.Since(m.started)
	mode := m.mode
	m.mu.Unlock()

	m.latency.WithLabelValues(mode.String()).Observe(elapsed.Seconds())
	m.results.Observe(float64(len(resp.Results)))
}

// RecordNotFound counts a similar-lemma lookup for an unknown name.
func (m *SearchMetrics) RecordNotFound() {
	m.notFound.Inc()
}

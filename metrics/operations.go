package metrics

import (
	"fmt"
	"time"

	"github.com/poiesic/lemmafind/duplicates"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OperationMetrics records batch operations: ingestion, re-embedding, merges
// and duplicate detection.
type OperationMetrics struct {
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
	failures *prometheus.CounterVec
	findings *prometheus.GaugeVec
}

// NewOperationMetrics registers the operation metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewOperationMetrics(reg prometheus.Registerer) *OperationMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &OperationMetrics{
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "duration_seconds",
			Help:      "Operation wall time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"operation"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "lemmas_total",
			Help:      "Lemmas processed by operation",
		}, []string{"operation"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "operation",
			Name:      "failures_total",
			Help:      "Failed operations",
		}, []string{"operation"}),
		findings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "duplicates",
			Name:      "findings",
			Help:      "Duplicate findings of the last detection run by kind",
		}, []string{"kind"}),
	}
}

// Observe records one finished operation. A non-nil err counts a failure
// and no lemmas.
func (m *OperationMetrics) Observe(operation string, lemmas int, elapsed time.Duration, err error) {
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(operation).Inc()
		return
	}
	m.items.WithLabelValues(operation).Add(float64(lemmas))
}

// ObserveDuplicates sets the finding gauges from report.
func (m *OperationMetrics) ObserveDuplicates(report *duplicates.Report) {
	for _, kind := range []duplicates.Kind{duplicates.KindExact, duplicates.KindSubsumes, duplicates.KindSimilar} {
		m.findings.WithLabelValues(kind.String()).Set(float64(report.Count(kind)))
	}
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

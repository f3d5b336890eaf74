// Package metrics holds the Prometheus collectors for knowledge base and
// reasoner activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for abl_abductions_total.
const (
	OutcomeUnchanged   = "unchanged" // prediction already consistent
	OutcomeRevised     = "revised"
	OutcomeNoCandidate = "no_candidate"
	OutcomeError       = "error"
)

// Metrics holds Prometheus metrics for abduction.
type Metrics struct {
	Abductions           *prometheus.CounterVec
	AbduceDuration       prometheus.Histogram
	Candidates           prometheus.Histogram
	RevisionBudget       prometheus.Histogram
	OracleEvaluations    prometheus.Counter
	OracleCacheHits      prometheus.Counter
	OptimizerEvaluations prometheus.Counter
	KBEntries            *prometheus.GaugeVec
}

// New creates and registers the collectors on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
//
// Metrics:
//   - abl_abductions_total{outcome} - abductions by outcome
//   - abl_abduce_duration_seconds - per-sample abduction latency
//   - abl_candidates - candidates found per sample
//   - abl_revision_budget - resolved revision budget per sample
//   - abl_oracle_evaluations_total - logical forward evaluations
//   - abl_oracle_cache_hits_total - memoized evaluations
//   - abl_optimizer_evaluations_total - objective evaluations by the optimizer
//   - abl_kb_entries{kind} - sequences held by a materialized knowledge base
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Abductions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "abl_abductions_total",
				Help: "Total number of abductions by outcome",
			},
			[]string{"outcome"},
		),
		AbduceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "abl_abduce_duration_seconds",
			Help:    "Duration of a single-sample abduction in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		Candidates: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "abl_candidates",
			Help:    "Number of consistent candidates found per sample",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 64, 256, 1024},
		}),
		RevisionBudget: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "abl_revision_budget",
			Help:    "Resolved maximum revision count per sample",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
		OracleEvaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "abl_oracle_evaluations_total",
			Help: "Total number of logical forward evaluations",
		}),
		OracleCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "abl_oracle_cache_hits_total",
			Help: "Total number of oracle evaluations served from the memo cache",
		}),
		OptimizerEvaluations: f.NewCounter(prometheus.CounterOpts{
			Name: "abl_optimizer_evaluations_total",
			Help: "Total number of objective evaluations spent by the optimizer",
		}),
		KBEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "abl_kb_entries",
				Help: "Number of sequences stored in a materialized knowledge base",
			},
			[]string{"kind"},
		),
	}
}

// RecordAbduction counts one abduction and its latency.
func (m *Metrics) RecordAbduction(outcome string, candidates, budget int, d time.Duration) {
	if m == nil {
		return
	}
	m.Abductions.WithLabelValues(outcome).Inc()
	m.Candidates.Observe(float64(candidates))
	m.RevisionBudget.Observe(float64(budget))
	m.AbduceDuration.Observe(d.Seconds())
}

// AddOracleEvaluations adds evaluated and cache-served counts.
func (m *Metrics) AddOracleEvaluations(evaluated, cached int) {
	if m == nil {
		return
	}
	if evaluated > 0 {
		m.OracleEvaluations.Add(float64(evaluated))
	}
	if cached > 0 {
		m.OracleCacheHits.Add(float64(cached))
	}
}

// AddOptimizerEvaluations adds objective evaluations.
func (m *Metrics) AddOptimizerEvaluations(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OptimizerEvaluations.Add(float64(n))
}

// SetKBEntries publishes the size of a knowledge base.
func (m *Metrics) SetKBEntries(kind string, n int) {
	if m == nil {
		return
	}
	m.KBEntries.WithLabelValues(kind).Set(float64(n))
}

// Package metrics exposes prometheus collectors for ingestion and retrieval.
// Collectors live on a private registry so tests and multiple servers in one
// process never collide on global registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sercha_rag"

// Candidate outcomes counted by ObserveRetrieval.
const (
	OutcomeBelowThreshold = "below_threshold"
	OutcomeFilteredOut    = "filtered_out"
	OutcomeTruncated      = "truncated"
	OutcomeReturned       = "returned"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	chunksBuilt       *prometheus.CounterVec
	uploadFailures    prometheus.Counter
	ingestions        *prometheus.CounterVec
	retrievals        *prometheus.CounterVec
	candidates        *prometheus.CounterVec
	degradedReranks   prometheus.Counter
	synthesisFailures prometheus.Counter
	retrievalSeconds  prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chunksBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_built_total",
			Help:      "Chunks built during ingestion, by level.",
		}, []string{"level"}),
		uploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Chunks that failed to upsert.",
		}),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Ingestion runs, by outcome.",
		}, []string{"outcome"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrieve calls, by context mode.",
		}, []string{"mode"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates_total",
			Help:      "Fetched candidates, by outcome.",
		}, []string{"outcome"}),
		degradedReranks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_reranks_total",
			Help:      "Rerank attempts that fell back to similarity order.",
		}),
		synthesisFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_failures_total",
			Help:      "Synthesis attempts that failed.",
		}),
		retrievalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieve latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.chunksBuilt,
		m.uploadFailures,
		m.ingestions,
		m.retrievals,
		m.candidates,
		m.degradedReranks,
		m.synthesisFailures,
		m.retrievalSeconds,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// AddChunksBuilt counts chunks built at a level.
func (m *Metrics) AddChunksBuilt(level string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.chunksBuilt.WithLabelValues(level).Add(float64(n))
}

// AddUploadFailures counts chunks that failed to upsert.
func (m *Metrics) AddUploadFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.uploadFailures.Add(float64(n))
}

// IncIngestion counts an ingestion run by outcome (completed, partial, skipped, failed).
func (m *Metrics) IncIngestion(outcome string) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(outcome).Inc()
}

// ObserveRetrieval records one retrieve call and its candidate accounting.
func (m *Metrics) ObserveRetrieval(mode string, belowThreshold, filteredOut, truncated, returned int, took time.Duration) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(mode).Inc()
	m.candidates.WithLabelValues(OutcomeBelowThreshold).Add(float64(belowThreshold))
	m.candidates.WithLabelValues(OutcomeFilteredOut).Add(float64(filteredOut))
	m.candidates.WithLabelValues(OutcomeTruncated).Add(float64(truncated))
	m.candidates.WithLabelValues(OutcomeReturned).Add(float64(returned))
	m.retrievalSeconds.Observe(took.Seconds())
}

// IncDegradedRerank counts a rerank fallback.
func (m *Metrics) IncDegradedRerank() {
	if m == nil {
		return
	}
	m.degradedReranks.Inc()
}

// IncSynthesisFailure counts a failed synthesis.
func (m *Metrics) IncSynthesisFailure() {
	if m == nil {
		return
	}
	m.synthesisFailures.Inc()
}

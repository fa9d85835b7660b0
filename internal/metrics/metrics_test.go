package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AddChunksBuilt("child", 4)
	m.AddChunksBuilt("parent", 1)
	m.AddUploadFailures(2)
	m.IncIngestion("partial")
	m.IncDegradedRerank()
	m.IncSynthesisFailure()

	assert.InDelta(t, 4, testutil.ToFloat64(m.chunksBuilt.WithLabelValues("child")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.chunksBuilt.WithLabelValues("parent")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.uploadFailures), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ingestions.WithLabelValues("partial")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.degradedReranks), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.synthesisFailures), 1e-9)
}

func TestMetrics_ObserveRetrieval(t *testing.T) {
	m := New()

	m.ObserveRetrieval("contextual", 5, 3, 2, 10, 40*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(m.retrievals.WithLabelValues("contextual")), 1e-9)
	assert.InDelta(t, 5, testutil.ToFloat64(m.candidates.WithLabelValues(OutcomeBelowThreshold)), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(m.candidates.WithLabelValues(OutcomeReturned)), 1e-9)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.AddChunksBuilt("flat", 1)
		m.AddUploadFailures(1)
		m.IncIngestion("completed")
		m.ObserveRetrieval("precise", 0, 0, 0, 0, time.Second)
		m.IncDegradedRerank()
		m.IncSynthesisFailure()
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddChunksBuilt("flat", 3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `sercha_rag_chunks_built_total{level="flat"} 3`)
}

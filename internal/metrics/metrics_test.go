package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncIngestResult("traffic_sign_real", "ok")
	m.IncIngestResult("traffic_sign_real", "ok")
	m.IncIconFailure()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestResults.WithLabelValues("traffic_sign_real", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.iconFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "/", "200", 1)
		m.IncImportRow("plan", "new")
		m.ObserveRun("ingest", NewRunMetrics("ingest"))
	})
}

func TestRunSummary(t *testing.T) {
	r := NewRunMetrics("ingest")
	r.StartPhase("parse")
	r.EndPhase("parse")
	r.Count("ok")
	r.Count("ok")
	r.Count("skip")
	r.Finish()
	s := r.Summary()
	assert.True(t, strings.HasPrefix(s, "ingest: ok=2, skip=1"))
	assert.Contains(t, s, "parse:")
}

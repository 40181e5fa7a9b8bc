package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the registry. A nil *Metrics
// records nothing.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
	importRows    *prometheus.CounterVec
	ingestResults *prometheus.CounterVec
	matchResults  *prometheus.CounterVec
	iconFailures  prometheus.Counter
	storageBytes  *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_http_request_duration_ms",
				Help:    "Latency of HTTP requests in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"method", "route"},
		),
		importRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_import_rows_total",
				Help: "Rows processed by CSV/XLSX imports",
			},
			[]string{"kind", "result"},
		),
		ingestResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_ingest_results_total",
				Help: "Results emitted by scanner ingest",
			},
			[]string{"object_type", "result_type"},
		),
		matchResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_match_results_total",
				Help: "Results emitted by the plan-to-real matcher",
			},
			[]string{"kind", "result_type"},
		),
		iconFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "registry_icon_render_failures_total",
				Help: "Device type icon renders or uploads that failed",
			},
		),
		storageBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registry_storage_bytes_total",
				Help: "Bytes written to and read from object storage",
			},
			[]string{"direction"},
		),
		runDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registry_batch_run_duration_seconds",
				Help:    "Duration of ingest, import and match runs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900},
			},
			[]string{"run"},
		),
	}
}

// RecordRequest records one HTTP request
func (m *Metrics) RecordRequest(method, route, status string, milliseconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(milliseconds)
}

// IncImportRow counts one imported row by result ("new", "update", "error")
func (m *Metrics) IncImportRow(kind, result string) {
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(kind, result).Inc()
}

// IncIngestResult counts one ingest result row
func (m *Metrics) IncIngestResult(objectType, resultType string) {
	if m == nil {
		return
	}
	m.ingestResults.WithLabelValues(objectType, resultType).Inc()
}

// IncMatchResult counts one matcher result row
func (m *Metrics) IncMatchResult(kind, resultType string) {
	if m == nil {
		return
	}
	m.matchResults.WithLabelValues(kind, resultType).Inc()
}

// IncIconFailure counts a failed icon derivative
func (m *Metrics) IncIconFailure() {
	if m == nil {
		return
	}
	m.iconFailures.Inc()
}

// AddStorageBytes adds to the storage traffic counter
func (m *Metrics) AddStorageBytes(direction string, n int64) {
	if m == nil {
		return
	}
	m.storageBytes.WithLabelValues(direction).Add(float64(n))
}

// ObserveRun records the duration of a finished batch run
func (m *Metrics) ObserveRun(run string, r *RunMetrics) {
	if m == nil || r == nil {
		return
	}
	m.runDuration.WithLabelValues(run).Observe(r.TotalLatencyMs / 1000)
}

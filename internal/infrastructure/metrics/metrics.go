// Package metrics holds the importer's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog"

// Row outcomes
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics import va storage metrikalari
type Metrics struct {
	registry *prometheus.Registry

	rows           *prometheus.CounterVec
	chunkFallbacks *prometheus.CounterVec
	jobs           *prometheus.CounterVec
	importDuration prometheus.Histogram
	dbSizeBytes    prometheus.Gauge
	dbSizePercent  prometheus.Gauge
	cleanups       *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_rows_total",
			Help:      "Rows handled by the persistence engine by kind and outcome",
		}, []string{"kind", "outcome"}),

		chunkFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_chunk_fallbacks_total",
			Help:      "Chunks retried row by row after a failed bulk insert",
		}, []string{"kind"}),

		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Import jobs that reached a terminal status",
		}, []string{"status"}),

		importDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall time of import jobs from start to terminal status",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),

		dbSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_size_bytes",
			Help:      "Last measured database size",
		}),

		dbSizePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_size_percent",
			Help:      "Last measured database size as percent of the capacity ceiling",
		}),

		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_cleanups_total",
			Help:      "Storage guard cleanups by status that triggered them",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.rows, m.chunkFallbacks, m.jobs, m.importDuration,
		m.dbSizeBytes, m.dbSizePercent, m.cleanups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler /metrics uchun http handler
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// AddRows counts n rows of one kind with an outcome.
func (m *Metrics) AddRows(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(kind, outcome).Add(float64(n))
}

// ChunkFallback chunk row-by-row rejimga o'tdi
func (m *Metrics) ChunkFallback(kind string) {
	if m == nil {
		return
	}
	m.chunkFallbacks.WithLabelValues(kind).Inc()
}

// JobFinished records a terminal transition and its duration.
func (m *Metrics) JobFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(status).Inc()
	if elapsed > 0 {
		m.importDuration.Observe(elapsed.Seconds())
	}
}

// DBSize oxirgi o'lchov
func (m *Metrics) DBSize(bytes int64, percent float64) {
	if m == nil {
		return
	}
	m.dbSizeBytes.Set(float64(bytes))
	m.dbSizePercent.Set(percent)
}

// Cleanup tozalash hisoblagichi
func (m *Metrics) Cleanup(status string) {
	if m == nil {
		return
	}
	m.cleanups.WithLabelValues(status).Inc()
}

// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "signal_analytics"

// Snapshot write results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Ingestion metrics
	TradesRecorded *prometheus.CounterVec
	TradesRejected prometheus.Counter
	TradesDeleted  prometheus.Counter
	TradesStored   prometheus.Gauge

	// Persistence metrics
	SnapshotWrites *prometheus.CounterVec
	SnapshotBytes  prometheus.Gauge

	// Query metrics
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TradesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_recorded_total",
			Help:      "Total number of trades recorded by signal type",
		}, []string{"signal_type"}),
		TradesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_rejected_total",
			Help:      "Total number of trades rejected by validation",
		}),
		TradesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_deleted_total",
			Help:      "Total number of trades deleted",
		}),
		TradesStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_stored",
			Help:      "Current number of trades held by the aggregator",
		}),

		SnapshotWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "snapshot_writes_total",
			Help:      "Total number of snapshot writes by result",
		}, []string{"result"}),
		SnapshotBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "snapshot_bytes",
			Help:      "Size of the last successfully written snapshot",
		}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query latency by operation",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, e.g. to add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordTrade increments the recorded counter and updates the stored gauge.
func (m *Metrics) RecordTrade(signalType string, stored int) {
	if m == nil {
		return
	}
	m.TradesRecorded.WithLabelValues(signalType).Inc()
	m.TradesStored.Set(float64(stored))
}

// RecordRejected increments the validation rejection counter.
func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.TradesRejected.Inc()
}

// RecordDeleted increments the deletion counter and updates the stored gauge.
func (m *Metrics) RecordDeleted(stored int) {
	if m == nil {
		return
	}
	m.TradesDeleted.Inc()
	m.TradesStored.Set(float64(stored))
}

// SetStored sets the stored gauge, e.g. after an import.
func (m *Metrics) SetStored(stored int) {
	if m == nil {
		return
	}
	m.TradesStored.Set(float64(stored))
}

// RecordSnapshotWrite records a snapshot write of size bytes.
func (m *Metrics) RecordSnapshotWrite(bytes int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SnapshotWrites.WithLabelValues(ResultError).Inc()
		return
	}
	m.SnapshotWrites.WithLabelValues(ResultSuccess).Inc()
	m.SnapshotBytes.Set(float64(bytes))
}

// ObserveQuery records how long an operation took since start.
func (m *Metrics) ObserveQuery(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

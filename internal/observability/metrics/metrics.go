// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "caption_merge"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Fragment intake metrics
	FragmentsReceived prometheus.Counter
	FragmentsDropped  *prometheus.CounterVec

	// Merge engine metrics
	MergeBatchSize   prometheus.Histogram
	ThreadsOpened    prometheus.Counter
	ThreadsFinalized *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionsReaped   prometheus.Counter
	SessionsDegraded prometheus.Counter

	// Store metrics
	StoreOpErrors  *prometheus.CounterVec
	StoreOpLatency *prometheus.HistogramVec

	// Notification metrics
	ViewersConnected prometheus.Gauge
	LinesPushed      prometheus.Counter
	SendFailures     prometheus.Counter
	ClearsTotal      prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		FragmentsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_received_total",
			Help:      "Total number of fragments received from all sources",
		}),
		FragmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_dropped_total",
			Help:      "Total number of malformed fragments dropped",
		}, []string{"reason"}),

		MergeBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_batch_size",
			Help:      "Number of fragments drained per session per tick",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		ThreadsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_opened_total",
			Help:      "Total number of merge threads opened",
		}),
		ThreadsFinalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_finalized_total",
			Help:      "Total number of merge threads finalized",
		}, []string{"reason"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions with live merge state",
		}),
		SessionsReaped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total number of idle sessions reaped",
		}),
		SessionsDegraded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_degraded_total",
			Help:      "Total number of ticks a session was degraded by store failure",
		}),

		StoreOpErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_op_errors_total",
			Help:      "Total number of store operation errors after retry",
		}, []string{"op"}),
		StoreOpLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_op_latency_seconds",
			Help:      "Store operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),

		ViewersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_connected",
			Help:      "Number of currently connected websocket viewers",
		}),
		LinesPushed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_pushed_total",
			Help:      "Total number of changed lines pushed to viewers",
		}),
		SendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of websocket sends that failed and dropped a viewer",
		}),
		ClearsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clears_total",
			Help:      "Total number of administrative clear operations",
		}),
	}
}

// RecordFragmentReceived records a fragment arriving from a source.
func (m *Metrics) RecordFragmentReceived() {
	m.FragmentsReceived.Inc()
}

// RecordFragmentDropped records a malformed fragment being dropped.
func (m *Metrics) RecordFragmentDropped(reason string) {
	m.FragmentsDropped.WithLabelValues(reason).Inc()
}

// RecordMergeBatch records the size of one drained batch.
func (m *Metrics) RecordMergeBatch(size int) {
	m.MergeBatchSize.Observe(float64(size))
}

// RecordThreadOpened records a new merge thread opening.
func (m *Metrics) RecordThreadOpened() {
	m.ThreadsOpened.Inc()
}

// RecordThreadFinalized records a merge thread finalizing.
func (m *Metrics) RecordThreadFinalized(reason string) {
	m.ThreadsFinalized.WithLabelValues(reason).Inc()
}

// RecordSessionReaped records an idle session being reaped.
func (m *Metrics) RecordSessionReaped() {
	m.SessionsReaped.Inc()
}

// RecordSessionDegraded records a session tick degraded by store failure.
func (m *Metrics) RecordSessionDegraded() {
	m.SessionsDegraded.Inc()
}

// RecordStoreOp records a store operation attempt.
func (m *Metrics) RecordStoreOp(op string, err error, latencySeconds float64) {
	m.StoreOpLatency.WithLabelValues(op).Observe(latencySeconds)
	if err != nil {
		m.StoreOpErrors.WithLabelValues(op).Inc()
	}
}

// RecordViewerConnected records a viewer joining.
func (m *Metrics) RecordViewerConnected() {
	m.ViewersConnected.Inc()
}

// RecordViewerDisconnected records a viewer leaving.
func (m *Metrics) RecordViewerDisconnected() {
	m.ViewersConnected.Dec()
}

// RecordLinePushed records one changed line delivered to one viewer.
func (m *Metrics) RecordLinePushed() {
	m.LinesPushed.Inc()
}

// RecordSendFailure records a viewer dropped on send failure.
func (m *Metrics) RecordSendFailure() {
	m.SendFailures.Inc()
}

// RecordClear records an administrative clear.
func (m *Metrics) RecordClear() {
	m.ClearsTotal.Inc()
}

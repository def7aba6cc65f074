// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	WSReconnects         prometheus.Counter
	BookSnapshotsApplied prometheus.Counter
	BookDeltasApplied    prometheus.Counter
	BookSequenceGaps     prometheus.Counter
	BookResnapshots      prometheus.Counter
	TradesIngested       prometheus.Counter
	TradesRejected       *prometheus.CounterVec

	// Evaluation metrics
	TicksEvaluated      prometheus.Counter
	StaleEvaluations    prometheus.Counter
	SignalsEmitted      *prometheus.CounterVec
	TransitionsRecorded *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram

	// Replay metrics
	ReplayRangesCompleted prometheus.Counter
	ReplayRangesSkipped   prometheus.Counter
	ReplayTicksProcessed  prometheus.Counter

	// Book depth gauges
	BookBidVolume prometheus.Gauge
	BookAskVolume prometheus.Gauge
	SandboxEquity prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "orderflow_lab"
	}

	return &Metrics{
		// Stream metrics
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnections",
		}),
		BookSnapshotsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "book_snapshots_applied_total",
			Help:      "Total number of order book snapshots applied",
		}),
		BookDeltasApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "book_deltas_applied_total",
			Help:      "Total number of order book deltas applied",
		}),
		BookSequenceGaps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "book_sequence_gaps_total",
			Help:      "Total number of sequence gaps detected in the book feed",
		}),
		BookResnapshots: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "book_resnapshots_total",
			Help:      "Total number of forced book resnapshots after desync",
		}),
		TradesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_ingested_total",
			Help:      "Total number of trade prints ingested into the buffer",
		}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_rejected_total",
			Help:      "Total number of trade prints rejected by validation",
		}, []string{"reason"}),

		// Evaluation metrics
		TicksEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "ticks_evaluated_total",
			Help:      "Total number of evaluation ticks processed",
		}),
		StaleEvaluations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "stale_evaluations_total",
			Help:      "Total number of evaluations run on stale inputs",
		}),
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "signals_emitted_total",
			Help:      "Total number of signals emitted by direction",
		}, []string{"direction"}),
		TransitionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "transitions_recorded_total",
			Help:      "Total number of position transitions recorded by kind",
		}, []string{"kind"}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Evaluation tick duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Replay metrics
		ReplayRangesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "ranges_completed_total",
			Help:      "Total number of replay ranges completed",
		}),
		ReplayRangesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "ranges_skipped_total",
			Help:      "Total number of replay ranges skipped as already completed",
		}),
		ReplayTicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "ticks_processed_total",
			Help:      "Total number of synthetic replay ticks processed",
		}),

		// Book depth gauges
		BookBidVolume: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "bid_volume",
			Help:      "Resting bid volume over the analyzed top levels",
		}),
		BookAskVolume: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "book",
			Name:      "ask_volume",
			Help:      "Resting ask volume over the analyzed top levels",
		}),
		SandboxEquity: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sandbox",
			Name:      "equity",
			Help:      "Current sandbox equity (balance plus unrealized PnL)",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

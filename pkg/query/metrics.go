package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	pagesFetched    prometheus.Counter
	rowsFetched     prometheus.Counter
	cursorFailures  prometheus.Counter
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	inflight        prometheus.Gauge
}

// NewMetrics registers the orchestration metrics with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		pagesFetched: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "cursor_pages_fetched_total",
			Help:      "Total number of pages fetched by page cursors.",
		}),
		rowsFetched: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "cursor_rows_fetched_total",
			Help:      "Total number of rows fetched by page cursors.",
		}),
		cursorFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "cursor_failures_total",
			Help:      "Total number of page cursors that moved to the errored state.",
		}),
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "fanout_requests_total",
			Help:      "Total number of fan-out requests by terminal state.",
		}, []string{"state"}),
		requestDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: "cqlwalk",
			Name:      "fanout_request_duration_seconds",
			Help:      "Time from submission until a fan-out request reached a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		inflight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "cqlwalk",
			Name:      "fanout_requests_inflight",
			Help:      "Number of fan-out requests that are still pending.",
		}),
	}
}

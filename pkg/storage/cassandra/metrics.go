package cassandra

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of the Cassandra client.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	rowsWritten     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cqlwalk",
			Name:      "cassandra_request_duration_seconds",
			Help:      "Time spent doing Cassandra requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"operation", "status_code"}),
		retries: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "cassandra_retries_total",
			Help:      "Number of Cassandra requests retried after a transient failure.",
		}, []string{"operation"}),
		rowsWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "cqlwalk",
			Name:      "cassandra_rows_written_total",
			Help:      "Number of rows written, by load mode.",
		}, []string{"mode"}),
	}
}

func statusCode(err error) string {
	if err != nil {
		return "500"
	}
	return "200"
}

type observer struct {
	metrics *Metrics
}

func (o observer) ObserveQuery(_ context.Context, q gocql.ObservedQuery) {
	o.metrics.requestDuration.WithLabelValues("QUERY", statusCode(q.Err)).Observe(q.End.Sub(q.Start).Seconds())
}

func (o observer) ObserveBatch(_ context.Context, b gocql.ObservedBatch) {
	o.metrics.requestDuration.WithLabelValues("BATCH", statusCode(b.Err)).Observe(b.End.Sub(b.Start).Seconds())
}

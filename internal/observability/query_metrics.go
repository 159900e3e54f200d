package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightsflow_query_requests_total",
			Help: "Total number of read requests by table and outcome.",
		},
		[]string{"table", "outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightsflow_query_duration_seconds",
			Help:    "Warehouse query latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)
	queryRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insightsflow_query_rows",
			Help:    "Rows returned per successful query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	queryWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightsflow_query_warnings_total",
			Help: "Total number of warnings attached to compiled queries.",
		},
	)
	schemaCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightsflow_schema_cache_total",
			Help: "Schema cache lookups by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		queryRequestsTotal,
		queryDurationSeconds,
		queryRows,
		queryWarningsTotal,
		schemaCacheTotal,
	)
}

// ObserveQuery counts a finished read request. Latency and row counts are
// only recorded for requests that reached the warehouse.
func ObserveQuery(table, outcome string, elapsed time.Duration, rows int) {
	queryRequestsTotal.WithLabelValues(table, outcome).Inc()
	switch outcome {
	case "ok":
		queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
		queryRows.Observe(float64(rows))
	case "execution_failed":
		queryDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
	}
}

func ObserveQueryWarnings(n int) {
	if n > 0 {
		queryWarningsTotal.Add(float64(n))
	}
}

func ObserveSchemaCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	schemaCacheTotal.WithLabelValues(result).Inc()
}

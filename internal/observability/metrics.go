package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insightsflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insightsflow_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insightsflow_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, httpRateLimitedTotal)
}

func IncrementRateLimited() {
	httpRateLimitedTotal.Inc()
}

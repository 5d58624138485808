package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_query_outcomes_total",
			Help: "Query requests by final outcome (greeting, refusal, clarification, sql, or an error kind).",
		},
		[]string{"outcome"},
	)

	modelCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_model_call_duration_seconds",
			Help:    "Language model call latency by operation and result.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"operation", "result"},
	)

	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_sql_query_duration_seconds",
			Help:    "Generated SQL execution latency by result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		outcomesTotal,
		modelCallDurationSeconds,
		queryDurationSeconds,
	)
}

func ObserveOutcome(outcome string) {
	outcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveModelCall(operation string, elapsed time.Duration, err error) {
	modelCallDurationSeconds.WithLabelValues(operation, result(err)).Observe(elapsed.Seconds())
}

func ObserveQuery(elapsed time.Duration, err error) {
	queryDurationSeconds.WithLabelValues(result(err)).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

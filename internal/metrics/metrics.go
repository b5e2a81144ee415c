// Package metrics holds the Prometheus instruments for the SDK. Register
// must be called explicitly from main; the instruments work unregistered,
// so library users who do not care about metrics pay nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "requests_total",
			Help:      "Total number of engine requests",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "esdex",
			Name:      "request_duration_seconds",
			Help:      "Engine request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	SearchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "searches_total",
			Help:      "Total number of executed searches",
		},
	)

	ScrollBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "scroll_batches_total",
			Help:      "Total number of fetched scroll batches",
		},
	)

	BulkFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "bulk_flushes_total",
			Help:      "Total number of flushed bulk batches",
		},
	)

	BulkItemFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "bulk_item_failures_total",
			Help:      "Total number of failed bulk items",
		},
	)

	FailsafeAbsorbedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "esdex",
			Name:      "failsafe_absorbed_total",
			Help:      "Total number of execution errors absorbed by failsafe mode",
		},
	)
)

var registered bool

// Register registers all SDK metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(ScrollBatchesTotal)
	prometheus.MustRegister(BulkFlushesTotal)
	prometheus.MustRegister(BulkItemFailuresTotal)
	prometheus.MustRegister(FailsafeAbsorbedTotal)
	registered = true
}

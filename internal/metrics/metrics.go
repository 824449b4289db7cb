// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitbot_fetches_total",
			Help: "Total number of fetch attempts by outcome",
		},
		[]string{"course", "assignment", "outcome"},
	)

	SkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitbot_skipped_total",
			Help: "Enrollees excluded from fetching by reason",
		},
		[]string{"course", "assignment", "reason"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gitbot_fetch_duration_seconds",
			Help:    "Duration of individual fetch attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"course", "assignment"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gitbot_dispatch_duration_seconds",
			Help:    "Duration of full dispatch runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

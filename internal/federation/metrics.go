package federation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// providerFailures counts provider calls whose contribution was dropped.
	providerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcfed_provider_failures_total",
		Help: "Provider calls that failed and contributed no data, by provider and operation",
	}, []string{"provider", "operation"})

	// fanoutDuration tracks wall time of a full fan-out including the join.
	fanoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dcfed_fanout_duration_seconds",
		Help:    "Duration of provider fan-out per operation",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"operation"})
)

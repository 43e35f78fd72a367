package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nodeflow",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Time to read a snapshot and compute one analysis.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{"kind"})

	analysisDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodeflow",
		Subsystem: "analysis",
		Name:      "discarded_total",
		Help:      "Analysis results dropped because a mutation committed while they were computed.",
	}, []string{"kind"})
)

package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duesbook",
		Subsystem: "reconcile",
		Name:      "passes_total",
		Help:      "Member reconciliation passes by outcome.",
	}, []string{"outcome"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "duesbook",
		Subsystem: "reconcile",
		Name:      "retries_total",
		Help:      "Passes retried after losing the optimistic commit.",
	})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "duesbook",
		Subsystem: "reconcile",
		Name:      "pass_duration_seconds",
		Help:      "Duration of individual member passes.",
		Buckets:   prometheus.DefBuckets,
	})
)

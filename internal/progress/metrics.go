package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

const (
	editResultSent        = "sent"
	editResultNotModified = "not_modified"
	editResultRateLimited = "rate_limited"
	editResultError       = "error"
)

var (
	progressEditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "progress",
			Name:      "edits_total",
			Help:      "Total number of progress message edit attempts by result",
		},
		[]string{"kind", "result"},
	)

	progressDroppedSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "progress",
			Name:      "dropped_samples_total",
			Help:      "Total number of progress samples dropped because the queue was full",
		},
		[]string{"kind"},
	)
)

func recordEdit(kind, result string) {
	progressEditsTotal.WithLabelValues(kind, result).Inc()
}

func recordDroppedSample(kind string) {
	progressDroppedSamplesTotal.WithLabelValues(kind).Inc()
}

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

// Menu results besides failure kinds.
const (
	menuResultShown = "shown"
	menuResultError = "send_error"
)

// Job statuses.
const (
	jobStatusDelivered = "delivered"
	jobStatusFailed    = "failed"
	jobStatusRejected  = "rejected"
)

// Phases timed per job.
const (
	phaseMenu     = "menu"
	phaseDownload = "download"
	phaseUpload   = "upload"
)

var (
	menusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "menus_total",
			Help:      "Quality menu requests by result",
		},
		[]string{"result"},
	)

	hiddenOptionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "hidden_options_total",
			Help:      "Formats left out of menus because their token was too long",
		},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Finished jobs by status and failure kind",
		},
		[]string{"status", "kind"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently holding a download slot",
		},
	)

	phaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "phase_duration_seconds",
			Help:      "Duration of menu, download and upload phases",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"phase"},
	)

	invalidTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "pipeline",
			Name:      "invalid_transitions_total",
			Help:      "State machine violations",
		},
	)
)

func recordMenu(result string) {
	menusTotal.WithLabelValues(result).Inc()
}

func recordHiddenOptions(n int) {
	hiddenOptionsTotal.Add(float64(n))
}

func recordJob(status, kind string) {
	jobsTotal.WithLabelValues(status, kind).Inc()
}

func recordPhase(phase string, seconds float64) {
	phaseDuration.WithLabelValues(phase).Observe(seconds)
}

func recordInvalidTransition() {
	invalidTransitionsTotal.Inc()
}

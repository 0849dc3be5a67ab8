package extractor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

const (
	opList     = "list"
	opDownload = "download"

	statusSuccess = "success"
	statusError   = "error"
)

var extractorRunDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "extractor",
		Name:      "run_duration_seconds",
		Help:      "Duration of yt-dlp invocations in seconds",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600, 1800, 3600},
	},
	[]string{"op", "status"},
)

func recordRun(op, status string, seconds float64) {
	extractorRunDuration.WithLabelValues(op, status).Observe(seconds)
}

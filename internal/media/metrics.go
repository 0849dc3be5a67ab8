package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

const (
	probeStatusSuccess = "success"
	probeStatusError   = "error"

	thumbnailStatusSuccess = "success"
	thumbnailStatusError   = "error"
)

var (
	mediaProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "media",
			Name:      "probes_total",
			Help:      "Total number of metadata probes by status",
		},
		[]string{"status"},
	)

	mediaThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "media",
			Name:      "thumbnails_generated_total",
			Help:      "Total number of thumbnail generation attempts by status",
		},
		[]string{"status"},
	)
)

func recordProbe(status string) {
	mediaProbesTotal.WithLabelValues(status).Inc()
}

func recordThumbnail(status string) {
	mediaThumbnailsTotal.WithLabelValues(status).Inc()
}

package workspace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var workspaceCleanupErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "grabber",
		Subsystem: "workspace",
		Name:      "cleanup_errors_total",
		Help:      "Total number of transient files or directories that could not be removed",
	},
)

func recordCleanupError() {
	workspaceCleanupErrorsTotal.Inc()
}

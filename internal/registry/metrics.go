package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

const (
	evictReasonExpired  = "expired"
	evictReasonCapacity = "capacity"

	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupExpired = "expired"
)

var (
	registryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Number of pending selections held in memory",
		},
	)

	registryEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "evictions_total",
			Help:      "Total number of evicted pending selections",
		},
		[]string{"reason"},
	)

	registryLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Total number of pending selection lookups by result",
		},
		[]string{"result"},
	)
)

func setEntries(n int) {
	registryEntries.Set(float64(n))
}

func recordEviction(reason string) {
	registryEvictionsTotal.WithLabelValues(reason).Inc()
}

func recordLookup(result string) {
	registryLookupsTotal.WithLabelValues(result).Inc()
}

package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

// Метрики хранилища: размер базы и история доставок.
var (
	databaseBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "database_bytes",
			Help:      "Size of the SQLite database file in bytes",
		},
	)

	// tableBytes comes from the dbstat virtual table, so indexes show up
	// under their own names.
	tableBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "table_bytes",
			Help:      "Pages used by each table or index, in bytes",
		},
		[]string{"table"},
	)

	deliveriesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "deliveries_recorded_total",
			Help:      "Finished jobs written to the delivery history, by status",
		},
		[]string{"status"},
	)

	historyTrimmedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "history_trimmed_rows_total",
			Help:      "Delivery history rows removed by the per-user retention limit",
		},
	)

	historyTrimDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "storage",
			Name:      "history_trim_duration_seconds",
			Help:      "Duration of delivery history trimming",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// ReportSizes publishes the database file size and the per-table sizes.
// A negative dbBytes leaves the file gauge untouched.
func ReportSizes(dbBytes int64, tables []TableSize) {
	if dbBytes >= 0 {
		databaseBytes.Set(float64(dbBytes))
	}
	for _, t := range tables {
		tableBytes.WithLabelValues(t.Name).Set(float64(t.Bytes))
	}
}

func recordDelivery(status string) {
	deliveriesRecordedTotal.WithLabelValues(status).Inc()
}

func recordTrim(deleted int64, elapsed time.Duration) {
	historyTrimDuration.Observe(elapsed.Seconds())
	historyTrimmedRowsTotal.Add(float64(deleted))
}

package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики для Bot
//
// Метрики позволяют отслеживать:
// - Время обработки апдейтов по типу
// - Использование команд
// - Попытки доступа вне allow-list

const metricsNamespace = "grabber"

// Update types
const (
	updateTypeMessage  = "message"
	updateTypeCallback = "callback_query"
	updateTypeOther    = "other"
)

var (
	// updateProcessingDuration измеряет время обработки апдейта.
	// Для callback_query включает всю загрузку и отправку файла.
	// Labels:
	//   - type: message, callback_query, other
	updateProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "update_processing_duration_seconds",
			Help:      "Duration of update processing in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	// updatesProcessedTotal считает обработанные апдейты.
	updatesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "updates_processed_total",
			Help:      "Total number of processed updates",
		},
		[]string{"type"},
	)

	// commandsTotal считает вызовы команд.
	// Labels:
	//   - command: имя команды без слеша
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "commands_total",
			Help:      "Total number of handled commands",
		},
		[]string{"command"},
	)

	unauthorizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bot",
			Name:      "unauthorized_total",
			Help:      "Updates rejected by the allow-list",
		},
	)
)

func recordUpdate(updateType string, durationSeconds float64) {
	updateProcessingDuration.WithLabelValues(updateType).Observe(durationSeconds)
	updatesProcessedTotal.WithLabelValues(updateType).Inc()
}

// recordCommand keeps the label set bounded: unknown commands share one label.
func recordCommand(cmd string) {
	for _, known := range menuCommands {
		if cmd == known {
			commandsTotal.WithLabelValues(cmd).Inc()
			return
		}
	}
	commandsTotal.WithLabelValues("unknown").Inc()
}

func recordUnauthorized() {
	unauthorizedTotal.Inc()
}

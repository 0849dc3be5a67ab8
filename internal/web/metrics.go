package web

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Причины отказа webhook-запроса.
const (
	rejectMethod   = "method"
	rejectSecret   = "secret"
	rejectTooLarge = "too_large"
	rejectRead     = "read_error"
)

var (
	// Labels: handler (healthz, webhook), code, method.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"handler", "code", "method"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"handler", "code", "method"},
	)

	webhookRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "webhook",
			Name:      "rejected_total",
			Help:      "Webhook requests refused before reaching the bot, by reason",
		},
		[]string{"reason"},
	)

	webhookUpdateBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "webhook",
			Name:      "update_bytes",
			Help:      "Size of accepted webhook update bodies",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	usersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "users_total",
			Help:      "Number of users who have talked to the bot",
		},
	)
)

// instrument wraps a route with promhttp's duration and counter
// middleware, curried with the route name.
func instrument(route string, h http.HandlerFunc) http.Handler {
	labels := prometheus.Labels{"handler": route}
	return promhttp.InstrumentHandlerDuration(
		httpRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(httpRequestsTotal.MustCurryWith(labels), h),
	)
}

func recordWebhookRejected(reason string) {
	webhookRejectedTotal.WithLabelValues(reason).Inc()
}

func recordWebhookUpdate(size int) {
	webhookUpdateBytes.Observe(float64(size))
}

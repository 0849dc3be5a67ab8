package files

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grabber"

var (
	// fileDownloadDuration measures time spent downloading user images from Telegram.
	// Labels:
	//   - file_type: photo or image
	fileDownloadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "file",
			Name:      "download_duration_seconds",
			Help:      "Duration of Telegram file downloads in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 20, 30},
		},
		[]string{"file_type"},
	)

	// fileDownloadsTotal counts file download attempts.
	// Labels:
	//   - file_type: type of file
	//   - status: success or error
	fileDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "file",
			Name:      "downloads_total",
			Help:      "Total number of file download attempts",
		},
		[]string{"file_type", "status"},
	)

	// fileSizeBytes measures saved image sizes.
	fileSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "file",
			Name:      "size_bytes",
			Help:      "Size of downloaded files in bytes",
			// 10KB, 50KB, 100KB, 200KB (thumbnail limit), 500KB, 1MB, 5MB
			Buckets: []float64{10240, 51200, 102400, 204800, 512000, 1048576, 5242880},
		},
		[]string{"file_type"},
	)
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// RecordFileDownload records metrics for a file download operation.
func RecordFileDownload(fileType FileType, durationSeconds float64, sizeBytes int64, success bool) {
	fileTypeStr := string(fileType)

	fileDownloadDuration.WithLabelValues(fileTypeStr).Observe(durationSeconds)

	status := statusSuccess
	if !success {
		status = statusError
	}
	fileDownloadsTotal.WithLabelValues(fileTypeStr, status).Inc()

	if success && sizeBytes > 0 {
		fileSizeBytes.WithLabelValues(fileTypeStr).Observe(float64(sizeBytes))
	}
}

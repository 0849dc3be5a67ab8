package files

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/runixer/grabber/internal/telegram"
)

// Processor downloads attachments from Telegram messages.
type Processor struct {
	downloader telegram.FileDownloader
	logger     *slog.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewProcessor creates a new file processor.
func NewProcessor(downloader telegram.FileDownloader, logger *slog.Logger) *Processor {
	return &Processor{
		downloader: downloader,
		logger:     logger.With("component", "file_processor"),
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
}

// SaveImage writes the image carried by msg to dest, replacing any previous
// file. Photos use the largest size; documents must be image/jpeg.
func (p *Processor) SaveImage(ctx context.Context, msg *telegram.Message, dest string) (*SavedFile, error) {
	fileID, fileType, ok := imageOf(msg)
	if !ok {
		return nil, ErrNoImage
	}

	size, duration, err := p.downloadWithRetry(ctx, fileID, dest, fileType)
	if err != nil {
		return nil, err
	}

	return &SavedFile{
		FileType: fileType,
		FileID:   fileID,
		Path:     dest,
		Size:     size,
		Duration: duration,
	}, nil
}

// HasImage reports whether SaveImage can take an image from msg.
func HasImage(msg *telegram.Message) bool {
	_, _, ok := imageOf(msg)
	return ok
}

func imageOf(msg *telegram.Message) (string, FileType, bool) {
	if best := msg.BestPhoto(); best != nil {
		return best.FileID, FileTypePhoto, true
	}
	if msg.Document != nil && msg.Document.MimeType == "image/jpeg" {
		return msg.Document.FileID, FileTypeImage, true
	}
	return "", "", false
}

// downloadWithRetry attempts to download a file with retries and exponential backoff.
func (p *Processor) downloadWithRetry(ctx context.Context, fileID, dest string, fileType FileType) (int64, time.Duration, error) {
	var lastErr error
	totalDuration := time.Duration(0)

	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		start := time.Now()
		n, err := p.downloader.DownloadToFile(ctx, fileID, dest)
		duration := time.Since(start)
		totalDuration += duration

		if err == nil {
			RecordFileDownload(fileType, duration.Seconds(), n, true)
			return n, totalDuration, nil
		}

		lastErr = err
		p.logger.Warn("download attempt failed",
			"attempt", attempt,
			"max_retries", p.maxRetries,
			"file_id", fileID,
			"error", err,
		)

		if attempt < p.maxRetries {
			// Exponential backoff: 500ms, 1000ms, 2000ms, ...
			backoff := p.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return 0, totalDuration, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	RecordFileDownload(fileType, totalDuration.Seconds(), 0, false)
	return 0, totalDuration, fmt.Errorf("download failed after %d retries: %w", p.maxRetries, lastErr)
}

// Package extractor resolves media URLs to downloadable formats and fetches
// the chosen one through yt-dlp.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/runixer/grabber/internal/progress"
)

var (
	// ErrExtractionFailed means the format list could not be produced.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrDownloadFailed means the engine failed while fetching the media.
	ErrDownloadFailed = errors.New("download failed")
)

// Info is the subset of the engine's metadata used by the bot.
type Info struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Formats []Format `json:"formats"`
	Entries []Info   `json:"entries"`
}

// DownloadRequest selects one format of a URL.
type DownloadRequest struct {
	URL       string
	FormatID  string
	Container string // target container for the video convertor
	Dir       string // output directory, must exist
}

// Engine lists and downloads media.
type Engine interface {
	ListFormats(ctx context.Context, url string) (*Info, error)
	// Download blocks until the file is written and returns its path.
	// onProgress may be called from another goroutine.
	Download(ctx context.Context, req DownloadRequest, onProgress func(progress.Sample)) (string, error)
}

// parseInfo decodes single-JSON output. A playlist resolves to its first entry.
func parseInfo(data []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: invalid engine output: %v", ErrExtractionFailed, err)
	}
	if len(info.Entries) > 0 {
		first := info.Entries[0]
		first.Entries = nil
		return &first, nil
	}
	return &info, nil
}

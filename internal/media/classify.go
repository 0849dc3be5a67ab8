// Package media decides how a finished download is delivered and prepares
// its upload metadata.
package media

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Shape is the Telegram upload method chosen for a file.
type Shape int

const (
	Document Shape = iota
	Audio
	Video
	VideoNote
)

func (s Shape) String() string {
	switch s {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case VideoNote:
		return "video_note"
	default:
		return "document"
	}
}

// VideoNoteMaxDuration is the longest clip still sent as a round video.
const VideoNoteMaxDuration = 60 * time.Second

var (
	audioExts = map[string]bool{"mp3": true, "ogg": true, "wav": true, "m4a": true}
	videoExts = map[string]bool{"mp4": true, "mkv": true, "webm": true, "avi": true, "mov": true}
)

// Metadata is what the prober could read. Zero values mean unknown.
type Metadata struct {
	Width    int
	Height   int
	Duration time.Duration
}

// DurationSeconds is the duration truncated to whole seconds.
func (m Metadata) DurationSeconds() int {
	return int(m.Duration / time.Second)
}

// Delivery is the classification result.
type Delivery struct {
	Shape Shape
	Metadata
}

// Prober reads container metadata of a local file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// Classifier picks the delivery shape of completed downloads.
type Classifier struct {
	prober Prober
	logger *slog.Logger
}

func NewClassifier(prober Prober, logger *slog.Logger) *Classifier {
	return &Classifier{prober: prober, logger: logger.With("component", "media")}
}

// Classify inspects path once. Probe failures leave metadata at zero and
// never prevent delivery.
func (c *Classifier) Classify(ctx context.Context, path string) Delivery {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	switch {
	case audioExts[ext]:
		md := c.probe(ctx, path)
		return Delivery{Shape: Audio, Metadata: Metadata{Duration: md.Duration}}

	case videoExts[ext]:
		md := c.probe(ctx, path)
		shape := Video
		if md.Width == md.Height && md.Width > 0 && md.Duration <= VideoNoteMaxDuration {
			shape = VideoNote
		}
		return Delivery{Shape: shape, Metadata: md}

	default:
		return Delivery{Shape: Document}
	}
}

func (c *Classifier) probe(ctx context.Context, path string) Metadata {
	md, err := c.prober.Probe(ctx, path)
	if err != nil {
		recordProbe(probeStatusError)
		c.logger.Warn("failed to read media metadata", "path", path, "error", err)
		return Metadata{}
	}
	recordProbe(probeStatusSuccess)
	return md
}

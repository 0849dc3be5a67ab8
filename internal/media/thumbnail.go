package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Generated frames are downscaled to this size.
const thumbnailSize = "320x180"

// CommandRunner executes an external program and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Thumbnailer picks or generates the preview image attached to an upload.
type Thumbnailer struct {
	ffmpeg string
	run    CommandRunner
	logger *slog.Logger
}

// NewThumbnailer creates a thumbnailer. An empty ffmpeg path means "ffmpeg".
func NewThumbnailer(ffmpeg string, logger *slog.Logger) *Thumbnailer {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Thumbnailer{
		ffmpeg: ffmpeg,
		run:    execRunner,
		logger: logger.With("component", "thumbnailer"),
	}
}

// WithRunner replaces the subprocess runner.
func (t *Thumbnailer) WithRunner(run CommandRunner) *Thumbnailer {
	t.run = run
	return t
}

// GeneratedPath is where a frame for mediaPath is written.
func GeneratedPath(mediaPath string) string {
	return filepath.Join(filepath.Dir(mediaPath), "video_thumb_"+filepath.Base(mediaPath)+".jpg")
}

// Resolve returns the thumbnail for an upload. The user's own image at
// custom wins when it exists. Otherwise videos get a frame from their
// midpoint; generated reports that the caller owns the file. Any failure
// yields an empty path.
func (t *Thumbnailer) Resolve(ctx context.Context, custom, mediaPath string, d Delivery) (path string, generated bool) {
	if custom != "" {
		if info, err := os.Stat(custom); err == nil && info.Mode().IsRegular() {
			return custom, false
		}
	}

	if d.Shape != Video && d.Shape != VideoNote {
		return "", false
	}

	out := GeneratedPath(mediaPath)
	args := []string{
		"-i", mediaPath,
		"-ss", strconv.Itoa(d.DurationSeconds() / 2),
		"-vframes", "1",
		"-s", thumbnailSize,
		"-y", out,
	}
	if output, err := t.run(ctx, t.ffmpeg, args...); err != nil {
		_ = os.Remove(out)
		recordThumbnail(thumbnailStatusError)
		t.logger.Warn("thumbnail generation failed",
			"path", mediaPath,
			"error", fmt.Errorf("%w: %s", err, lastLine(output)),
		)
		return "", false
	}

	if _, err := os.Stat(out); err != nil {
		recordThumbnail(thumbnailStatusError)
		t.logger.Warn("thumbnail not produced", "path", mediaPath)
		return "", false
	}

	recordThumbnail(thumbnailStatusSuccess)
	return out, true
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return lines[len(lines)-1]
}

package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/runixer/grabber/internal/progress"
)

const progressPollInterval = 500 * time.Millisecond

// YTDLP runs the yt-dlp binary through go-ytdlp.
type YTDLP struct {
	executable string
	ffmpeg     string
	logger     *slog.Logger
}

// NewYTDLP creates an engine. Empty paths fall back to $PATH lookup.
func NewYTDLP(executable, ffmpeg string, logger *slog.Logger) *YTDLP {
	return &YTDLP{
		executable: executable,
		ffmpeg:     ffmpeg,
		logger:     logger.With("component", "extractor"),
	}
}

var _ Engine = (*YTDLP)(nil)

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().NoWarnings()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	if y.ffmpeg != "" {
		cmd.FFmpegLocation(y.ffmpeg)
	}
	return cmd
}

// ListFormats fetches the metadata of url without downloading.
func (y *YTDLP) ListFormats(ctx context.Context, url string) (*Info, error) {
	start := time.Now()

	res, err := y.command().
		DumpSingleJSON().
		NoPlaylist().
		Run(ctx, url)
	if err != nil {
		recordRun(opList, statusError, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, engineMessage(res, err))
	}

	info, err := parseInfo([]byte(res.Stdout))
	if err != nil {
		recordRun(opList, statusError, time.Since(start).Seconds())
		return nil, err
	}

	recordRun(opList, statusSuccess, time.Since(start).Seconds())
	y.logger.Debug("formats listed", "url", url, "title", info.Title, "formats", len(info.Formats))
	return info, nil
}

// Download fetches one format into req.Dir, converting to req.Container.
func (y *YTDLP) Download(ctx context.Context, req DownloadRequest, onProgress func(progress.Sample)) (string, error) {
	start := time.Now()

	var (
		mu       sync.Mutex
		lastFile string
	)

	cmd := y.command().
		Format(req.FormatID).
		Output(filepath.Join(req.Dir, "%(title)s.%(ext)s")).
		NoPlaylist().
		ProgressFunc(progressPollInterval, func(u ytdlp.ProgressUpdate) {
			if u.Filename != "" {
				mu.Lock()
				lastFile = u.Filename
				mu.Unlock()
			}
			if onProgress != nil {
				onProgress(sampleFromUpdate(u))
			}
		})
	if req.Container != "" {
		cmd.RecodeVideo(req.Container)
	}

	res, err := cmd.Run(ctx, req.URL)
	if err != nil {
		recordRun(opDownload, statusError, time.Since(start).Seconds())
		return "", fmt.Errorf("%w: %s", ErrDownloadFailed, engineMessage(res, err))
	}

	mu.Lock()
	hinted := lastFile
	mu.Unlock()

	path, err := locateOutput(req.Dir, hinted, req.Container, start)
	if err != nil {
		recordRun(opDownload, statusError, time.Since(start).Seconds())
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	recordRun(opDownload, statusSuccess, time.Since(start).Seconds())
	y.logger.Debug("download finished", "format", req.FormatID, "path", path, "duration", time.Since(start))
	return path, nil
}

func sampleFromUpdate(u ytdlp.ProgressUpdate) progress.Sample {
	s := progress.Sample{
		Transferred: int64(u.DownloadedBytes),
		Total:       int64(u.TotalBytes),
		ETA:         u.ETA(),
	}
	if u.Status == ytdlp.ProgressStatusFinished {
		s.Phase = progress.Finished
	}
	return s
}

// engineMessage extracts the engine's own error line when available.
func engineMessage(res *ytdlp.Result, err error) string {
	if res != nil {
		lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if strings.HasPrefix(line, "ERROR:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
			}
		}
	}
	return err.Error()
}

var thumbnailExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// locateOutput finds the produced file. The hinted name from progress
// updates is checked first, with the target container's extension, since
// conversion replaces the downloaded file. Otherwise the newest regular
// file written since start is used, ignoring images and partial files.
func locateOutput(dir, hinted, container string, since time.Time) (string, error) {
	if hinted != "" {
		candidates := []string{hinted}
		if container != "" {
			candidates = append([]string{strings.TrimSuffix(hinted, filepath.Ext(hinted)) + "." + container}, candidates...)
		}
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
				return c, nil
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to scan output directory: %w", err)
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if thumbnailExts[ext] || ext == ".part" || ext == ".ytdl" || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(since.Add(-time.Second)) {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = filepath.Join(dir, name)
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no output file in %s", dir)
	}
	return best, nil
}

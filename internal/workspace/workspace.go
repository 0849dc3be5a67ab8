// Package workspace manages per-user download directories.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ThumbnailName is the user's own upload thumbnail inside their directory.
const ThumbnailName = "thumbnail.jpg"

// ErrCleanupFailed wraps removal errors. It is only ever logged.
var ErrCleanupFailed = errors.New("cleanup failed")

// Workspace lays out <Root>/<userID>/ directories. Each job works in its
// own <Root>/<userID>/<jobID>/ so that partial files of one job never mix
// with another's.
type Workspace struct {
	Root   string
	logger *slog.Logger
}

func New(root string, logger *slog.Logger) *Workspace {
	return &Workspace{Root: root, logger: logger.With("component", "workspace")}
}

// UserDir returns the working directory of a user.
func (w *Workspace) UserDir(userID int64) string {
	return filepath.Join(w.Root, strconv.FormatInt(userID, 10))
}

// Ensure creates the user directory if needed and returns it.
func (w *Workspace) Ensure(userID int64) (string, error) {
	dir := w.UserDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}
	return dir, nil
}

// JobDir returns the scratch directory of one job.
func (w *Workspace) JobDir(userID int64, jobID string) string {
	return filepath.Join(w.UserDir(userID), jobID)
}

// EnsureJob creates the scratch directory of a job and returns it.
func (w *Workspace) EnsureJob(userID int64, jobID string) (string, error) {
	dir := w.JobDir(userID, jobID)
	var err error
	// A finishing sibling job may remove the empty user directory between
	// the two mkdirs; one retry recreates it.
	for attempt := 0; attempt < 2; attempt++ {
		if err = os.MkdirAll(dir, 0o755); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("failed to create job directory: %w", err)
}

// ThumbnailPath is where the user's custom thumbnail lives.
func (w *Workspace) ThumbnailPath(userID int64) string {
	return filepath.Join(w.UserDir(userID), ThumbnailName)
}

// HasThumbnail reports whether the user has set a custom thumbnail.
func (w *Workspace) HasThumbnail(userID int64) bool {
	info, err := os.Stat(w.ThumbnailPath(userID))
	return err == nil && info.Mode().IsRegular()
}

// DeleteThumbnail removes the custom thumbnail. It reports false when none
// was set.
func (w *Workspace) DeleteThumbnail(userID int64) (bool, error) {
	err := os.Remove(w.ThumbnailPath(userID))
	switch {
	case err == nil:
		w.removeIfEmpty(w.UserDir(userID))
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to delete thumbnail: %w", err)
	}
}

// Purge removes the whole user directory including the custom thumbnail.
func (w *Workspace) Purge(userID int64) error {
	if err := os.RemoveAll(w.UserDir(userID)); err != nil {
		return fmt.Errorf("failed to purge user directory: %w", err)
	}
	return nil
}

// Cleanup removes the given transient files, then jobDir with whatever the
// engine left in it (partial downloads, fragments), and finally the user
// directory if it ended up empty. Empty paths and missing files are
// skipped. Failures are logged and never returned.
//
// Without a jobDir the directory of the first path is the one checked for
// emptiness. The custom thumbnail must not be passed here.
func (w *Workspace) Cleanup(jobDir string, paths ...string) {
	var dir string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if dir == "" {
			dir = filepath.Dir(p)
		}
		if filepath.Base(p) == ThumbnailName {
			w.logger.Warn("refusing to remove custom thumbnail", "path", p)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			recordCleanupError()
			w.logger.Warn("transient file not removed", "path", p, "error", fmt.Errorf("%w: %v", ErrCleanupFailed, err))
			continue
		}
		w.logger.Debug("transient file removed", "path", p)
	}

	if jobDir != "" {
		dir = ""
		if w.removeJobDir(jobDir) {
			dir = filepath.Dir(filepath.Clean(jobDir))
		}
	}
	if dir != "" {
		w.removeIfEmpty(dir)
	}
}

// removeJobDir deletes a job directory with its contents. Anything that is
// not exactly two levels below Root is left alone, since user directories
// hold the custom thumbnail. It reports whether jobDir was in the layout.
func (w *Workspace) removeJobDir(jobDir string) bool {
	rel, err := filepath.Rel(filepath.Clean(w.Root), filepath.Clean(jobDir))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") ||
		strings.Count(rel, string(filepath.Separator)) != 1 {
		w.logger.Warn("refusing to remove directory outside the job layout", "dir", jobDir)
		return false
	}

	entries, err := os.ReadDir(jobDir)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	if len(entries) > 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		w.logger.Info("removing leftovers", "dir", jobDir, "files", names)
	}

	if err := os.RemoveAll(jobDir); err != nil {
		recordCleanupError()
		w.logger.Warn("job directory not removed", "dir", jobDir, "error", fmt.Errorf("%w: %v", ErrCleanupFailed, err))
		return true
	}
	w.logger.Debug("job directory removed", "dir", jobDir)
	return true
}

// removeIfEmpty deletes dir only when it has no entries left.
func (w *Workspace) removeIfEmpty(dir string) {
	if filepath.Clean(dir) == filepath.Clean(w.Root) {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			recordCleanupError()
			w.logger.Warn("user directory not inspected", "dir", dir, "error", fmt.Errorf("%w: %v", ErrCleanupFailed, err))
		}
		return
	}
	if len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		recordCleanupError()
		w.logger.Warn("user directory not removed", "dir", dir, "error", fmt.Errorf("%w: %v", ErrCleanupFailed, err))
	}
}

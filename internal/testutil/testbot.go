package testutil

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/runixer/grabber/internal/storage"
	"github.com/stretchr/testify/require"
)

// TestBot bundles the on-disk state a bot needs in integration tests:
// a migrated SQLite store, a download root and optionally captured logs.
type TestBot struct {
	t          *testing.T
	logger     *slog.Logger
	logCapture *LogCapture
	store      *storage.SQLiteStore
	tempDir    string
}

// TestBotOptions configures TestBot creation.
type TestBotOptions struct {
	Logger      *slog.Logger
	CaptureLogs bool
	TempDir     string
}

// NewTestBot creates the test environment. Resources are released with t.Cleanup.
func NewTestBot(t *testing.T, opts *TestBotOptions) *TestBot {
	t.Helper()

	if opts == nil {
		opts = &TestBotOptions{}
	}

	tb := &TestBot{t: t}

	if opts.TempDir != "" {
		tb.tempDir = opts.TempDir
	} else {
		tb.tempDir = t.TempDir()
	}

	switch {
	case opts.Logger != nil:
		tb.logger = opts.Logger
	case opts.CaptureLogs:
		tb.logCapture = NewLogCapture()
		tb.logger = tb.logCapture.Logger()
	default:
		tb.logger = TestLogger()
	}

	var err error
	tb.store, err = storage.NewSQLiteStore(tb.logger, filepath.Join(tb.tempDir, "test.db"))
	require.NoError(t, err, "failed to create store")
	require.NoError(t, tb.store.Init(), "failed to init store")

	t.Cleanup(func() { tb.store.Close() })
	return tb
}

// Store returns the storage store.
func (tb *TestBot) Store() *storage.SQLiteStore {
	return tb.store
}

// Logger returns the logger.
func (tb *TestBot) Logger() *slog.Logger {
	return tb.logger
}

// DownloadDir returns a download root inside the temp directory.
func (tb *TestBot) DownloadDir() string {
	return filepath.Join(tb.tempDir, "downloads")
}

// LogEntries returns captured log entries.
func (tb *TestBot) LogEntries() []LogEntry {
	if tb.logCapture == nil {
		tb.t.Fatal("log capture not enabled - use TestBotOptions{CaptureLogs: true}")
	}
	return tb.logCapture.Entries()
}

package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	LastSeen     time.Time
}

// Delivery statuses.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Delivery is one finished download job, successful or not.
type Delivery struct {
	ID              int64
	JobID           string
	UserID          int64
	ChatID          int64
	URL             string
	Title           string
	FormatID        string
	Container       string
	Shape           string // empty when the job failed before classification
	Status          string
	FailureKind     string // error kind for failed jobs
	SizeBytes       int64
	DownloadSeconds int
	UploadSeconds   int
	CreatedAt       time.Time
}

// UserStats aggregates a user's delivery history.
type UserStats struct {
	Delivered  int
	Failed     int
	TotalBytes int64
	LastAt     time.Time
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	// Save original path for file operations (before adding query params)
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	// Note: modernc.org/sqlite doesn't support _journal_mode query param,
	// so we set it via PRAGMA after opening the connection
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Одно соединение: modernc.org/sqlite плохо переносит конкурентные записи
	// даже в WAL, а нагрузка бота на БД минимальна.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger, dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		language_code TEXT,
		last_seen DATETIME
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		chat_id INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		format_id TEXT,
		container TEXT,
		shape TEXT,
		status TEXT NOT NULL,
		failure_kind TEXT,
		size_bytes INTEGER DEFAULT 0,
		download_seconds INTEGER DEFAULT 0,
		upload_seconds INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_user_id ON deliveries(user_id);
	CREATE INDEX IF NOT EXISTS idx_deliveries_created_at ON deliveries(created_at DESC);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Checkpoint() error {
	var busy, log, checkpointed int
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Info("WAL checkpoint result",
		"busy", busy,
		"log_frames", log,
		"checkpointed_frames", checkpointed,
	)

	if busy != 0 {
		return fmt.Errorf("checkpoint blocked by reader (busy=%d)", busy)
	}
	if log > 0 && checkpointed < log {
		return fmt.Errorf("incomplete checkpoint: %d/%d frames", checkpointed, log)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	// Checkpoint WAL to ensure all writes are flushed to main database
	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}

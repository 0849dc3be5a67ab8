package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func (s *SQLiteStore) RecordDelivery(d Delivery) error {
	query := `
		INSERT INTO deliveries (
			job_id, user_id, chat_id, url, title, format_id, container, shape,
			status, failure_kind, size_bytes, download_seconds, upload_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(query,
		d.JobID, d.UserID, d.ChatID, d.URL, d.Title, d.FormatID, d.Container, d.Shape,
		d.Status, d.FailureKind, d.SizeBytes, d.DownloadSeconds, d.UploadSeconds, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	recordDelivery(d.Status)
	return nil
}

func (s *SQLiteStore) GetUserStats(userID int64) (UserStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN size_bytes ELSE 0 END), 0)
		FROM deliveries
		WHERE user_id = ?
	`
	var stats UserStats
	err := s.db.QueryRow(query, DeliveryDelivered, DeliveryFailed, DeliveryDelivered, userID).
		Scan(&stats.Delivered, &stats.Failed, &stats.TotalBytes)
	if err != nil {
		return UserStats{}, fmt.Errorf("failed to load user stats: %w", err)
	}

	var lastAt sql.NullTime
	err = s.db.QueryRow("SELECT created_at FROM deliveries WHERE user_id = ? ORDER BY id DESC LIMIT 1", userID).Scan(&lastAt)
	if err != nil && err != sql.ErrNoRows {
		return UserStats{}, fmt.Errorf("failed to load last delivery: %w", err)
	}
	if lastAt.Valid {
		stats.LastAt = lastAt.Time
	}
	return stats, nil
}

// GetRecentDeliveries returns the newest deliveries first.
func (s *SQLiteStore) GetRecentDeliveries(userID int64, limit int) ([]Delivery, error) {
	query := `
		SELECT id, job_id, user_id, chat_id, url, title, format_id, container, shape,
			status, failure_kind, size_bytes, download_seconds, upload_seconds, created_at
		FROM deliveries
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Delivery
	for rows.Next() {
		var (
			d                                               Delivery
			title, formatID, container, shape, failureKind sql.NullString
		)
		if err := rows.Scan(
			&d.ID, &d.JobID, &d.UserID, &d.ChatID, &d.URL, &title, &formatID, &container, &shape,
			&d.Status, &failureKind, &d.SizeBytes, &d.DownloadSeconds, &d.UploadSeconds, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		d.Title, d.FormatID, d.Container, d.Shape, d.FailureKind =
			title.String, formatID.String, container.String, shape.String, failureKind.String
		result = append(result, d)
	}
	return result, rows.Err()
}

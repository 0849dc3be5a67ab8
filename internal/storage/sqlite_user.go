package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *SQLiteStore) UpsertUser(user User) error {
	query := `
		INSERT INTO users (id, username, first_name, last_name, language_code, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			language_code = excluded.language_code,
			last_seen = excluded.last_seen
	`
	if user.LastSeen.IsZero() {
		user.LastSeen = time.Now()
	}
	_, err := s.db.Exec(query, user.ID, user.Username, user.FirstName, user.LastName, user.LanguageCode, user.LastSeen)
	return err
}

// GetUser returns nil without error when the user is unknown.
func (s *SQLiteStore) GetUser(userID int64) (*User, error) {
	var (
		u        User
		username sql.NullString
		first    sql.NullString
		last     sql.NullString
		lang     sql.NullString
		lastSeen sql.NullTime
	)
	err := s.db.QueryRow(
		"SELECT id, username, first_name, last_name, language_code, last_seen FROM users WHERE id = ?",
		userID,
	).Scan(&u.ID, &username, &first, &last, &lang, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Username, u.FirstName, u.LastName, u.LanguageCode = username.String, first.String, last.String, lang.String
	if lastSeen.Valid {
		u.LastSeen = lastSeen.Time
	}
	return &u, nil
}

func (s *SQLiteStore) GetAllUsers() ([]User, error) {
	query := "SELECT id, username, first_name, last_name, language_code, last_seen FROM users ORDER BY last_seen DESC"
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u        User
			username sql.NullString
			first    sql.NullString
			last     sql.NullString
			lang     sql.NullString
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&u.ID, &username, &first, &last, &lang, &lastSeen); err != nil {
			return nil, err
		}
		u.Username, u.FirstName, u.LastName, u.LanguageCode = username.String, first.String, last.String, lang.String
		if lastSeen.Valid {
			u.LastSeen = lastSeen.Time
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// PurgeUser deletes the user and their whole delivery history.
func (s *SQLiteStore) PurgeUser(userID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	s.logger.Info("Purging user data", "user_id", userID)

	if _, err := tx.Exec("DELETE FROM deliveries WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("delete deliveries: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM users WHERE id = ?", userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return tx.Commit()
}

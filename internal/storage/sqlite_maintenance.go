package storage

import (
	"os"
	"time"
)

// TableSize represents the size of a database table.
type TableSize struct {
	Name  string
	Bytes int64
}

func (s *SQLiteStore) GetDBSize() (int64, error) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *SQLiteStore) GetTableSizes() ([]TableSize, error) {
	query := `
		SELECT name, SUM(pgsize) as size_bytes
		FROM dbstat
		WHERE name NOT LIKE 'sqlite_%'
		GROUP BY name
		ORDER BY size_bytes DESC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sizes []TableSize
	for rows.Next() {
		var ts TableSize
		if err := rows.Scan(&ts.Name, &ts.Bytes); err != nil {
			return nil, err
		}
		sizes = append(sizes, ts)
	}
	return sizes, rows.Err()
}

// CleanupDeliveries keeps only the newest keepPerUser deliveries of each user.
// Aggregated /stats figures shrink accordingly.
func (s *SQLiteStore) CleanupDeliveries(keepPerUser int) (int64, error) {
	query := `
		DELETE FROM deliveries
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY id DESC) as rn
				FROM deliveries
			) WHERE rn <= ?
		)
	`
	start := time.Now()
	result, err := s.db.Exec(query, keepPerUser)
	if err != nil {
		return 0, err
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	recordTrim(deleted, time.Since(start))
	return deleted, nil
}

package database

import (
	"database/sql"
	"time"
)

// GetRecentDeletions returns the N most recent events
func (d *HistoryDB) GetRecentDeletions(limit int) ([]Record, error) {
	query := `
	SELECT id, timestamp, action, rel_path, target_path, reference_path,
	       digest, size, error_message
	FROM deletions
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return d.queryRecords(query, limit)
}

// GetDeletionsByAction returns events filtered by action type
func (d *HistoryDB) GetDeletionsByAction(action string) ([]Record, error) {
	query := `
	SELECT id, timestamp, action, rel_path, target_path, reference_path,
	       digest, size, error_message
	FROM deletions
	WHERE action = ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryRecords(query, action)
}

// GetDeletionsByPath returns events whose relative path matches a LIKE
// pattern
func (d *HistoryDB) GetDeletionsByPath(pathPattern string) ([]Record, error) {
	query := `
	SELECT id, timestamp, action, rel_path, target_path, reference_path,
	       digest, size, error_message
	FROM deletions
	WHERE rel_path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`

	return d.queryRecords(query, pathPattern)
}

// GetLargestDeletions returns the N largest committed deletions by size
func (d *HistoryDB) GetLargestDeletions(limit int) ([]Record, error) {
	query := `
	SELECT id, timestamp, action, rel_path, target_path, reference_path,
	       digest, size, error_message
	FROM deletions
	WHERE action = 'DELETE'
	ORDER BY size DESC
	LIMIT ?
	`

	return d.queryRecords(query, limit)
}

// GetTotalSpaceFreed returns total bytes freed in a time range
func (d *HistoryDB) GetTotalSpaceFreed(start, end time.Time) (int64, error) {
	query := `
	SELECT COALESCE(SUM(size), 0)
	FROM deletions
	WHERE action = 'DELETE' AND timestamp BETWEEN ? AND ?
	`

	var total int64
	err := d.db.QueryRow(query, start, end).Scan(&total)
	return total, err
}

// GetDeletionCountByAction returns count of events grouped by action
func (d *HistoryDB) GetDeletionCountByAction() (map[string]int, error) {
	query := `
	SELECT action, COUNT(*)
	FROM deletions
	GROUP BY action
	`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}

	return counts, rows.Err()
}

// Stats holds aggregated statistics for a time period
type Stats struct {
	TotalDeleted    int
	TotalDryRun     int
	TotalErrors     int
	TotalSkipped    int
	TotalPruned     int
	TotalSpaceFreed int64
	ByAction        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetStats returns comprehensive statistics for the last N days
func (d *HistoryDB) GetStats(days int) (*Stats, error) {
	since := time.Now().AddDate(0, 0, -days)
	now := time.Now()

	stats := &Stats{
		StartDate: since,
		EndDate:   now,
	}

	err := d.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN action = 'DELETE' THEN 1 END),
			COUNT(CASE WHEN action = 'DRY_RUN' THEN 1 END),
			COUNT(CASE WHEN action = 'ERROR' THEN 1 END),
			COUNT(CASE WHEN action = 'SKIP' THEN 1 END),
			COUNT(CASE WHEN action = 'PRUNE' THEN 1 END)
		FROM deletions
		WHERE timestamp >= ?
	`, since).Scan(&stats.TotalDeleted, &stats.TotalDryRun, &stats.TotalErrors,
		&stats.TotalSkipped, &stats.TotalPruned)
	if err != nil {
		return nil, err
	}

	stats.TotalSpaceFreed, err = d.GetTotalSpaceFreed(since, now)
	if err != nil {
		return nil, err
	}

	stats.ByAction, err = d.GetDeletionCountByAction()
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes records older than specified days (for cleanup)
func (d *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	result, err := d.db.Exec(`
		DELETE FROM deletions WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// queryRecords is a helper function to execute queries and scan results
func (d *HistoryDB) queryRecords(query string, args ...interface{}) ([]Record, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var reference, digest, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Action, &r.RelPath, &r.TargetPath,
			&reference, &digest, &r.Size, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		if reference.Valid {
			r.ReferencePath = reference.String
		}
		if digest.Valid {
			r.Digest = digest.String
		}
		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

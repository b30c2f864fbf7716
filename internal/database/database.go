package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"treesweep/internal/match"
)

// Actions recorded per history row
const (
	ActionDelete = "DELETE"  // Committed deletion succeeded
	ActionDryRun = "DRY_RUN" // Simulated deletion
	ActionError  = "ERROR"   // Deletion attempted and failed
	ActionSkip   = "SKIP"    // Validator refused the path, or it was already gone
	ActionPrune  = "PRUNE"   // Empty directory removed
)

// HistoryDB manages the SQLite database for deletion history. The
// history is a write-behind audit log: it never feeds the matching
// decision, which is recomputed from the trees on every run.
type HistoryDB struct {
	db *sql.DB
}

// Record represents a single recorded event
type Record struct {
	ID            int64
	Timestamp     time.Time
	Action        string
	RelPath       string
	TargetPath    string
	ReferencePath string
	Digest        string
	Size          int64
	ErrorMessage  string
}

// NewHistoryDB creates a new database connection and initializes schema
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// file: prefix with _loc=auto enables automatic DATETIME parsing
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exercise the connection so the file is created and permission
	// problems surface here rather than mid-run
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	// Enable WAL mode for better concurrency (multiple readers, one writer)
	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}

	// Clear the deferred error handler since we succeeded
	err = nil
	return hdb, nil
}

// initSchema creates tables and indexes if they don't exist
func (d *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deletions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		action TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		target_path TEXT NOT NULL,
		reference_path TEXT,
		digest TEXT,
		size INTEGER NOT NULL,
		error_message TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_timestamp ON deletions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_action ON deletions(action);
	CREATE INDEX IF NOT EXISTS idx_rel_path ON deletions(rel_path);
	CREATE INDEX IF NOT EXISTS idx_size ON deletions(size);

	-- Metadata table for schema versioning
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := d.db.Exec(schema)
	return err
}

// RecordOutcome inserts one per-file decision into the history
func (d *HistoryDB) RecordOutcome(action string, rec match.DuplicateRecord, errorMsg string) error {
	query := `
	INSERT INTO deletions (
		timestamp, action, rel_path, target_path, reference_path,
		digest, size, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(
		query,
		time.Now(),
		action,
		rec.RelPath,
		string(rec.Target),
		rec.Reference,
		rec.Digest.String(),
		rec.Size,
		errorMsg,
	)
	return err
}

// RecordPrune inserts one removed-directory event into the history
func (d *HistoryDB) RecordPrune(relPath, targetPath string) error {
	query := `
	INSERT INTO deletions (
		timestamp, action, rel_path, target_path, reference_path,
		digest, size, error_message
	) VALUES (?, ?, ?, ?, NULL, NULL, 0, '')
	`

	_, err := d.db.Exec(query, time.Now(), ActionPrune, relPath, targetPath)
	return err
}

// Close closes the database connection
func (d *HistoryDB) Close() error {
	return d.db.Close()
}

// Vacuum optimizes the database (run periodically)
func (d *HistoryDB) Vacuum() error {
	_, err := d.db.Exec("VACUUM")
	return err
}

// GetDatabaseStats returns database statistics
func (d *HistoryDB) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRecords int64
	err := d.db.QueryRow("SELECT COUNT(*) FROM deletions").Scan(&totalRecords)
	if err != nil {
		return nil, err
	}
	stats["total_records"] = totalRecords

	var pageCount, pageSize int64
	err = d.db.QueryRow("PRAGMA page_count").Scan(&pageCount)
	if err != nil {
		return nil, err
	}
	err = d.db.QueryRow("PRAGMA page_size").Scan(&pageSize)
	if err != nil {
		return nil, err
	}
	stats["database_size_bytes"] = pageCount * pageSize

	var oldest, newest sql.NullString
	err = d.db.QueryRow("SELECT MIN(timestamp), MAX(timestamp) FROM deletions").Scan(&oldest, &newest)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if t, ok := parseStoredTime(oldest); ok {
		stats["oldest_record"] = t
	}
	if t, ok := parseStoredTime(newest); ok {
		stats["newest_record"] = t
	}

	return stats, nil
}

// parseStoredTime copes with the timestamp renderings SQLite hands back
// for time.Time values, e.g. "2025-11-19 23:01:56.489344855-05:00"
func parseStoredTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	formats := []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

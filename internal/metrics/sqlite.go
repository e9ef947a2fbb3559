package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores runs in a local SQLite database.
type SQLiteSink struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens the metrics database at the given path, creating parent
// directories and applying pending migrations. WAL mode is enabled for
// concurrent reads.
func Open(path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create metrics directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteSink{
		conn: conn,
		path: path,
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *SQLiteSink) Path() string {
	return s.path
}

// migrate applies all pending schema migrations.
func (s *SQLiteSink) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feature_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	status TEXT NOT NULL,
	iteration INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0,
	warnings INTEGER NOT NULL DEFAULT 0,
	infos INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_feature_id ON runs(feature_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// RecordRun inserts one completed run.
func (s *SQLiteSink) RecordRun(ctx context.Context, run RunMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (feature_id, run_id, status, iteration, errors, warnings, infos, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.FeatureID, run.RunID, string(run.Status), run.Iteration,
		run.Errors, run.Warnings, run.Infos, run.Duration.Milliseconds(), formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to n runs for a feature, newest first.
func (s *SQLiteSink) RecentRuns(ctx context.Context, featureID string, n int) ([]RunMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n < 1 {
		n = 1
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT feature_id, run_id, status, iteration, errors, warnings, infos, duration_ms, created_at
		FROM runs WHERE feature_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, featureID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetrics
	for rows.Next() {
		var r RunMetrics
		var durationMs int64
		var createdAt string
		if err := rows.Scan(&r.FeatureID, &r.RunID, &r.Status, &r.Iteration,
			&r.Errors, &r.Warnings, &r.Infos, &durationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt, _ = parseTime(createdAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

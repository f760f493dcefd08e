// Package history records one row per sync run in a local SQLite database.
// History is diagnostic only: failures here are reported as warnings and
// never change what a run does.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed (or failed) sync run.
type Record struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"`

	Discovered int `json:"discovered"`
	New        int `json:"new"`
	Modified   int `json:"modified"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	RowsExtracted int `json:"rowsExtracted"`
	RowsCleaned   int `json:"rowsCleaned"`
	RowsAppended  int `json:"rowsAppended"`

	Error string `json:"error,omitempty"`
}

// Run status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusDryRun  = "dry-run"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &DB{db: db}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return instance, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	status TEXT NOT NULL,
	discovered INTEGER NOT NULL DEFAULT 0,
	new_files INTEGER NOT NULL DEFAULT 0,
	modified_files INTEGER NOT NULL DEFAULT 0,
	unchanged_files INTEGER NOT NULL DEFAULT 0,
	skipped_files INTEGER NOT NULL DEFAULT 0,
	failed_files INTEGER NOT NULL DEFAULT 0,
	rows_extracted INTEGER NOT NULL DEFAULT 0,
	rows_cleaned INTEGER NOT NULL DEFAULT 0,
	rows_appended INTEGER NOT NULL DEFAULT 0,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Record inserts one run. An existing run ID is replaced, so retried
// writes are safe.
func (d *DB) Record(ctx context.Context, rec Record) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, started_at, finished_at, status,
			discovered, new_files, modified_files, unchanged_files,
			skipped_files, failed_files,
			rows_extracted, rows_cleaned, rows_appended, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.StartedAt.UTC().UnixMilli(),
		rec.FinishedAt.UTC().UnixMilli(),
		rec.Status,
		rec.Discovered, rec.New, rec.Modified, rec.Unchanged,
		rec.Skipped, rec.Failed,
		rec.RowsExtracted, rec.RowsCleaned, rec.RowsAppended,
		nullableString(rec.Error),
	)
	return err
}

// Recent returns up to limit runs, newest first.
func (d *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id, started_at, finished_at, status,
			discovered, new_files, modified_files, unchanged_files,
			skipped_files, failed_files,
			rows_extracted, rows_cleaned, rows_appended, error
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var started, finished int64
		var errText sql.NullString
		if err := rows.Scan(
			&rec.RunID, &started, &finished, &rec.Status,
			&rec.Discovered, &rec.New, &rec.Modified, &rec.Unchanged,
			&rec.Skipped, &rec.Failed,
			&rec.RowsExtracted, &rec.RowsCleaned, &rec.RowsAppended,
			&errText,
		); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(started).UTC()
		rec.FinishedAt = time.UnixMilli(finished).UTC()
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

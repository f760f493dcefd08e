package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleRecord(id string, started time.Time) Record {
	return Record{
		RunID:         id,
		StartedAt:     started,
		FinishedAt:    started.Add(30 * time.Second),
		Status:        StatusSuccess,
		Discovered:    5,
		New:           2,
		Modified:      1,
		Unchanged:     2,
		RowsExtracted: 40,
		RowsCleaned:   33,
		RowsAppended:  33,
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-1", "run-2", "run-3"} {
		rec := sampleRecord(id, base.Add(time.Duration(i)*time.Hour))
		if err := db.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	records, err := db.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].RunID != "run-3" || records[1].RunID != "run-2" {
		t.Errorf("Expected newest first, got %s, %s", records[0].RunID, records[1].RunID)
	}
	if !records[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v, want %v", records[0].StartedAt, base.Add(2*time.Hour))
	}
	if records[0].RowsAppended != 33 {
		t.Errorf("RowsAppended = %d, want 33", records[0].RowsAppended)
	}
}

func TestRecord_FailedRunKeepsError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := sampleRecord("run-err", time.Now())
	rec.Status = StatusFailed
	rec.Error = "FATAL_WRITE: failed to write master dataset"
	if err := db.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	records, err := db.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if records[0].Status != StatusFailed {
		t.Errorf("Status = %q, want %q", records[0].Status, StatusFailed)
	}
	if records[0].Error == "" {
		t.Error("Expected error text to round-trip")
	}
}

func TestRecord_ReplaceSameRunID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", time.Now())
	if err := db.Record(ctx, rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	rec.RowsAppended = 99
	if err := db.Record(ctx, rec); err != nil {
		t.Fatalf("Record() retry error = %v", err)
	}

	records, err := db.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after replace, got %d", len(records))
	}
	if records[0].RowsAppended != 99 {
		t.Errorf("RowsAppended = %d, want 99", records[0].RowsAppended)
	}
}

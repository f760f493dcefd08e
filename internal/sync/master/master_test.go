package master

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
	"github.com/dittorahmat/labsync/internal/utils"
)

func TestMerge_CreatesMasterOnFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	w := NewWriter(logging.NewNoOpLogger())

	rows := []types.Row{
		{"Sample ID": "S1", "Result": "5", types.SourceSheetColumn: "Batch Sheet"},
	}
	result, err := w.Merge(path, rows, []string{"Sample ID", "Result", types.SourceSheetColumn})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !result.Created {
		t.Error("Expected Created = true on first write")
	}
	if result.AppendedRows != 1 || result.TotalRows != 1 {
		t.Errorf("Unexpected counts: %+v", result)
	}

	table, err := tabular.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("Expected 1 row on disk, got %d", len(table.Rows))
	}
	if table.Rows[0]["Sample ID"] != "S1" {
		t.Errorf("Unexpected row: %v", table.Rows[0])
	}
}

func TestMerge_AppendsAfterExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	w := NewWriter(logging.NewNoOpLogger())

	columns := []string{"Sample ID", "Result"}
	if _, err := w.Merge(path, []types.Row{{"Sample ID": "S1", "Result": "5"}}, columns); err != nil {
		t.Fatalf("First Merge() error = %v", err)
	}

	result, err := w.Merge(path, []types.Row{{"Sample ID": "S2", "Result": "7"}}, columns)
	if err != nil {
		t.Fatalf("Second Merge() error = %v", err)
	}
	if result.Created {
		t.Error("Expected Created = false on second write")
	}
	if result.ExistingRows != 1 || result.TotalRows != 2 {
		t.Errorf("Unexpected counts: %+v", result)
	}

	table, err := tabular.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Sample ID"] != "S1" || table.Rows[1]["Sample ID"] != "S2" {
		t.Errorf("Append order lost: %v", table.Rows)
	}
}

func TestMerge_SchemaGrowsNeverShrinks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	w := NewWriter(logging.NewNoOpLogger())

	if _, err := w.Merge(path, []types.Row{{"Sample ID": "S1", "Result": "5"}},
		[]string{"Sample ID", "Result"}); err != nil {
		t.Fatalf("First Merge() error = %v", err)
	}

	// Second batch has a new column and lacks "Result" entirely.
	result, err := w.Merge(path, []types.Row{{"Sample ID": "S2", "Analyst": "jd"}},
		[]string{"Sample ID", "Analyst"})
	if err != nil {
		t.Fatalf("Second Merge() error = %v", err)
	}

	want := []string{"Sample ID", "Result", "Analyst"}
	if len(result.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", result.Columns, want)
	}
	for i, col := range want {
		if result.Columns[i] != col {
			t.Errorf("Columns[%d] = %q, want %q", i, result.Columns[i], col)
		}
	}

	table, err := tabular.ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable() error = %v", err)
	}
	if table.Rows[0]["Result"] != "5" {
		t.Errorf("Old row lost its Result value: %v", table.Rows[0])
	}
	if table.Rows[1]["Result"] != "" {
		t.Errorf("New row should have empty Result, got %q", table.Rows[1]["Result"])
	}
}

func TestMerge_ZeroRowsRewritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	w := NewWriter(logging.NewNoOpLogger())

	if _, err := w.Merge(path, []types.Row{{"Sample ID": "S1"}}, []string{"Sample ID"}); err != nil {
		t.Fatalf("First Merge() error = %v", err)
	}
	result, err := w.Merge(path, nil, nil)
	if err != nil {
		t.Fatalf("Second Merge() error = %v", err)
	}
	if result.AppendedRows != 0 || result.TotalRows != 1 {
		t.Errorf("Unexpected counts: %+v", result)
	}
}

func TestMerge_CorruptExistingMasterIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.xlsx")
	if err := writeGarbage(path); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	w := NewWriter(logging.NewNoOpLogger())
	_, err := w.Merge(path, []types.Row{{"Sample ID": "S1"}}, []string{"Sample ID"})
	if err == nil {
		t.Fatal("Expected error for corrupt master")
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.CLIError.Code != utils.ErrCodeFatalWrite {
		t.Errorf("Code = %q, want %q", appErr.CLIError.Code, utils.ErrCodeFatalWrite)
	}
}

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("not a workbook"), 0o644)
}

// Package master maintains the consolidated output workbook. New rows are
// appended after existing ones and the whole dataset is rewritten
// atomically; the schema only ever grows.
package master

import (
	"fmt"
	"os"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
	"github.com/dittorahmat/labsync/internal/utils"
)

// MergeResult reports what a merge did.
type MergeResult struct {
	Path         string   `json:"path"`
	Created      bool     `json:"created"`
	ExistingRows int      `json:"existingRows"`
	AppendedRows int      `json:"appendedRows"`
	TotalRows    int      `json:"totalRows"`
	Columns      []string `json:"columns"`
}

// Writer merges cleaned rows into the master dataset on disk.
type Writer struct {
	logger logging.Logger
}

func NewWriter(logger logging.Logger) *Writer {
	return &Writer{logger: logger}
}

// Merge loads the master workbook at path (when present), appends rows
// after the existing ones, and writes the full dataset back atomically.
// Columns are the union of the existing schema and newColumns: existing
// order is preserved and new columns are appended in first-seen order.
// Any failure here is fatal to the run; callers must not persist the
// ledger after a merge error.
func (w *Writer) Merge(path string, rows []types.Row, newColumns []string) (*MergeResult, error) {
	existing := &tabular.Table{}
	created := true

	if _, err := os.Stat(path); err == nil {
		existing, err = tabular.ReadTable(path)
		if err != nil {
			return nil, fatalWrite(path, "failed to read existing master dataset", err)
		}
		created = false
	} else if !os.IsNotExist(err) {
		return nil, fatalWrite(path, "failed to stat master dataset", err)
	}

	columns := unionColumns(existing.Columns, newColumns)
	merged := &tabular.Table{
		Columns: columns,
		Rows:    make([]types.Row, 0, len(existing.Rows)+len(rows)),
	}
	merged.Rows = append(merged.Rows, existing.Rows...)
	merged.Rows = append(merged.Rows, rows...)

	if err := tabular.WriteTable(path, merged); err != nil {
		return nil, fatalWrite(path, "failed to write master dataset", err)
	}

	result := &MergeResult{
		Path:         path,
		Created:      created,
		ExistingRows: len(existing.Rows),
		AppendedRows: len(rows),
		TotalRows:    len(merged.Rows),
		Columns:      columns,
	}
	w.logger.Info("Master dataset written",
		logging.F("path", path),
		logging.F("created", created),
		logging.F("appended", result.AppendedRows),
		logging.F("total", result.TotalRows))
	return result, nil
}

func unionColumns(existing, incoming []string) []string {
	columns := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, col := range existing {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	for _, col := range incoming {
		if !seen[col] {
			seen[col] = true
			columns = append(columns, col)
		}
	}
	return columns
}

func fatalWrite(path, message string, err error) error {
	return utils.NewAppError(
		utils.NewCLIError(utils.ErrCodeFatalWrite, fmt.Sprintf("%s: %v", message, err)).
			WithContext("path", path).
			Build())
}

// Package tabular reads and writes spreadsheet workbooks. Remote files are
// opened from raw bytes; the master dataset is read and written as a single
// flat table on the local filesystem.
package tabular

import (
	"github.com/dittorahmat/labsync/internal/types"
)

// Reader opens workbooks from raw bytes.
type Reader interface {
	OpenWorkbook(data []byte) (Workbook, error)
}

// Workbook is one open spreadsheet document.
type Workbook interface {
	// SheetNames returns the sheet names in workbook order.
	SheetNames() []string
	// ParseSheet parses the named sheet with its first row as the header.
	// Blank header cells get positional "Column N" names; duplicate header
	// names get a numeric suffix so no cell is silently dropped. Rows keep
	// sheet order and missing trailing cells read as empty strings.
	ParseSheet(name string) (*Table, error)
	// Close releases resources held by the workbook.
	Close() error
}

// Table is a flat dataset with an explicit column order, the on-disk shape
// of the master workbook.
type Table struct {
	Columns []string
	Rows    []types.Row
}

// NewTable returns an empty table with the given column order.
func NewTable(columns []string) *Table {
	return &Table{Columns: columns}
}

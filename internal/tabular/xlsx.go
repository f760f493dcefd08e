package tabular

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/dittorahmat/labsync/internal/types"
)

const masterSheetName = "Sheet1"

// XLSXReader opens xlsx/xls workbooks using excelize.
type XLSXReader struct{}

// NewXLSXReader creates a workbook reader for Office Open XML spreadsheets.
func NewXLSXReader() *XLSXReader {
	return &XLSXReader{}
}

func (r *XLSXReader) OpenWorkbook(data []byte) (Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return &xlsxWorkbook{file: f}, nil
}

type xlsxWorkbook struct {
	file *excelize.File
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *xlsxWorkbook) ParseSheet(name string) (*Table, error) {
	cells, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", name, err)
	}
	return tableFromCells(cells), nil
}

func (w *xlsxWorkbook) Close() error {
	return w.file.Close()
}

// headerNames derives column names from the first row. The header is widened
// to the widest data row so over-long rows still map every cell to a column.
func headerNames(cells [][]string) []string {
	width := 0
	for _, line := range cells {
		if len(line) > width {
			width = len(line)
		}
	}

	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(cells[0]) {
			name = cells[0][i]
		}
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s %d", name, n+1)
		}
		seen[name] = 1
		names[i] = name
	}
	return names
}

// tableFromCells builds a table from raw sheet cells, first row as header.
func tableFromCells(cells [][]string) *Table {
	if len(cells) == 0 {
		return &Table{}
	}
	columns := headerNames(cells)
	table := &Table{Columns: columns, Rows: make([]types.Row, 0, len(cells)-1)}
	for _, line := range cells[1:] {
		row := make(types.Row, len(columns))
		for i, col := range columns {
			if i < len(line) {
				row[col] = line[i]
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// ReadTable loads the single-sheet master dataset at path.
func ReadTable(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{}, nil
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}
	return tableFromCells(cells), nil
}

// WriteTable writes the table to path as a single-sheet workbook. The write
// is atomic: a temp file in the same directory is renamed over the target
// only after a successful save.
func WriteTable(path string, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, len(table.Columns))
	for i, col := range table.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(masterSheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range table.Rows {
		cells := make([]interface{}, len(table.Columns))
		for j, col := range table.Columns {
			cells[j] = row[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(masterSheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	return writeFileAtomic(path, f)
}

func writeFileAtomic(path string, f *excelize.File) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace '%s': %w", path, err)
	}
	return nil
}

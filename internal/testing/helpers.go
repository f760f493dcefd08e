// Package testing provides shared helpers for labsync tests: a standard
// context, in-memory workbook fixtures, and small assertion wrappers.
package testing

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// TestTime returns a fixed reference time for fixtures.
func TestTime() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

// Sheet describes one sheet in a generated workbook fixture.
type Sheet struct {
	Name  string
	Cells [][]interface{}
}

// WorkbookBytes builds an in-memory xlsx workbook with the given sheets,
// in order. The first fixture sheet replaces the default sheet.
func WorkbookBytes(t *testing.T, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				t.Fatalf("SetSheetName() error = %v", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				t.Fatalf("NewSheet() error = %v", err)
			}
		}
		for j, row := range sheet.Cells {
			cell, err := excelize.CoordinatesToCellName(1, j+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName() error = %v", err)
			}
			line := row
			if err := f.SetSheetRow(sheet.Name, cell, &line); err != nil {
				t.Fatalf("SetSheetRow() error = %v", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.Bytes()
}

// LabSheet returns a typical lab-result sheet fixture with the standard
// header and the given data rows.
func LabSheet(name string, rows ...[]interface{}) Sheet {
	cells := [][]interface{}{{"Sample ID", "Result", "Analyst"}}
	cells = append(cells, rows...)
	return Sheet{Name: name, Cells: cells}
}

// AssertNoError is a helper to fail the test if error is not nil
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", msgAndArgs[0], err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// AssertError is a helper to fail the test if error is nil
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: expected error but got nil", msgAndArgs[0])
		} else {
			t.Fatal("expected error but got nil")
		}
	}
}

// AssertEqual is a helper to fail the test if two values are not equal
func AssertEqual(t *testing.T, got, want interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: got %v, want %v", msgAndArgs[0], got, want)
		} else {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// Package extract pulls rows out of downloaded workbooks. Target sheet
// names from config are matched against the workbook's actual sheet names,
// and every extracted row is tagged with the sheet it came from.
package extract

import (
	"strings"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
)

// Matcher resolves a configured target name to an actual sheet name.
type Matcher interface {
	// Match returns the first sheet in available (workbook order) that
	// matches target, or false when none does.
	Match(target string, available []string) (string, bool)
}

// SubstringMatcher matches case-insensitively on substring: a sheet named
// "Batch Sheet 2024-Q1" matches the target "Batch Sheet".
type SubstringMatcher struct{}

func (SubstringMatcher) Match(target string, available []string) (string, bool) {
	needle := strings.ToLower(target)
	for _, name := range available {
		if strings.Contains(strings.ToLower(name), needle) {
			return name, true
		}
	}
	return "", false
}

// ExactMatcher matches case-insensitively on the whole sheet name.
type ExactMatcher struct{}

func (ExactMatcher) Match(target string, available []string) (string, bool) {
	for _, name := range available {
		if strings.EqualFold(name, target) {
			return name, true
		}
	}
	return "", false
}

// MatcherFor returns the matcher for a configured strategy name. Unknown
// names fall back to substring matching.
func MatcherFor(strategy string) Matcher {
	switch strings.ToLower(strategy) {
	case "exact":
		return ExactMatcher{}
	default:
		return SubstringMatcher{}
	}
}

// Result holds the rows extracted from one workbook plus the column order
// they arrived in: each matched sheet's header columns first-seen, with the
// source-sheet tag right after the first sheet that contributed it.
type Result struct {
	Rows    []types.Row
	Columns []string
	// MatchedSheets maps each target to the sheet name it resolved to.
	MatchedSheets map[string]string
}

// Extractor extracts rows from workbooks using a sheet-name matcher.
type Extractor struct {
	matcher Matcher
	logger  logging.Logger
}

func New(matcher Matcher, logger logging.Logger) *Extractor {
	return &Extractor{matcher: matcher, logger: logger}
}

// Extract processes each target in configured order: the first matching
// sheet is parsed with its first row as header and every row is tagged
// with the actual sheet name. A target with no match and a sheet that
// fails to parse are both logged and skipped; the remaining targets still
// contribute, so a partial result is possible.
func (e *Extractor) Extract(wb tabular.Workbook, targets []string) Result {
	available := wb.SheetNames()
	result := Result{MatchedSheets: make(map[string]string, len(targets))}
	seen := make(map[string]bool)

	for _, target := range targets {
		name, ok := e.matcher.Match(target, available)
		if !ok {
			e.logger.Warn("No sheet matches target, skipping",
				logging.F("target", target),
				logging.F("sheets", strings.Join(available, ", ")))
			continue
		}
		result.MatchedSheets[target] = name

		sheet, err := wb.ParseSheet(name)
		if err != nil {
			e.logger.Warn("Failed to parse sheet, skipping",
				logging.F("sheet", name),
				logging.F("error", err.Error()))
			continue
		}

		for _, col := range sheet.Columns {
			if !seen[col] {
				seen[col] = true
				result.Columns = append(result.Columns, col)
			}
		}
		if !seen[types.SourceSheetColumn] {
			seen[types.SourceSheetColumn] = true
			result.Columns = append(result.Columns, types.SourceSheetColumn)
		}

		for _, row := range sheet.Rows {
			row[types.SourceSheetColumn] = name
			result.Rows = append(result.Rows, row)
		}

		e.logger.Debug("Extracted sheet",
			logging.F("target", target),
			logging.F("sheet", name),
			logging.F("rows", len(sheet.Rows)))
	}

	return result
}

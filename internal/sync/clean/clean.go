// Package clean filters and normalizes extracted rows before they reach
// the master dataset: blank rows, quality-control rows, and rows missing
// required key fields are dropped, and remaining string fields are trimmed.
package clean

import (
	"strings"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/types"
)

// Options carries the configured exclusion rules.
type Options struct {
	// QCPatterns mark quality-control rows: a row is dropped when any
	// field contains any pattern, case-insensitively.
	QCPatterns []string
	// KeyFields must be non-empty for a row to survive. Only key fields
	// that actually appear as columns in the row set are enforced.
	KeyFields []string
}

// StageCount records how many rows entered and survived one stage.
type StageCount struct {
	Stage string `json:"stage"`
	In    int    `json:"in"`
	Out   int    `json:"out"`
}

// Result is the cleaned row set plus per-stage counts.
type Result struct {
	Rows   []types.Row
	Stages []StageCount
}

// Dropped returns the total number of rows removed across all stages.
func (r Result) Dropped() int {
	dropped := 0
	for _, s := range r.Stages {
		dropped += s.In - s.Out
	}
	return dropped
}

// Cleaner applies the cleaning stages in fixed order.
type Cleaner struct {
	logger   logging.Logger
	patterns []string
	keys     []string
}

func New(opts Options, logger logging.Logger) *Cleaner {
	patterns := make([]string, 0, len(opts.QCPatterns))
	for _, p := range opts.QCPatterns {
		if p != "" {
			patterns = append(patterns, strings.ToLower(p))
		}
	}
	return &Cleaner{
		logger:   logger,
		patterns: patterns,
		keys:     opts.KeyFields,
	}
}

// Clean runs the stages in order: blank removal, QC exclusion, key-field
// enforcement, whitespace trimming. The order matters: later stages assume
// remaining structure is meaningful. Counts never increase from stage to
// stage.
func (c *Cleaner) Clean(rows []types.Row) Result {
	var result Result

	rows = c.stage(&result, "blank", rows, c.dropBlank)
	rows = c.stage(&result, "qc", rows, c.dropQC)
	rows = c.stage(&result, "key-fields", rows, c.dropMissingKeys)
	rows = c.stage(&result, "trim", rows, trimFields)

	result.Rows = rows
	return result
}

func (c *Cleaner) stage(result *Result, name string, rows []types.Row, fn func([]types.Row) []types.Row) []types.Row {
	in := len(rows)
	out := fn(rows)
	result.Stages = append(result.Stages, StageCount{Stage: name, In: in, Out: len(out)})
	c.logger.Info("Cleaning stage complete",
		logging.F("stage", name),
		logging.F("in", in),
		logging.F("out", len(out)))
	return out
}

func (c *Cleaner) dropBlank(rows []types.Row) []types.Row {
	out := rows[:0:0]
	for _, row := range rows {
		if !row.IsBlank() {
			out = append(out, row)
		}
	}
	return out
}

func (c *Cleaner) dropQC(rows []types.Row) []types.Row {
	if len(c.patterns) == 0 {
		return rows
	}
	out := rows[:0:0]
	for _, row := range rows {
		if !c.isQC(row) {
			out = append(out, row)
		}
	}
	return out
}

// isQC is conservative: one matching field anywhere disqualifies the row.
func (c *Cleaner) isQC(row types.Row) bool {
	for _, value := range row {
		if value == "" {
			continue
		}
		lower := strings.ToLower(value)
		for _, pattern := range c.patterns {
			if strings.Contains(lower, pattern) {
				return true
			}
		}
	}
	return false
}

func (c *Cleaner) dropMissingKeys(rows []types.Row) []types.Row {
	if len(c.keys) == 0 || len(rows) == 0 {
		return rows
	}

	// Only key fields present as columns in this row set are enforced.
	present := presentKeys(c.keys, rows)
	if len(present) == 0 {
		c.logger.Warn("None of the configured key fields exist in the extracted columns",
			logging.F("keyFields", strings.Join(c.keys, ", ")))
		return rows
	}

	out := rows[:0:0]
	for _, row := range rows {
		if hasAllKeys(row, present) {
			out = append(out, row)
		}
	}
	return out
}

func presentKeys(keys []string, rows []types.Row) []string {
	columns := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			columns[col] = true
		}
	}
	present := make([]string, 0, len(keys))
	for _, key := range keys {
		if columns[key] {
			present = append(present, key)
		}
	}
	return present
}

func hasAllKeys(row types.Row, keys []string) bool {
	for _, key := range keys {
		if row[key] == "" {
			return false
		}
	}
	return true
}

func trimFields(rows []types.Row) []types.Row {
	for _, row := range rows {
		for key, value := range row {
			if trimmed := strings.TrimSpace(value); trimmed != value {
				row[key] = trimmed
			}
		}
	}
	return rows
}

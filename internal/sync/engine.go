// Package sync runs one incremental synchronization job: discover remote
// spreadsheets, classify them against the processed-files ledger, extract
// and clean rows from the new and modified ones, merge the result into the
// master dataset, and persist the ledger.
package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/sync/clean"
	"github.com/dittorahmat/labsync/internal/sync/detect"
	"github.com/dittorahmat/labsync/internal/sync/extract"
	"github.com/dittorahmat/labsync/internal/sync/history"
	"github.com/dittorahmat/labsync/internal/sync/ledger"
	"github.com/dittorahmat/labsync/internal/sync/master"
	"github.com/dittorahmat/labsync/internal/sync/walker"
	"github.com/dittorahmat/labsync/internal/tabular"
	"github.com/dittorahmat/labsync/internal/types"
)

// Job is the immutable description of one sync run. All fields come from
// configuration; the engine hard-codes nothing.
type Job struct {
	// Root is the store folder the walk starts from.
	Root string
	// TargetSheets are the sheet names extracted from each workbook, in
	// priority order.
	TargetSheets []string
	// MatchStrategy selects how target names match sheet names
	// ("substring" or "exact").
	MatchStrategy string
	// QCPatterns mark quality-control rows for exclusion.
	QCPatterns []string
	// KeyFields must be non-empty for a row to reach the master dataset.
	KeyFields []string
	// Extensions are the file extensions collected, lowercase with dot.
	Extensions []string
	// SkipFolderPrefix marks reserved folders that are never entered.
	SkipFolderPrefix string
	// SkipFolderNames are folder names that are never entered.
	SkipFolderNames []string
	// MasterPath is the consolidated output workbook.
	MasterPath string
	// LedgerPath is the processed-files ledger.
	LedgerPath string
	// Concurrency is how many files are processed in parallel; 1 means
	// strictly sequential.
	Concurrency int
	// DryRun classifies and extracts but writes nothing.
	DryRun bool
}

// Validate checks the job before any remote call is made.
func (j Job) Validate() error {
	if len(j.TargetSheets) == 0 {
		return fmt.Errorf("job: target sheets must not be empty")
	}
	if len(j.Extensions) == 0 {
		return fmt.Errorf("job: extensions must not be empty")
	}
	if j.MasterPath == "" {
		return fmt.Errorf("job: master path must not be empty")
	}
	if j.LedgerPath == "" {
		return fmt.Errorf("job: ledger path must not be empty")
	}
	if j.Concurrency < 1 {
		return fmt.Errorf("job: concurrency must be at least 1, got %d", j.Concurrency)
	}
	return nil
}

// RunSummary reports what one run did.
type RunSummary struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	DryRun     bool          `json:"dryRun"`

	Discovered int `json:"discovered"`
	New        int `json:"new"`
	Modified   int `json:"modified"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`

	RowsExtracted int `json:"rowsExtracted"`
	RowsCleaned   int `json:"rowsCleaned"`
	RowsAppended  int `json:"rowsAppended"`

	MasterPath    string `json:"masterPath"`
	MasterCreated bool   `json:"masterCreated"`
	LedgerPath    string `json:"ledgerPath"`
	LedgerEntries int    `json:"ledgerEntries"`
}

// Processed is the number of files that went through extraction.
func (s *RunSummary) Processed() int {
	return s.New + s.Modified
}

// Engine wires the walker, detector, extractor, cleaner and writers over
// one store and one tabular reader.
type Engine struct {
	store   store.Store
	reader  tabular.Reader
	logger  logging.Logger
	history *history.DB
}

func NewEngine(st store.Store, reader tabular.Reader, logger logging.Logger) *Engine {
	return &Engine{store: st, reader: reader, logger: logger}
}

// SetHistory attaches an optional run-history database. History writes are
// best-effort and never affect the run outcome.
func (e *Engine) SetHistory(db *history.DB) {
	e.history = db
}

// fileResult is the outcome of processing one discovered file. Results are
// indexed by discovery order so the merge is deterministic regardless of
// worker interleaving.
type fileResult struct {
	file      types.RemoteFile
	state     types.ChangeState
	stamp     string
	rows      []types.Row
	columns   []string
	extracted int
	failed    bool
}

// commit reports whether the ledger entry should be updated: the file was
// selected this run and neither read nor decode hard-failed. This includes
// the zero-row case, so a file with no matching sheets is not retried
// forever.
func (r *fileResult) commit() bool {
	return !r.failed && (r.state == types.ChangeNew || r.state == types.ChangeModified)
}

// Run executes the job. Per-file failures are isolated and counted; only a
// master dataset write failure (or an invalid job) aborts the run, and in
// that case the ledger is not persisted, so no file is falsely marked
// processed.
func (e *Engine) Run(ctx context.Context, job Job) (*RunSummary, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := e.logger.WithTraceID(runID)
	summary := &RunSummary{
		RunID:      runID,
		StartedAt:  time.Now(),
		DryRun:     job.DryRun,
		MasterPath: job.MasterPath,
		LedgerPath: job.LedgerPath,
	}

	logger.Info("Sync run starting",
		logging.F("root", job.Root),
		logging.F("store", e.store.Name()),
		logging.F("dryRun", job.DryRun))

	led, err := ledger.Load(job.LedgerPath, logger)
	if err != nil {
		return nil, e.finish(ctx, summary, err)
	}

	w := walker.New(e.store, logger, walker.Options{
		SkipPrefix: job.SkipFolderPrefix,
		SkipNames:  job.SkipFolderNames,
		Extensions: job.Extensions,
	})
	files, err := w.List(ctx, job.Root)
	if err != nil {
		return nil, e.finish(ctx, summary, err)
	}
	summary.Discovered = len(files)
	logger.Info("Discovered candidate files", logging.F("count", len(files)))

	results := e.processAll(ctx, job, logger, led, files)
	if err := ctx.Err(); err != nil {
		return nil, e.finish(ctx, summary, err)
	}

	var rows []types.Row
	var columns []string
	seen := make(map[string]bool)
	for i := range results {
		res := &results[i]
		if res.failed {
			summary.Failed++
			continue
		}
		switch res.state {
		case types.ChangeNew:
			summary.New++
		case types.ChangeModified:
			summary.Modified++
		case types.ChangeUnchanged:
			summary.Unchanged++
		case types.ChangeSkipped:
			summary.Skipped++
		}
		summary.RowsExtracted += res.extracted
		summary.RowsCleaned += len(res.rows)
		rows = append(rows, res.rows...)
		for _, col := range res.columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}

	if job.DryRun {
		summary.RowsAppended = len(rows)
		summary.LedgerEntries = led.Len()
		logger.Info("Dry run: skipping master and ledger writes",
			logging.F("wouldAppend", len(rows)))
		return summary, e.finish(ctx, summary, nil)
	}

	if len(rows) > 0 {
		writer := master.NewWriter(logger)
		merged, err := writer.Merge(job.MasterPath, rows, columns)
		if err != nil {
			// Fatal: the ledger must not record files whose rows were
			// never written.
			return nil, e.finish(ctx, summary, err)
		}
		summary.RowsAppended = merged.AppendedRows
		summary.MasterCreated = merged.Created
	} else {
		logger.Info("No new rows this run")
	}

	// The ledger is saved on both paths so timestamp-equal files are
	// skipped faster next time.
	for i := range results {
		if res := &results[i]; res.commit() {
			led.Set(res.file.Path, res.stamp)
		}
	}
	if err := led.Save(job.LedgerPath); err != nil {
		return nil, e.finish(ctx, summary, err)
	}
	summary.LedgerEntries = led.Len()

	logger.Info("Sync run complete",
		logging.F("discovered", summary.Discovered),
		logging.F("processed", summary.Processed()),
		logging.F("unchanged", summary.Unchanged),
		logging.F("skipped", summary.Skipped),
		logging.F("failed", summary.Failed),
		logging.F("rowsAppended", summary.RowsAppended))
	return summary, e.finish(ctx, summary, nil)
}

// processAll classifies and processes every file, fanning out to
// job.Concurrency workers. Each worker owns distinct result slots, so the
// output order is discovery order whatever the interleaving. The ledger is
// only read here; mutation happens after the pool drains.
func (e *Engine) processAll(ctx context.Context, job Job, logger logging.Logger, led *ledger.Ledger, files []types.RemoteFile) []fileResult {
	results := make([]fileResult, len(files))
	if len(files) == 0 {
		return results
	}

	detector := detect.New(e.store, logger)
	extractor := extract.New(extract.MatcherFor(job.MatchStrategy), logger)
	cleaner := clean.New(clean.Options{
		QCPatterns: job.QCPatterns,
		KeyFields:  job.KeyFields,
	}, logger)

	workers := job.Concurrency
	if workers > len(files) {
		workers = len(files)
	}

	indexes := make(chan int)
	var wg stdsync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = e.processFile(ctx, job, logger, detector, extractor, cleaner, led, files[i])
			}
		}()
	}

	for i := range files {
		if ctx.Err() != nil {
			break
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

func (e *Engine) processFile(ctx context.Context, job Job, logger logging.Logger,
	detector *detect.Detector, extractor *extract.Extractor, cleaner *clean.Cleaner,
	led *ledger.Ledger, file types.RemoteFile) fileResult {

	res := fileResult{file: file, state: types.ChangeSkipped}

	cls, err := detector.Classify(ctx, file, led)
	if err != nil {
		res.failed = true
		return res
	}
	res.state = cls.State
	res.stamp = cls.Stamp
	if !cls.Selected() {
		logger.Debug("File not selected",
			logging.F("path", file.Path),
			logging.F("state", cls.State.String()))
		return res
	}

	logger.Info("Processing file",
		logging.F("path", file.Path),
		logging.F("state", cls.State.String()))

	data, err := e.store.ReadFile(ctx, file.Path)
	if err != nil {
		logger.Warn("Failed to read file, will retry next run",
			logging.F("path", file.Path),
			logging.F("error", err.Error()))
		res.failed = true
		return res
	}

	wb, err := e.reader.OpenWorkbook(data)
	if err != nil {
		logger.Warn("Failed to decode workbook, will retry next run",
			logging.F("path", file.Path),
			logging.F("error", err.Error()))
		res.failed = true
		return res
	}
	defer wb.Close()

	extracted := extractor.Extract(wb, job.TargetSheets)
	res.extracted = len(extracted.Rows)
	res.columns = extracted.Columns

	cleaned := cleaner.Clean(extracted.Rows)
	res.rows = cleaned.Rows

	logger.Info("File processed",
		logging.F("path", file.Path),
		logging.F("extracted", res.extracted),
		logging.F("kept", len(res.rows)))
	return res
}

// finish stamps the summary and records it in history. The original run
// error, if any, is returned unchanged.
func (e *Engine) finish(ctx context.Context, summary *RunSummary, runErr error) error {
	summary.FinishedAt = time.Now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	if e.history == nil {
		return runErr
	}

	status := history.StatusSuccess
	errText := ""
	switch {
	case runErr != nil:
		status = history.StatusFailed
		errText = runErr.Error()
	case summary.DryRun:
		status = history.StatusDryRun
	}

	rec := history.Record{
		RunID:         summary.RunID,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
		Status:        status,
		Discovered:    summary.Discovered,
		New:           summary.New,
		Modified:      summary.Modified,
		Unchanged:     summary.Unchanged,
		Skipped:       summary.Skipped,
		Failed:        summary.Failed,
		RowsExtracted: summary.RowsExtracted,
		RowsCleaned:   summary.RowsCleaned,
		RowsAppended:  summary.RowsAppended,
		Error:         errText,
	}
	// History must never mask the run outcome; use a fresh context so a
	// cancelled run still gets recorded.
	if err := e.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("Failed to record run history", logging.F("error", err.Error()))
	}
	return runErr
}

// Package ledger persists which remote files have been processed and at
// what remote timestamp, so re-runs only pick up new or changed files.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dittorahmat/labsync/internal/logging"
)

// Ledger maps remote file paths to the canonical timestamp string recorded
// when the file was last successfully processed. Reads may run concurrently;
// mutation is single-writer.
type Ledger struct {
	entries map[string]string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// Load reads the ledger at path. A missing file yields an empty ledger; a
// corrupt file yields an empty ledger and a warning, so one bad write never
// blocks future runs. Values that are not strings are ignored.
func Load(path string, logger logging.Logger) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read ledger '%s': %w", path, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("Ledger file is corrupt, starting with an empty ledger",
			logging.F("path", path),
			logging.F("error", err.Error()))
		return New(), nil
	}

	led := New()
	for key, value := range raw {
		if stamp, ok := value.(string); ok {
			led.entries[key] = stamp
		}
	}
	return led, nil
}

// Get returns the recorded timestamp for a path.
func (l *Ledger) Get(path string) (string, bool) {
	stamp, ok := l.entries[path]
	return stamp, ok
}

// Set records the timestamp for a path.
func (l *Ledger) Set(path, stamp string) {
	l.entries[path] = stamp
}

// Len returns the number of recorded files.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Paths returns the recorded paths in sorted order.
func (l *Ledger) Paths() []string {
	paths := make([]string, 0, len(l.entries))
	for p := range l.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns a copy of the path -> timestamp map.
func (l *Ledger) Entries() map[string]string {
	out := make(map[string]string, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// Save writes the ledger to path atomically: the JSON document is written to
// a temp file in the same directory, synced, and renamed over the target.
func (l *Ledger) Save(path string) error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync ledger: %w", err)
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

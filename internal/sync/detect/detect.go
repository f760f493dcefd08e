// Package detect classifies discovered remote files against the processed
// files ledger so only new and modified files are downloaded.
package detect

import (
	"context"
	"time"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/sync/ledger"
	"github.com/dittorahmat/labsync/internal/types"
)

// Classification is the outcome of comparing one remote file against the
// ledger. Stamp is the canonical remote timestamp, empty when the file was
// skipped.
type Classification struct {
	State types.ChangeState
	Stamp string
}

// Selected reports whether the file should be downloaded and processed.
func (c Classification) Selected() bool {
	return c.State == types.ChangeNew || c.State == types.ChangeModified
}

// CanonicalStamp converts a remote timestamp to the canonical form stored
// in the ledger: UTC, RFC 3339. Change detection is exact string equality
// of this form, never time-value comparison.
func CanonicalStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Detector classifies files using the store's last-modified times.
type Detector struct {
	store  store.Store
	logger logging.Logger
}

func New(st store.Store, logger logging.Logger) *Detector {
	return &Detector{store: st, logger: logger}
}

// Classify fetches the file's remote timestamp and compares its canonical
// form with the ledger entry. A timestamp fetch failure classifies the file
// as skipped: the ledger entry stays untouched and the file is retried on
// the next run. Context cancellation is returned as an error.
func (d *Detector) Classify(ctx context.Context, file types.RemoteFile, led *ledger.Ledger) (Classification, error) {
	modified, err := d.store.GetLastModified(ctx, file.Path)
	if err != nil {
		if ctx.Err() != nil {
			return Classification{}, ctx.Err()
		}
		d.logger.Warn("Could not fetch remote timestamp, skipping file this run",
			logging.F("path", file.Path),
			logging.F("error", err.Error()))
		return Classification{State: types.ChangeSkipped}, nil
	}

	stamp := CanonicalStamp(modified)
	prev, ok := led.Get(file.Path)
	switch {
	case !ok:
		return Classification{State: types.ChangeNew, Stamp: stamp}, nil
	case prev == stamp:
		return Classification{State: types.ChangeUnchanged, Stamp: stamp}, nil
	default:
		return Classification{State: types.ChangeModified, Stamp: stamp}, nil
	}
}

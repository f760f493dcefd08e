// Package store defines the remote document store abstraction the sync
// engine walks, plus the retry and error-classification machinery shared
// by its backends.
package store

import (
	"context"
	"time"
)

// ItemInfo describes one file or folder returned by a listing.
type ItemInfo struct {
	// Name is the leaf name, e.g. "results_2024.xlsx"
	Name string
	// Path is the backend-native full path used for subsequent calls
	Path string
	// Modified is the remote last-modified time (zero when unknown)
	Modified time.Time
	// Size in bytes (0 for folders)
	Size int64
}

// Listing holds the direct children of one folder.
type Listing struct {
	Files   []ItemInfo
	Folders []ItemInfo
}

// Store is a remote document store: a walkable folder hierarchy whose
// files can be read and stamped with a last-modified time. Implementations
// must be safe for concurrent use.
type Store interface {
	// Name identifies the backend ("sharepoint", "drive") for logs and errors.
	Name() string

	// ListFolder returns the direct children of the folder at path.
	ListFolder(ctx context.Context, path string) (*Listing, error)

	// ReadFile downloads the full content of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// GetLastModified returns the remote last-modified time of the file
	// at path.
	GetLastModified(ctx context.Context, path string) (time.Time, error)
}

// Verifier is implemented by stores that can check connectivity and
// credentials up front, before a run starts walking.
type Verifier interface {
	Verify(ctx context.Context) error
}

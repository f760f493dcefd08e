// Package walker discovers candidate spreadsheet files in a remote document
// store by traversing its folder tree.
package walker

import (
	"context"
	"path"
	"strings"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/types"
)

// Options controls which folders are entered and which files are collected.
type Options struct {
	// SkipPrefix marks reserved folders; names starting with it are not
	// entered ("" disables the check).
	SkipPrefix string
	// SkipNames are folder names never entered, e.g. the library's system
	// "Forms" folder.
	SkipNames []string
	// Extensions are the file extensions collected, lowercase with dot.
	Extensions []string
}

// Walker lists candidate files under a root folder, depth first.
type Walker struct {
	store  store.Store
	logger logging.Logger
	opts   Options

	extensions map[string]bool
	skipNames  map[string]bool
}

func New(st store.Store, logger logging.Logger, opts Options) *Walker {
	extensions := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[strings.ToLower(ext)] = true
	}
	skipNames := make(map[string]bool, len(opts.SkipNames))
	for _, name := range opts.SkipNames {
		skipNames[name] = true
	}
	return &Walker{
		store:      st,
		logger:     logger,
		opts:       opts,
		extensions: extensions,
		skipNames:  skipNames,
	}
}

// List walks the tree under root and returns every matching file, depth
// first with children in listing order. A subfolder that fails to list is
// logged and skipped; the rest of the walk continues. A failure to list the
// root itself is an error.
func (w *Walker) List(ctx context.Context, root string) ([]types.RemoteFile, error) {
	listing, err := w.store.ListFolder(ctx, root)
	if err != nil {
		return nil, err
	}

	var files []types.RemoteFile
	files = w.collect(files, listing.Files)

	// Explicit work stack instead of recursion; pushing subfolders in
	// reverse keeps children in listing order when popped.
	var stack []store.ItemInfo
	stack = w.push(stack, listing.Folders)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		folder := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		listing, err := w.store.ListFolder(ctx, folder.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.logger.Warn("Failed to list folder, skipping subtree",
				logging.F("path", folder.Path),
				logging.F("error", err.Error()))
			continue
		}

		files = w.collect(files, listing.Files)
		stack = w.push(stack, listing.Folders)
	}

	return files, nil
}

func (w *Walker) collect(files []types.RemoteFile, items []store.ItemInfo) []types.RemoteFile {
	for _, item := range items {
		ext := strings.ToLower(path.Ext(item.Name))
		if !w.extensions[ext] {
			continue
		}
		files = append(files, types.RemoteFile{
			Path: item.Path,
			Name: item.Name,
			Ext:  ext,
		})
	}
	return files
}

func (w *Walker) push(stack []store.ItemInfo, folders []store.ItemInfo) []store.ItemInfo {
	for i := len(folders) - 1; i >= 0; i-- {
		folder := folders[i]
		if w.skip(folder.Name) {
			w.logger.Debug("Skipping reserved folder", logging.F("path", folder.Path))
			continue
		}
		stack = append(stack, folder)
	}
	return stack
}

func (w *Walker) skip(name string) bool {
	if w.opts.SkipPrefix != "" && strings.HasPrefix(name, w.opts.SkipPrefix) {
		return true
	}
	return w.skipNames[name]
}

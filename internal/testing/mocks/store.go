// Package mocks provides test doubles for the remote document store.
package mocks

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/utils"
)

// FakeStore is an in-memory store.Store. Tests register folders and files
// by path; listings preserve registration order. Per-method Func overrides
// take precedence over the registered tree, so failure cases can be
// injected without rebuilding it.
type FakeStore struct {
	mu sync.Mutex

	name     string
	known    map[string]bool
	folders  map[string][]store.ItemInfo
	files    map[string][]store.ItemInfo
	content  map[string][]byte
	modified map[string]time.Time

	ListFolderFunc      func(ctx context.Context, folderPath string) (*store.Listing, error)
	ReadFileFunc        func(ctx context.Context, filePath string) ([]byte, error)
	GetLastModifiedFunc func(ctx context.Context, filePath string) (time.Time, error)
	VerifyFunc          func(ctx context.Context) error

	ListFolderCalls      int
	ReadFileCalls        int
	GetLastModifiedCalls int
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		name:     "fake",
		known:    make(map[string]bool),
		folders:  make(map[string][]store.ItemInfo),
		files:    make(map[string][]store.ItemInfo),
		content:  make(map[string][]byte),
		modified: make(map[string]time.Time),
	}
}

func (s *FakeStore) Name() string {
	return s.name
}

// AddFolder registers an empty folder, creating missing ancestors.
func (s *FakeStore) AddFolder(folderPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureFolder(folderPath)
}

// AddFile registers a file with its content and last-modified time,
// creating missing ancestor folders.
func (s *FakeStore) AddFile(filePath string, content []byte, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := parentOf(filePath)
	s.ensureFolder(dir)

	if _, exists := s.content[filePath]; !exists {
		s.files[dir] = append(s.files[dir], store.ItemInfo{
			Name:     path.Base(filePath),
			Path:     filePath,
			Modified: modified,
			Size:     int64(len(content)),
		})
	}
	s.content[filePath] = content
	s.modified[filePath] = modified
}

// SetModified bumps the last-modified time of a registered file.
func (s *FakeStore) SetModified(filePath string, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modified[filePath] = modified
	dir := parentOf(filePath)
	for i, item := range s.files[dir] {
		if item.Path == filePath {
			s.files[dir][i].Modified = modified
		}
	}
}

// SetContent replaces the content of a registered file.
func (s *FakeStore) SetContent(filePath string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[filePath] = content
}

func (s *FakeStore) ListFolder(ctx context.Context, folderPath string) (*store.Listing, error) {
	s.mu.Lock()
	s.ListFolderCalls++
	fn := s.ListFolderFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, folderPath)
	}
	return s.RegisteredListing(folderPath)
}

// RegisteredListing returns the registered children of a folder, bypassing
// any ListFolderFunc override. Overrides delegate here for paths they do
// not intercept.
func (s *FakeStore) RegisteredListing(folderPath string) (*store.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	folderPath = normalize(folderPath)
	if !s.known[folderPath] {
		return nil, &store.StoreError{
			Backend: s.name,
			Op:      "list",
			Path:    folderPath,
			Code:    utils.ErrCodeFileNotFound,
			Message: "folder not found",
		}
	}
	listing := &store.Listing{
		Files:   append([]store.ItemInfo{}, s.files[folderPath]...),
		Folders: append([]store.ItemInfo{}, s.folders[folderPath]...),
	}
	return listing, nil
}

// RegisteredContent returns the registered bytes of a file, bypassing any
// ReadFileFunc override. Overrides delegate here for paths they do not
// intercept.
func (s *FakeStore) RegisteredContent(filePath string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.content[filePath]
	if !ok {
		return nil, &store.StoreError{
			Backend: s.name,
			Op:      "read",
			Path:    filePath,
			Code:    utils.ErrCodeFileNotFound,
			Message: "file not found",
		}
	}
	return append([]byte{}, content...), nil
}

func (s *FakeStore) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	s.mu.Lock()
	s.ReadFileCalls++
	fn := s.ReadFileFunc
	content, ok := s.content[filePath]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, filePath)
	}
	if !ok {
		return nil, &store.StoreError{
			Backend: s.name,
			Op:      "read",
			Path:    filePath,
			Code:    utils.ErrCodeFileNotFound,
			Message: "file not found",
		}
	}
	return append([]byte{}, content...), nil
}

func (s *FakeStore) GetLastModified(ctx context.Context, filePath string) (time.Time, error) {
	s.mu.Lock()
	s.GetLastModifiedCalls++
	fn := s.GetLastModifiedFunc
	modified, ok := s.modified[filePath]
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, filePath)
	}
	if !ok {
		return time.Time{}, &store.StoreError{
			Backend: s.name,
			Op:      "modified",
			Path:    filePath,
			Code:    utils.ErrCodeFileNotFound,
			Message: "file not found",
		}
	}
	return modified, nil
}

func (s *FakeStore) Verify(ctx context.Context) error {
	if s.VerifyFunc != nil {
		return s.VerifyFunc(ctx)
	}
	return nil
}

func (s *FakeStore) ensureFolder(folderPath string) {
	folderPath = normalize(folderPath)
	if s.known[folderPath] {
		return
	}
	s.known[folderPath] = true
	if folderPath == "" {
		return
	}
	parent := parentOf(folderPath)
	s.ensureFolder(parent)
	s.folders[parent] = append(s.folders[parent], store.ItemInfo{
		Name: path.Base(folderPath),
		Path: folderPath,
	})
}

func parentOf(p string) string {
	return normalize(path.Dir(p))
}

func normalize(p string) string {
	if p == "." || p == "/" {
		return ""
	}
	return p
}

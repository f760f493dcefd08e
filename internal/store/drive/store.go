// Package drive implements store.Store over the Google Drive v3 API. Drive
// addresses content by ID, so the store keeps a path-to-ID cache fed by
// folder listings and resolves cold paths segment by segment.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/utils"
)

const backendName = "drive"

const listPageSize = 1000

// Options configures a Drive store.
type Options struct {
	// Service is the authenticated Drive service.
	Service *drive.Service
	// RootFolderID anchors the walk; "" means the My Drive root.
	RootFolderID string

	Retry  store.RetryPolicy
	Logger logging.Logger
}

// Store walks a Drive folder tree addressed by slash paths relative to the
// configured root folder.
type Store struct {
	svc    *drive.Service
	rootID string
	retry  store.RetryPolicy
	logger logging.Logger

	mu        sync.Mutex
	folderIDs map[string]string
	fileMeta  map[string]fileMeta
}

type fileMeta struct {
	id       string
	modified time.Time
	size     int64
}

// New builds a Store from options.
func New(opts Options) (*Store, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("drive: service is required")
	}

	rootID := opts.RootFolderID
	if rootID == "" {
		rootID = "root"
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = store.DefaultRetryPolicy()
	}

	return &Store{
		svc:       opts.Service,
		rootID:    rootID,
		retry:     retry,
		logger:    logger,
		folderIDs: map[string]string{"/": rootID},
		fileMeta:  map[string]fileMeta{},
	}, nil
}

// NewService builds an authenticated read-only Drive service from a
// service-account key file.
func NewService(ctx context.Context, credentialsFile string, transport http.RoundTripper) (*drive.Service, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	}
	if transport != nil {
		opts = append(opts, option.WithHTTPClient(&http.Client{Transport: transport}))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: building service: %w", err)
	}
	return svc, nil
}

// Name implements store.Store.
func (s *Store) Name() string { return backendName }

// ListFolder implements store.Store. Child paths are the folder path plus
// the child name; the backing Drive IDs are cached for later reads.
func (s *Store) ListFolder(ctx context.Context, folderPath string) (*store.Listing, error) {
	folderPath = normalizePath(folderPath)

	folderID, err := s.resolveFolder(ctx, folderPath)
	if err != nil {
		return nil, err
	}

	children, err := s.listChildren(ctx, folderID)
	if err != nil {
		return nil, err
	}

	listing := &store.Listing{}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, child := range children {
		childPath := joinPath(folderPath, child.Name)
		if child.MimeType == utils.MimeTypeFolder {
			s.folderIDs[childPath] = child.Id
			listing.Folders = append(listing.Folders, store.ItemInfo{
				Name: child.Name,
				Path: childPath,
			})
			continue
		}

		modified := parseTime(child.ModifiedTime)
		s.fileMeta[childPath] = fileMeta{id: child.Id, modified: modified, size: child.Size}
		listing.Files = append(listing.Files, store.ItemInfo{
			Name:     child.Name,
			Path:     childPath,
			Modified: modified,
			Size:     child.Size,
		})
	}
	return listing, nil
}

// ReadFile implements store.Store.
func (s *Store) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	filePath = normalizePath(filePath)

	fileID, err := s.resolveFile(ctx, filePath)
	if err != nil {
		return nil, err
	}

	return store.ExecuteWithRetry(ctx, s.retry, s.logger, "read", func() ([]byte, error) {
		resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, classifyDriveError("read", filePath, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, store.WrapTransportError(backendName, "read", filePath, err)
		}
		return data, nil
	})
}

// GetLastModified implements store.Store. Listing metadata is served from
// cache; cold paths fall back to a fields-limited Files.Get.
func (s *Store) GetLastModified(ctx context.Context, filePath string) (time.Time, error) {
	filePath = normalizePath(filePath)

	s.mu.Lock()
	meta, ok := s.fileMeta[filePath]
	s.mu.Unlock()
	if ok && !meta.modified.IsZero() {
		return meta.modified, nil
	}

	fileID, err := s.resolveFile(ctx, filePath)
	if err != nil {
		return time.Time{}, err
	}

	return store.ExecuteWithRetry(ctx, s.retry, s.logger, "stat", func() (time.Time, error) {
		f, err := s.svc.Files.Get(fileID).
			SupportsAllDrives(true).
			Fields("modifiedTime").
			Context(ctx).
			Do()
		if err != nil {
			return time.Time{}, classifyDriveError("stat", filePath, err)
		}

		modified := parseTime(f.ModifiedTime)
		if modified.IsZero() {
			return time.Time{}, &store.StoreError{
				Backend: backendName,
				Op:      "stat",
				Path:    filePath,
				Code:    utils.ErrCodeDecodeError,
				Message: fmt.Sprintf("unparseable modifiedTime %q", f.ModifiedTime),
			}
		}

		s.mu.Lock()
		meta := s.fileMeta[filePath]
		meta.modified = modified
		s.fileMeta[filePath] = meta
		s.mu.Unlock()

		return modified, nil
	})
}

// listChildren pages through the direct children of a folder.
func (s *Store) listChildren(ctx context.Context, parentID string) ([]*drive.File, error) {
	query := "'" + parentID + "' in parents and trashed = false"

	var results []*drive.File
	pageToken := ""
	for {
		list, err := store.ExecuteWithRetry(ctx, s.retry, s.logger, "list", func() (*drive.FileList, error) {
			call := s.svc.Files.List().
				Q(query).
				PageSize(listPageSize).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Fields("nextPageToken,files(id,name,mimeType,size,modifiedTime)").
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			list, err := call.Do()
			if err != nil {
				return nil, classifyDriveError("list", parentID, err)
			}
			return list, nil
		})
		if err != nil {
			return nil, err
		}

		results = append(results, list.Files...)
		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}
	return results, nil
}

// resolveFolder returns the Drive ID of the folder at path, resolving and
// caching any missing ancestors.
func (s *Store) resolveFolder(ctx context.Context, folderPath string) (string, error) {
	s.mu.Lock()
	id, ok := s.folderIDs[folderPath]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	parent, name := path.Split(folderPath)
	parentID, err := s.resolveFolder(ctx, normalizePath(parent))
	if err != nil {
		return "", err
	}

	id, err = s.lookupChild(ctx, parentID, name, folderPath, true)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.folderIDs[folderPath] = id
	s.mu.Unlock()
	return id, nil
}

// resolveFile returns the Drive ID of the file at path.
func (s *Store) resolveFile(ctx context.Context, filePath string) (string, error) {
	s.mu.Lock()
	meta, ok := s.fileMeta[filePath]
	s.mu.Unlock()
	if ok {
		return meta.id, nil
	}

	parent, name := path.Split(filePath)
	parentID, err := s.resolveFolder(ctx, normalizePath(parent))
	if err != nil {
		return "", err
	}

	id, err := s.lookupChild(ctx, parentID, name, filePath, false)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.fileMeta[filePath] = fileMeta{id: id}
	s.mu.Unlock()
	return id, nil
}

// lookupChild finds one child by name under a parent folder.
func (s *Store) lookupChild(ctx context.Context, parentID, name, fullPath string, wantFolder bool) (string, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false",
		parentID, strings.ReplaceAll(name, "'", `\'`))
	if wantFolder {
		query += " and mimeType = '" + utils.MimeTypeFolder + "'"
	}

	list, err := store.ExecuteWithRetry(ctx, s.retry, s.logger, "resolve", func() (*drive.FileList, error) {
		list, err := s.svc.Files.List().
			Q(query).
			PageSize(2).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Fields("files(id,name,mimeType,modifiedTime,size)").
			Context(ctx).
			Do()
		if err != nil {
			return nil, classifyDriveError("resolve", fullPath, err)
		}
		return list, nil
	})
	if err != nil {
		return "", err
	}

	if len(list.Files) == 0 {
		return "", &store.StoreError{
			Backend: backendName,
			Op:      "resolve",
			Path:    fullPath,
			Code:    utils.ErrCodeFileNotFound,
			Message: fmt.Sprintf("no item named %q", name),
		}
	}
	if len(list.Files) > 1 {
		s.logger.Warn("multiple items share a name, using the first",
			logging.F("path", fullPath),
			logging.F("count", len(list.Files)),
		)
	}
	return list.Files[0].Id, nil
}

// classifyDriveError maps a googleapi error onto the store error taxonomy.
func classifyDriveError(op, path string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return store.ClassifyHTTPError(backendName, op, path, gerr.Code, gerr.Header.Get("Retry-After"), gerr.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return store.WrapTransportError(backendName, op, path, err)
}

func normalizePath(p string) string {
	p = path.Clean("/" + strings.Trim(p, "/"))
	return p
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

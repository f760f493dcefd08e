// Package sharepoint implements store.Store over the SharePoint REST API
// using Azure AD client-credential authentication.
package sharepoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/utils"
)

const backendName = "sharepoint"

// maxErrorBodyBytes bounds how much of an error response body is read for
// the error message.
const maxErrorBodyBytes = 4 * 1024

// Options configures a SharePoint client.
type Options struct {
	// SiteURL is the full site URL, e.g. https://contoso.sharepoint.com/sites/lab
	SiteURL      string
	TenantID     string
	ClientID     string
	ClientSecret string

	Timeout time.Duration
	Retry   store.RetryPolicy
	Logger  logging.Logger

	// Transport, when set, wraps outgoing requests (wire-level debug).
	Transport http.RoundTripper

	// HTTPClient overrides the OAuth-authenticated client entirely.
	// Intended for tests against a local fake.
	HTTPClient *http.Client
}

// Client talks to one SharePoint site.
type Client struct {
	siteURL string
	http    *http.Client
	retry   store.RetryPolicy
	logger  logging.Logger
}

// New builds a client for opts.SiteURL. Unless opts.HTTPClient is set, an
// OAuth2 client-credential token source against the site's tenant backs
// every request.
func New(ctx context.Context, opts Options) (*Client, error) {
	siteURL := strings.TrimRight(opts.SiteURL, "/")
	if siteURL == "" {
		return nil, fmt.Errorf("sharepoint: site URL is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.TenantID == "" || opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, fmt.Errorf("sharepoint: tenant ID, client ID and client secret are required")
		}

		parsed, err := url.Parse(siteURL)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("sharepoint: invalid site URL %q", opts.SiteURL)
		}

		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", opts.TenantID),
			Scopes:       []string{fmt.Sprintf("https://%s/.default", parsed.Host)},
			AuthStyle:    oauth2.AuthStyleInParams,
		}

		base := &http.Client{Timeout: opts.Timeout}
		if opts.Transport != nil {
			base.Transport = opts.Transport
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

		httpClient = cc.Client(ctx)
		httpClient.Timeout = opts.Timeout
	}

	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = store.DefaultRetryPolicy()
	}

	return &Client{
		siteURL: siteURL,
		http:    httpClient,
		retry:   retry,
		logger:  logger,
	}, nil
}

// Name implements store.Store.
func (c *Client) Name() string { return backendName }

// Verify checks connectivity and credentials with a cheap site read.
func (c *Client) Verify(ctx context.Context) error {
	type webInfo struct {
		Title string `json:"Title"`
	}

	info, err := store.ExecuteWithRetry(ctx, c.retry, c.logger, "verify", func() (*webInfo, error) {
		var out webInfo
		if err := c.getJSON(ctx, c.apiURL("?$select=Title"), "verify", "", &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("connected to SharePoint site", logging.F("title", info.Title))
	return nil
}

// folderItem and fileItem mirror the odata=nometadata listing payloads.
type folderItem struct {
	Name              string `json:"Name"`
	ServerRelativeUrl string `json:"ServerRelativeUrl"`
	ItemCount         int    `json:"ItemCount"`
}

type fileItem struct {
	Name              string      `json:"Name"`
	ServerRelativeUrl string      `json:"ServerRelativeUrl"`
	TimeLastModified  string      `json:"TimeLastModified"`
	Length            json.Number `json:"Length"`
}

type collection[T any] struct {
	Value []T `json:"value"`
}

// ListFolder implements store.Store. The path is server-relative, e.g.
// "/Shared Documents/Lab Results".
func (c *Client) ListFolder(ctx context.Context, path string) (*store.Listing, error) {
	return store.ExecuteWithRetry(ctx, c.retry, c.logger, "list", func() (*store.Listing, error) {
		filesURL := c.apiURL("/GetFolderByServerRelativeUrl('%s')/Files?$select=Name,ServerRelativeUrl,TimeLastModified,Length", escapePath(path))
		var files collection[fileItem]
		if err := c.getJSON(ctx, filesURL, "list", path, &files); err != nil {
			return nil, err
		}

		foldersURL := c.apiURL("/GetFolderByServerRelativeUrl('%s')/Folders?$select=Name,ServerRelativeUrl,ItemCount", escapePath(path))
		var folders collection[folderItem]
		if err := c.getJSON(ctx, foldersURL, "list", path, &folders); err != nil {
			return nil, err
		}

		listing := &store.Listing{
			Files:   make([]store.ItemInfo, 0, len(files.Value)),
			Folders: make([]store.ItemInfo, 0, len(folders.Value)),
		}
		for _, f := range files.Value {
			size, _ := f.Length.Int64()
			listing.Files = append(listing.Files, store.ItemInfo{
				Name:     f.Name,
				Path:     f.ServerRelativeUrl,
				Modified: parseTime(f.TimeLastModified),
				Size:     size,
			})
		}
		for _, f := range folders.Value {
			listing.Folders = append(listing.Folders, store.ItemInfo{
				Name: f.Name,
				Path: f.ServerRelativeUrl,
			})
		}
		return listing, nil
	})
}

// ReadFile implements store.Store.
func (c *Client) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return store.ExecuteWithRetry(ctx, c.retry, c.logger, "read", func() ([]byte, error) {
		fileURL := c.apiURL("/GetFileByServerRelativeUrl('%s')/$value", escapePath(path))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, fmt.Errorf("sharepoint: building request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, store.WrapTransportError(backendName, "read", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, c.classifyResponse(resp, "read", path)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, store.WrapTransportError(backendName, "read", path, err)
		}
		return data, nil
	})
}

// GetLastModified implements store.Store.
func (c *Client) GetLastModified(ctx context.Context, path string) (time.Time, error) {
	return store.ExecuteWithRetry(ctx, c.retry, c.logger, "stat", func() (time.Time, error) {
		statURL := c.apiURL("/GetFileByServerRelativeUrl('%s')?$select=TimeLastModified", escapePath(path))

		var out struct {
			TimeLastModified string `json:"TimeLastModified"`
		}
		if err := c.getJSON(ctx, statURL, "stat", path, &out); err != nil {
			return time.Time{}, err
		}

		t := parseTime(out.TimeLastModified)
		if t.IsZero() {
			return time.Time{}, &store.StoreError{
				Backend: backendName,
				Op:      "stat",
				Path:    path,
				Code:    utils.ErrCodeDecodeError,
				Message: fmt.Sprintf("unparseable TimeLastModified %q", out.TimeLastModified),
			}
		}
		return t, nil
	})
}

// apiURL joins the site's /_api/web endpoint with a formatted suffix.
func (c *Client) apiURL(format string, args ...interface{}) string {
	return c.siteURL + "/_api/web" + fmt.Sprintf(format, args...)
}

// getJSON performs a GET with the nometadata accept header and decodes the
// JSON response into out.
func (c *Client) getJSON(ctx context.Context, rawURL, op, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("sharepoint: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json;odata=nometadata")

	resp, err := c.http.Do(req)
	if err != nil {
		return store.WrapTransportError(backendName, op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.classifyResponse(resp, op, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &store.StoreError{
			Backend: backendName,
			Op:      op,
			Path:    path,
			Code:    utils.ErrCodeDecodeError,
			Message: fmt.Sprintf("decoding response: %v", err),
			Err:     err,
		}
	}
	return nil
}

// classifyResponse turns a non-200 response into a StoreError, pulling the
// message out of the odata error envelope when present.
func (c *Client) classifyResponse(resp *http.Response, op, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return store.ClassifyHTTPError(
		backendName, op, path,
		resp.StatusCode,
		resp.Header.Get("Retry-After"),
		errorMessage(body),
	)
}

// errorMessage extracts a human-readable message from a SharePoint error
// payload; both the odata and the plain error envelopes are understood.
func errorMessage(body []byte) string {
	var odata struct {
		Error struct {
			Message struct {
				Value string `json:"value"`
			} `json:"message"`
		} `json:"odata.error"`
	}
	if err := json.Unmarshal(body, &odata); err == nil && odata.Error.Message.Value != "" {
		return odata.Error.Message.Value
	}

	var plain struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &plain); err == nil {
		if plain.Error.Message != "" {
			return plain.Error.Message
		}
		if plain.ErrorDescription != "" {
			return plain.ErrorDescription
		}
	}

	return strings.TrimSpace(string(body))
}

// escapePath prepares a server-relative path for embedding inside the
// GetFolderByServerRelativeUrl('...') form: single quotes doubled per the
// OData literal rules, then each segment URL-escaped with "/" kept literal.
func escapePath(path string) string {
	segments := strings.Split(strings.ReplaceAll(path, "'", "''"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
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

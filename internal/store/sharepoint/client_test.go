package sharepoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), Options{
		SiteURL:    srv.URL,
		HTTPClient: srv.Client(),
		Retry:      store.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
		Logger:     logging.NewNoOpLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, srv
}

// relativeURL extracts the path inside GetFolderByServerRelativeUrl('...')
// or GetFileByServerRelativeUrl('...').
func relativeURL(path string) string {
	start := strings.Index(path, "('")
	end := strings.LastIndex(path, "')")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return strings.ReplaceAll(path[start+2:end], "''", "'")
}

func TestListFolder(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/json;odata=nometadata" {
			t.Errorf("Unexpected Accept header: %q", got)
		}
		if relativeURL(r.URL.Path) != "/Shared Documents/Lab Results" {
			t.Errorf("Unexpected folder path: %q", relativeURL(r.URL.Path))
		}

		switch {
		case strings.HasSuffix(r.URL.Path, "/Files"):
			w.Write([]byte(`{"value":[
				{"Name":"run1.xlsx","ServerRelativeUrl":"/Shared Documents/Lab Results/run1.xlsx","TimeLastModified":"2024-01-01T00:00:00Z","Length":2048},
				{"Name":"notes.txt","ServerRelativeUrl":"/Shared Documents/Lab Results/notes.txt","TimeLastModified":"2024-01-02T00:00:00Z","Length":10}
			]}`))
		case strings.HasSuffix(r.URL.Path, "/Folders"):
			w.Write([]byte(`{"value":[
				{"Name":"2024","ServerRelativeUrl":"/Shared Documents/Lab Results/2024","ItemCount":3},
				{"Name":"Forms","ServerRelativeUrl":"/Shared Documents/Lab Results/Forms","ItemCount":0}
			]}`))
		default:
			t.Errorf("Unexpected request path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client, _ := newTestClient(t, handler)

	listing, err := client.ListFolder(context.Background(), "/Shared Documents/Lab Results")
	if err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}

	if len(listing.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(listing.Files))
	}
	if listing.Files[0].Name != "run1.xlsx" {
		t.Errorf("Expected first file run1.xlsx, got %s", listing.Files[0].Name)
	}
	if listing.Files[0].Path != "/Shared Documents/Lab Results/run1.xlsx" {
		t.Errorf("Unexpected file path: %s", listing.Files[0].Path)
	}
	if listing.Files[0].Size != 2048 {
		t.Errorf("Expected size 2048, got %d", listing.Files[0].Size)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !listing.Files[0].Modified.Equal(want) {
		t.Errorf("Expected modified %v, got %v", want, listing.Files[0].Modified)
	}

	if len(listing.Folders) != 2 {
		t.Fatalf("Expected 2 folders, got %d", len(listing.Folders))
	}
	if listing.Folders[1].Name != "Forms" {
		t.Errorf("Expected second folder Forms, got %s", listing.Folders[1].Name)
	}
}

func TestListFolder_QuotedPath(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = relativeURL(r.URL.Path)
		w.Write([]byte(`{"value":[]}`))
	})

	client, _ := newTestClient(t, handler)

	if _, err := client.ListFolder(context.Background(), "/Shared Documents/O'Brien Lab"); err != nil {
		t.Fatalf("ListFolder() error = %v", err)
	}
	if seen != "/Shared Documents/O'Brien Lab" {
		t.Errorf("Expected quoted path to round-trip, got %q", seen)
	}
}

func TestReadFile(t *testing.T) {
	content := []byte("workbook-bytes")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/$value") {
			t.Errorf("Expected $value download, got %s", r.URL.Path)
		}
		if relativeURL(r.URL.Path) != "/Shared Documents/run1.xlsx" {
			t.Errorf("Unexpected file path: %q", relativeURL(r.URL.Path))
		}
		w.Write(content)
	})

	client, _ := newTestClient(t, handler)

	data, err := client.ReadFile(context.Background(), "/Shared Documents/run1.xlsx")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("Expected %q, got %q", content, data)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"odata.error":{"message":{"value":"File Not Found."}}}`))
	})

	client, _ := newTestClient(t, handler)

	_, err := client.ReadFile(context.Background(), "/Shared Documents/gone.xlsx")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !store.IsNotFound(err) {
		t.Errorf("Expected not-found classification, got %v", err)
	}
	se, ok := store.AsStoreError(err)
	if !ok {
		t.Fatalf("Expected StoreError, got %T", err)
	}
	if se.Message != "File Not Found." {
		t.Errorf("Expected odata error message, got %q", se.Message)
	}
}

func TestGetLastModified(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("$select"); got != "TimeLastModified" {
			t.Errorf("Expected $select=TimeLastModified, got %q", got)
		}
		w.Write([]byte(`{"TimeLastModified":"2024-03-15T08:30:00Z"}`))
	})

	client, _ := newTestClient(t, handler)

	modified, err := client.GetLastModified(context.Background(), "/Shared Documents/run1.xlsx")
	if err != nil {
		t.Fatalf("GetLastModified() error = %v", err)
	}
	want := time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC)
	if !modified.Equal(want) {
		t.Errorf("Expected %v, got %v", want, modified)
	}
}

func TestGetLastModified_Unparseable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"TimeLastModified":"not-a-time"}`))
	})

	client, _ := newTestClient(t, handler)

	_, err := client.GetLastModified(context.Background(), "/Shared Documents/run1.xlsx")
	if err == nil {
		t.Fatal("Expected error for unparseable timestamp, got nil")
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"TimeLastModified":"2024-03-15T08:30:00Z"}`))
	})

	client, _ := newTestClient(t, handler)

	if _, err := client.GetLastModified(context.Background(), "/Shared Documents/run1.xlsx"); err != nil {
		t.Fatalf("GetLastModified() error = %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestDoesNotRetryAuthFailures(t *testing.T) {
	attempts := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	client, _ := newTestClient(t, handler)

	_, err := client.ReadFile(context.Background(), "/Shared Documents/run1.xlsx")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for auth failure, got %d", attempts)
	}
}

func TestVerify(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_api/web" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"Title":"Lab Site"}`))
	})

	client, _ := newTestClient(t, handler)

	if err := client.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestNew_RequiresCredentialsWithoutOverride(t *testing.T) {
	_, err := New(context.Background(), Options{SiteURL: "https://contoso.sharepoint.com/sites/lab"})
	if err == nil {
		t.Fatal("Expected error when credentials are missing")
	}
}

func TestNew_RequiresSiteURL(t *testing.T) {
	_, err := New(context.Background(), Options{HTTPClient: http.DefaultClient})
	if err == nil {
		t.Fatal("Expected error when site URL is missing")
	}
}

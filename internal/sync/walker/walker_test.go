package walker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/store"
	"github.com/dittorahmat/labsync/internal/testing/mocks"
)

func defaultOptions() Options {
	return Options{
		SkipPrefix: "_",
		SkipNames:  []string{"Forms"},
		Extensions: []string{".xlsx", ".xls"},
	}
}

func fixedTime() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func TestList_DepthFirstInListingOrder(t *testing.T) {
	fake := mocks.NewFakeStore()
	ts := fixedTime()
	fake.AddFile("lab/top.xlsx", []byte("x"), ts)
	fake.AddFile("lab/2023/q1/jan.xlsx", []byte("x"), ts)
	fake.AddFile("lab/2023/q1/feb.xlsx", []byte("x"), ts)
	fake.AddFile("lab/2023/dec.xlsx", []byte("x"), ts)
	fake.AddFile("lab/2024/mar.xlsx", []byte("x"), ts)

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "lab")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// Files of a folder come before its subfolders' files; siblings keep
	// listing order; a subtree is finished before the next sibling starts.
	want := []string{
		"lab/top.xlsx",
		"lab/2023/dec.xlsx",
		"lab/2023/q1/jan.xlsx",
		"lab/2023/q1/feb.xlsx",
		"lab/2024/mar.xlsx",
	}
	if len(files) != len(want) {
		t.Fatalf("Expected %d files, got %d: %v", len(want), len(files), files)
	}
	for i, path := range want {
		if files[i].Path != path {
			t.Errorf("files[%d].Path = %q, want %q", i, files[i].Path, path)
		}
	}
}

func TestList_DepthFirstVisitsSubtreeBeforeSibling(t *testing.T) {
	fake := mocks.NewFakeStore()
	ts := fixedTime()
	// Register folder a (with a nested file) before sibling b.
	fake.AddFile("root/a/deep/one.xlsx", []byte("x"), ts)
	fake.AddFile("root/b/two.xlsx", []byte("x"), ts)

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "root")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(files))
	}
	if files[0].Path != "root/a/deep/one.xlsx" || files[1].Path != "root/b/two.xlsx" {
		t.Errorf("Unexpected order: %v", files)
	}
}

func TestList_SkipsReservedFolders(t *testing.T) {
	tests := []struct {
		name   string
		folder string
	}{
		{name: "underscore prefix", folder: "lab/_templates"},
		{name: "forms folder", folder: "lab/Forms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := mocks.NewFakeStore()
			ts := fixedTime()
			fake.AddFile("lab/keep.xlsx", []byte("x"), ts)
			fake.AddFile(tt.folder+"/hidden.xlsx", []byte("x"), ts)

			w := New(fake, logging.NewNoOpLogger(), defaultOptions())
			files, err := w.List(context.Background(), "lab")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(files) != 1 {
				t.Fatalf("Expected 1 file, got %d: %v", len(files), files)
			}
			if files[0].Path != "lab/keep.xlsx" {
				t.Errorf("Unexpected file: %v", files[0])
			}
		})
	}
}

func TestList_DoesNotSkipFilesWithReservedPrefix(t *testing.T) {
	fake := mocks.NewFakeStore()
	fake.AddFile("lab/_draft.xlsx", []byte("x"), fixedTime())

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "lab")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Skip rules apply to folders only, got %d files", len(files))
	}
}

func TestList_FiltersByExtension(t *testing.T) {
	fake := mocks.NewFakeStore()
	ts := fixedTime()
	fake.AddFile("lab/a.xlsx", []byte("x"), ts)
	fake.AddFile("lab/b.XLSX", []byte("x"), ts)
	fake.AddFile("lab/c.xls", []byte("x"), ts)
	fake.AddFile("lab/d.csv", []byte("x"), ts)
	fake.AddFile("lab/e.pdf", []byte("x"), ts)
	fake.AddFile("lab/noext", []byte("x"), ts)

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "lab")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 spreadsheet files, got %d: %v", len(files), files)
	}
	if files[1].Name != "b.XLSX" || files[1].Ext != ".xlsx" {
		t.Errorf("Extension must be matched case-insensitively and stored lowercase: %+v", files[1])
	}
}

func TestList_FailedSubtreeContinues(t *testing.T) {
	fake := mocks.NewFakeStore()
	ts := fixedTime()
	fake.AddFile("lab/good/a.xlsx", []byte("x"), ts)
	fake.AddFile("lab/bad/b.xlsx", []byte("x"), ts)
	fake.AddFile("lab/tail/c.xlsx", []byte("x"), ts)

	fake.ListFolderFunc = func(_ context.Context, folderPath string) (*store.Listing, error) {
		if folderPath == "lab/bad" {
			return nil, errors.New("remote failure")
		}
		return fake.RegisteredListing(folderPath)
	}

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "lab")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files from surviving subtrees, got %d: %v", len(files), files)
	}
	if files[0].Path != "lab/good/a.xlsx" || files[1].Path != "lab/tail/c.xlsx" {
		t.Errorf("Unexpected files: %v", files)
	}
}

func TestList_RootFailureIsAnError(t *testing.T) {
	fake := mocks.NewFakeStore()

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	if _, err := w.List(context.Background(), "missing-root"); err == nil {
		t.Error("Expected error when the root folder cannot be listed")
	}
}

func TestList_CancelledContext(t *testing.T) {
	fake := mocks.NewFakeStore()
	ts := fixedTime()
	fake.AddFile("lab/a/one.xlsx", []byte("x"), ts)
	fake.AddFile("lab/b/two.xlsx", []byte("x"), ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	if _, err := w.List(ctx, "lab"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestList_EmptyRoot(t *testing.T) {
	fake := mocks.NewFakeStore()
	fake.AddFolder("lab")

	w := New(fake, logging.NewNoOpLogger(), defaultOptions())
	files, err := w.List(context.Background(), "lab")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected no files, got %d", len(files))
	}
}

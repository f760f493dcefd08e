package logging

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestFileLogger(t *testing.T, dir, name string, level LogLevel) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(dir, name)
	logger, err := NewFileLogger(LogConfig{Level: level, OutputFile: path})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	return logger, path
}

func TestMultiLogger_FansOut(t *testing.T) {
	tempDir := t.TempDir()
	first, firstPath := newTestFileLogger(t, tempDir, "a.log", DEBUG)
	second, secondPath := newTestFileLogger(t, tempDir, "b.log", DEBUG)

	multi := NewMultiLogger(first, second)
	multi.Info("fan out")
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, path := range []string{firstPath, secondPath} {
		lines := splitLogLines(t, path)
		if len(lines) != 1 {
			t.Errorf("Expected 1 line in %s, got %d", path, len(lines))
		}
	}
}

func TestMultiLogger_DropsNilLoggers(t *testing.T) {
	tempDir := t.TempDir()
	only, path := newTestFileLogger(t, tempDir, "only.log", DEBUG)

	multi := NewMultiLogger(nil, only, nil)
	multi.Warn("still delivered")
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := splitLogLines(t, path)
	if len(lines) != 1 {
		t.Errorf("Expected 1 line, got %d", len(lines))
	}
}

func TestMultiLogger_SetLevelPropagates(t *testing.T) {
	tempDir := t.TempDir()
	first, firstPath := newTestFileLogger(t, tempDir, "a.log", INFO)
	second, secondPath := newTestFileLogger(t, tempDir, "b.log", INFO)

	multi := NewMultiLogger(first, second)
	multi.Debug("dropped")
	multi.SetLevel(DEBUG)
	multi.Debug("kept")
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, path := range []string{firstPath, secondPath} {
		lines := splitLogLines(t, path)
		if len(lines) != 1 {
			t.Errorf("Expected 1 line in %s, got %d", path, len(lines))
		}
	}
}

func TestMultiLogger_WithTraceIDPropagates(t *testing.T) {
	tempDir := t.TempDir()
	first, firstPath := newTestFileLogger(t, tempDir, "a.log", INFO)
	second, secondPath := newTestFileLogger(t, tempDir, "b.log", INFO)

	multi := NewMultiLogger(first, second)
	traced := multi.WithTraceID("run-7")
	traced.Info("traced everywhere")
	if err := multi.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, path := range []string{firstPath, secondPath} {
		lines := splitLogLines(t, path)
		if len(lines) != 1 {
			t.Fatalf("Expected 1 line in %s, got %d", path, len(lines))
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if entry.TraceID != "run-7" {
			t.Errorf("Expected trace_id run-7 in %s, got %q", path, entry.TraceID)
		}
	}
}

package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileSink owns the file handle so that WithTraceID clones share one
// writer and one rotation sequence.
type fileSink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	size    int64
	maxSize int64
	redact  bool
	closed  bool
}

// FileLogger writes one JSON LogEntry per line and rotates the file when it
// grows past the configured maximum size.
type FileLogger struct {
	mu      sync.Mutex
	level   LogLevel
	traceID string
	sink    *fileSink
}

// NewFileLogger opens (or creates) config.OutputFile for appending.
func NewFileLogger(config LogConfig) (*FileLogger, error) {
	if config.OutputFile == "" {
		return nil, fmt.Errorf("file logger requires an output file path")
	}
	if dir := filepath.Dir(config.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(config.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxLogFileSize
	}
	return &FileLogger{
		level: config.Level,
		sink: &fileSink{
			path:    config.OutputFile,
			file:    f,
			size:    info.Size(),
			maxSize: maxSize,
			redact:  config.RedactSensitive,
		},
	}, nil
}

func (l *FileLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields) }
func (l *FileLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields) }
func (l *FileLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields) }
func (l *FileLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields) }

// WithTraceID returns a clone that shares the underlying file.
func (l *FileLogger) WithTraceID(traceID string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &FileLogger{level: l.level, traceID: traceID, sink: l.sink}
}

// WithContext binds the logger to the trace ID carried by ctx, if any.
func (l *FileLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

func (l *FileLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close flushes and closes the underlying file. Safe to call once across
// all clones.
func (l *FileLogger) Close() error {
	return l.sink.close()
}

func (l *FileLogger) log(level LogLevel, msg string, fields []Field) {
	l.mu.Lock()
	minLevel := l.level
	traceID := l.traceID
	l.mu.Unlock()
	if level < minLevel {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		TraceID:   traceID,
		Fields:    fieldsToMap(fields),
	}
	l.sink.write(entry)
}

func (s *fileSink) write(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.redact {
		entry.Message = redact(entry.Message)
		for k, v := range entry.Fields {
			if str, ok := v.(string); ok {
				entry.Fields[k] = redact(str)
			}
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	if s.size+int64(len(line)) > s.maxSize {
		s.rotate()
	}
	if n, err := s.file.Write(line); err == nil {
		s.size += int64(n)
	}
}

// rotate renames the active file with a timestamp suffix and opens a fresh
// one at the original path. Callers hold s.mu.
func (s *fileSink) rotate() {
	s.file.Close()
	rotated := fmt.Sprintf("%s.%s", s.path, time.Now().UTC().Format("20060102T150405.000000000"))
	os.Rename(s.path, rotated)
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		s.closed = true
		return
	}
	s.file = f
	s.size = 0
}

func (s *fileSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

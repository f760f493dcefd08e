package logging

import "context"

// NoOpLogger discards everything. Used when logging is disabled and as the
// default in tests.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger { return &NoOpLogger{} }

func (n *NoOpLogger) Debug(msg string, fields ...Field)      {}
func (n *NoOpLogger) Info(msg string, fields ...Field)       {}
func (n *NoOpLogger) Warn(msg string, fields ...Field)       {}
func (n *NoOpLogger) Error(msg string, fields ...Field)      {}
func (n *NoOpLogger) WithTraceID(traceID string) Logger      { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger { return n }
func (n *NoOpLogger) SetLevel(level LogLevel)                {}
func (n *NoOpLogger) Close() error                           { return nil }

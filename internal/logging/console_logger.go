package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// sensitivePatterns match credential material that must never reach a
// terminal or a shared log: OAuth bearer tokens, client secrets and
// keys passed as query parameters or JSON fields.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)(client_secret=)[^&\s]+`),
	regexp.MustCompile(`(?i)("(?:client_secret|access_token|refresh_token|password)"\s*:\s*")[^"]+(")`),
	regexp.MustCompile(`(?i)(authorization:\s*)\S+`),
}

// ConsoleLogger writes human-readable log lines to a terminal stream.
type ConsoleLogger struct {
	mu              sync.Mutex
	level           LogLevel
	out             io.Writer
	traceID         string
	enableColor     bool
	enableTimestamp bool
	redactSensitive bool
}

// NewConsoleLogger builds a console logger from config, writing to stderr.
func NewConsoleLogger(config LogConfig) *ConsoleLogger {
	return &ConsoleLogger{
		level:           config.Level,
		out:             os.Stderr,
		enableColor:     config.EnableColor,
		enableTimestamp: config.EnableTimestamp,
		redactSensitive: config.RedactSensitive,
	}
}

func (c *ConsoleLogger) Debug(msg string, fields ...Field) { c.log(DEBUG, msg, fields) }
func (c *ConsoleLogger) Info(msg string, fields ...Field)  { c.log(INFO, msg, fields) }
func (c *ConsoleLogger) Warn(msg string, fields ...Field)  { c.log(WARN, msg, fields) }
func (c *ConsoleLogger) Error(msg string, fields ...Field) { c.log(ERROR, msg, fields) }

// WithTraceID returns a copy of the logger bound to the trace ID.
func (c *ConsoleLogger) WithTraceID(traceID string) Logger {
	clone := c.snapshot()
	clone.traceID = traceID
	return clone
}

// WithContext binds the logger to the trace ID carried by ctx, if any.
func (c *ConsoleLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return c.WithTraceID(traceID)
	}
	return c
}

func (c *ConsoleLogger) SetLevel(level LogLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
}

// Close is a no-op for console output.
func (c *ConsoleLogger) Close() error { return nil }

func (c *ConsoleLogger) snapshot() *ConsoleLogger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &ConsoleLogger{
		level:           c.level,
		out:             c.out,
		traceID:         c.traceID,
		enableColor:     c.enableColor,
		enableTimestamp: c.enableTimestamp,
		redactSensitive: c.redactSensitive,
	}
}

func (c *ConsoleLogger) log(level LogLevel, msg string, fields []Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if level < c.level {
		return
	}

	var b strings.Builder
	if c.enableTimestamp {
		b.WriteString(c.colorize(colorGray, time.Now().UTC().Format("2006-01-02T15:04:05Z")))
		b.WriteByte(' ')
	}
	b.WriteString(c.colorize(levelColor(level), fmt.Sprintf("%-5s", level.String())))
	b.WriteByte(' ')
	if c.traceID != "" {
		b.WriteString(c.colorize(colorGray, "["+c.traceID+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		values := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			if _, seen := values[f.Key]; !seen {
				keys = append(keys, f.Key)
			}
			values[f.Key] = f.Value
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf(" %s=%v", c.colorize(colorGray, k), values[k]))
		}
	}

	line := b.String()
	if c.redactSensitive {
		line = redact(line)
	}
	fmt.Fprintln(c.out, line)
}

func (c *ConsoleLogger) colorize(color, s string) string {
	if !c.enableColor {
		return s
	}
	return color + s + colorReset
}

func levelColor(level LogLevel) string {
	switch level {
	case DEBUG:
		return colorGray
	case INFO:
		return colorBlue
	case WARN:
		return colorYellow
	case ERROR:
		return colorRed
	default:
		return colorReset
	}
}

func redact(s string) string {
	for _, p := range sensitivePatterns {
		s = p.ReplaceAllString(s, "${1}[REDACTED]${2}")
	}
	return s
}

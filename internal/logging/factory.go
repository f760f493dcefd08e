package logging

// DefaultMaxLogFileSize caps a log file at 100 MiB before rotation.
const DefaultMaxLogFileSize int64 = 100 * 1024 * 1024

// LogConfig selects which loggers the factory builds and how they behave.
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	EnableConsole   bool
	EnableDebug     bool
	RedactSensitive bool
	EnableColor     bool
	EnableTimestamp bool
	MaxFileSize     int64
}

// DefaultLogConfig returns the standard interactive configuration: INFO to
// the console with redaction on.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		EnableConsole:   true,
		RedactSensitive: true,
		EnableColor:     true,
		EnableTimestamp: true,
		MaxFileSize:     DefaultMaxLogFileSize,
	}
}

// NewLogger builds a logger per config: console, file, both, or neither.
func NewLogger(config LogConfig) (Logger, error) {
	var loggers []Logger
	if config.EnableConsole {
		loggers = append(loggers, NewConsoleLogger(config))
	}
	if config.OutputFile != "" {
		fl, err := NewFileLogger(config)
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fl)
	}

	switch len(loggers) {
	case 0:
		return NewNoOpLogger(), nil
	case 1:
		return loggers[0], nil
	default:
		return NewMultiLogger(loggers...), nil
	}
}

// NewDebugLoggerWithTransport builds a logger plus an HTTP transport that
// traces requests through it. The transport is nil unless EnableDebug is
// set, so callers can pass it straight to an http.Client.
func NewDebugLoggerWithTransport(config LogConfig) (Logger, *DebugTransport, error) {
	logger, err := NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	if !config.EnableDebug {
		return logger, nil, nil
	}
	logger.SetLevel(DEBUG)
	return logger, NewDebugTransport(logger, nil), nil
}

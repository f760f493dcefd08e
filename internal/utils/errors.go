package utils

import (
	"fmt"

	"github.com/dittorahmat/labsync/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthRequired = 10
	ExitAuthExpired  = 11
	ExitAuthInvalid  = 12
	// Remote store errors (20-29)
	ExitFileNotFound     = 20
	ExitPermissionDenied = 21
	ExitNetworkError     = 22
	ExitTimeout          = 23
	ExitRateLimited      = 24
	// Data errors (30-39)
	ExitDecodeError    = 30
	ExitSchemaMismatch = 31
	ExitLedgerCorrupt  = 32
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitInvalidConfig   = 41
	// Write errors (50-59)
	ExitFatalWrite = 50
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeAuthRequired     = "AUTH_REQUIRED"
	ErrCodeAuthExpired      = "AUTH_EXPIRED"
	ErrCodeAuthInvalid      = "AUTH_INVALID"
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeTransientRemote  = "TRANSIENT_REMOTE"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeDecodeError      = "DECODE_ERROR"
	ErrCodeSchemaMismatch   = "SCHEMA_MISMATCH"
	ErrCodeLedgerCorrupt    = "LEDGER_CORRUPT"
	ErrCodeFatalWrite       = "FATAL_WRITE"
	ErrCodeInvalidArgument  = "INVALID_ARGUMENT"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeCancelled        = "CANCELLED"
	ErrCodeUnknown          = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeAuthRequired:     ExitAuthRequired,
		ErrCodeAuthExpired:      ExitAuthExpired,
		ErrCodeAuthInvalid:      ExitAuthInvalid,
		ErrCodeFileNotFound:     ExitFileNotFound,
		ErrCodePermissionDenied: ExitPermissionDenied,
		ErrCodeTransientRemote:  ExitNetworkError,
		ErrCodeTimeout:          ExitTimeout,
		ErrCodeRateLimited:      ExitRateLimited,
		ErrCodeDecodeError:      ExitDecodeError,
		ErrCodeSchemaMismatch:   ExitSchemaMismatch,
		ErrCodeLedgerCorrupt:    ExitLedgerCorrupt,
		ErrCodeFatalWrite:       ExitFatalWrite,
		ErrCodeInvalidArgument:  ExitInvalidArgument,
		ErrCodeInvalidConfig:    ExitInvalidConfig,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

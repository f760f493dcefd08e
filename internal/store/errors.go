package store

import (
	"errors"
	"fmt"

	"github.com/dittorahmat/labsync/internal/utils"
)

// StoreError carries a classified remote-store failure: which backend and
// operation failed, the stable error code, and whether a retry can help.
type StoreError struct {
	Backend    string
	Op         string
	Path       string
	Code       string
	Message    string
	HTTPStatus int
	RetryAfter string
	Retryable  bool
	Err        error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s %s: %s: %s", e.Backend, e.Op, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %s", e.Backend, e.Op, e.Code, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// AsStoreError unwraps err to a *StoreError when possible.
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether a retry could succeed: rate limits and
// server-side failures qualify, everything else does not.
func IsRetryable(err error) bool {
	if se, ok := AsStoreError(err); ok {
		return se.Retryable
	}
	return false
}

// IsNotFound reports whether err is a classified not-found failure.
func IsNotFound(err error) bool {
	if se, ok := AsStoreError(err); ok {
		return se.Code == utils.ErrCodeFileNotFound
	}
	return false
}

// ClassifyHTTPError maps an HTTP failure status to a StoreError with a
// stable code. 429 and 5xx are retryable; auth and not-found are not.
func ClassifyHTTPError(backend, op, path string, status int, retryAfter, message string) *StoreError {
	var code string
	var retryable bool

	switch status {
	case 400:
		code = utils.ErrCodeInvalidArgument
	case 401:
		code = utils.ErrCodeAuthExpired
	case 403:
		code = utils.ErrCodePermissionDenied
	case 404:
		code = utils.ErrCodeFileNotFound
	case 408:
		code = utils.ErrCodeTimeout
		retryable = true
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeTransientRemote
		retryable = true
	default:
		code = utils.ErrCodeUnknown
		retryable = status >= 500
	}

	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}

	return &StoreError{
		Backend:    backend,
		Op:         op,
		Path:       path,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		RetryAfter: retryAfter,
		Retryable:  retryable,
	}
}

// WrapTransportError wraps a network-level failure (DNS, connect, TLS,
// timeouts below the HTTP layer) as a retryable transient error.
func WrapTransportError(backend, op, path string, err error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Op:        op,
		Path:      path,
		Code:      utils.ErrCodeTransientRemote,
		Message:   err.Error(),
		Retryable: true,
		Err:       err,
	}
}

// NewDecodeError marks a downloaded file whose bytes could not be parsed.
// Never retryable within a run; the file stays unrecorded and is picked up
// again on the next run.
func NewDecodeError(backend, path string, err error) *StoreError {
	return &StoreError{
		Backend: backend,
		Op:      "decode",
		Path:    path,
		Code:    utils.ErrCodeDecodeError,
		Message: err.Error(),
		Err:     err,
	}
}

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dittorahmat/labsync/internal/utils"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantCode      string
		wantRetryable bool
	}{
		{"bad request", 400, utils.ErrCodeInvalidArgument, false},
		{"unauthorized", 401, utils.ErrCodeAuthExpired, false},
		{"forbidden", 403, utils.ErrCodePermissionDenied, false},
		{"not found", 404, utils.ErrCodeFileNotFound, false},
		{"request timeout", 408, utils.ErrCodeTimeout, true},
		{"rate limited", 429, utils.ErrCodeRateLimited, true},
		{"server error", 500, utils.ErrCodeTransientRemote, true},
		{"bad gateway", 502, utils.ErrCodeTransientRemote, true},
		{"unavailable", 503, utils.ErrCodeTransientRemote, true},
		{"gateway timeout", 504, utils.ErrCodeTransientRemote, true},
		{"teapot", 418, utils.ErrCodeUnknown, false},
		{"unmapped 5xx", 599, utils.ErrCodeUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := ClassifyHTTPError("sharepoint", "list", "/lab/results", tt.status, "", "")
			if se.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, se.Code)
			}
			if se.Retryable != tt.wantRetryable {
				t.Errorf("Expected retryable=%v, got %v", tt.wantRetryable, se.Retryable)
			}
			if se.HTTPStatus != tt.status {
				t.Errorf("Expected HTTP status %d, got %d", tt.status, se.HTTPStatus)
			}
		})
	}
}

func TestClassifyHTTPError_DefaultMessage(t *testing.T) {
	se := ClassifyHTTPError("drive", "read", "/a.xlsx", 503, "", "")
	if se.Message != "HTTP 503" {
		t.Errorf("Expected default message 'HTTP 503', got %q", se.Message)
	}

	se = ClassifyHTTPError("drive", "read", "/a.xlsx", 503, "", "backend unavailable")
	if se.Message != "backend unavailable" {
		t.Errorf("Expected explicit message, got %q", se.Message)
	}
}

func TestStoreError_ErrorString(t *testing.T) {
	se := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "unavailable")
	want := "sharepoint: list /lab: TRANSIENT_REMOTE: unavailable"
	if se.Error() != want {
		t.Errorf("Expected %q, got %q", want, se.Error())
	}

	se.Path = ""
	want = "sharepoint: list: TRANSIENT_REMOTE: unavailable"
	if se.Error() != want {
		t.Errorf("Expected %q, got %q", want, se.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ClassifyHTTPError("sharepoint", "list", "", 503, "", "")) {
		t.Error("Expected 503 to be retryable")
	}
	if IsRetryable(ClassifyHTTPError("sharepoint", "list", "", 404, "", "")) {
		t.Error("Expected 404 to be non-retryable")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("Expected plain error to be non-retryable")
	}
	if IsRetryable(nil) {
		t.Error("Expected nil to be non-retryable")
	}
}

func TestIsRetryable_Wrapped(t *testing.T) {
	inner := ClassifyHTTPError("drive", "read", "/a.xlsx", 429, "", "")
	wrapped := fmt.Errorf("processing /a.xlsx: %w", inner)
	if !IsRetryable(wrapped) {
		t.Error("Expected wrapped retryable error to stay retryable")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ClassifyHTTPError("sharepoint", "stat", "/gone.xlsx", 404, "", "")) {
		t.Error("Expected 404 to report not found")
	}
	if IsNotFound(ClassifyHTTPError("sharepoint", "stat", "/x", 500, "", "")) {
		t.Error("Expected 500 to not report not found")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("Expected plain error to not report not found")
	}
}

func TestWrapTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	se := WrapTransportError("sharepoint", "list", "/lab", cause)

	if se.Code != utils.ErrCodeTransientRemote {
		t.Errorf("Expected TRANSIENT_REMOTE, got %s", se.Code)
	}
	if !se.Retryable {
		t.Error("Expected transport error to be retryable")
	}
	if !errors.Is(se, cause) {
		t.Error("Expected wrapped cause to be reachable via errors.Is")
	}
}

func TestNewDecodeError(t *testing.T) {
	cause := errors.New("zip: not a valid zip file")
	se := NewDecodeError("sharepoint", "/lab/corrupt.xlsx", cause)

	if se.Code != utils.ErrCodeDecodeError {
		t.Errorf("Expected DECODE_ERROR, got %s", se.Code)
	}
	if se.Retryable {
		t.Error("Expected decode error to be non-retryable")
	}
	if !errors.Is(se, cause) {
		t.Error("Expected wrapped cause to be reachable via errors.Is")
	}
}

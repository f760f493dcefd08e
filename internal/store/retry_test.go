package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dittorahmat/labsync/internal/logging"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond}
}

func TestExecuteWithRetry_SuccessFirstTry(t *testing.T) {
	calls := 0
	result, err := ExecuteWithRetry(context.Background(), fastPolicy(3), logging.NewNoOpLogger(), "list", func() (string, error) {
		calls++
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("ExecuteWithRetry() error = %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result 'ok', got %q", result)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestExecuteWithRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	notFound := ClassifyHTTPError("sharepoint", "read", "/gone.xlsx", 404, "", "")

	_, err := ExecuteWithRetry(context.Background(), fastPolicy(3), logging.NewNoOpLogger(), "read", func() ([]byte, error) {
		calls++
		return nil, notFound
	})

	if !errors.Is(err, notFound) {
		t.Fatalf("Expected the classified error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestExecuteWithRetry_RetryableEventuallySucceeds(t *testing.T) {
	calls := 0
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	result, err := ExecuteWithRetry(context.Background(), fastPolicy(3), logging.NewNoOpLogger(), "list", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, transient
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("ExecuteWithRetry() error = %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got %d", result)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetry_BudgetExhausted(t *testing.T) {
	calls := 0
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	_, err := ExecuteWithRetry(context.Background(), fastPolicy(2), logging.NewNoOpLogger(), "list", func() (int, error) {
		calls++
		return 0, transient
	})

	if !errors.Is(err, transient) {
		t.Fatalf("Expected the transient error after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected maxRetries+1 = 3 calls, got %d", calls)
	}
}

func TestExecuteWithRetry_ZeroRetries(t *testing.T) {
	calls := 0
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	_, err := ExecuteWithRetry(context.Background(), fastPolicy(0), logging.NewNoOpLogger(), "list", func() (int, error) {
		calls++
		return 0, transient
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("Expected exactly 1 call with zero retries, got %d", calls)
	}
}

func TestExecuteWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
	calls := 0

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = ExecuteWithRetry(ctx, policy, logging.NewNoOpLogger(), "list", func() (int, error) {
			calls++
			return 0, transient
		})
	}()

	// Give the first attempt time to fail and enter backoff, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ExecuteWithRetry did not return after cancellation")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before cancellation, got %d", calls)
	}
}

func TestCalculateBackoff_RespectsRetryAfter(t *testing.T) {
	limited := ClassifyHTTPError("sharepoint", "list", "/lab", 429, "2", "")

	delay := calculateBackoff(time.Second, 0, limited)
	if delay != 2*time.Second {
		t.Errorf("Expected 2s from Retry-After, got %v", delay)
	}
}

func TestCalculateBackoff_CapsRetryAfter(t *testing.T) {
	limited := ClassifyHTTPError("sharepoint", "list", "/lab", 429, "3600", "")

	delay := calculateBackoff(time.Second, 0, limited)
	if delay != 32*time.Second {
		t.Errorf("Expected cap of 32s, got %v", delay)
	}
}

func TestCalculateBackoff_ExponentialWithJitter(t *testing.T) {
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	for attempt := 0; attempt < 4; attempt++ {
		base := 100 * time.Millisecond
		expected := base * time.Duration(1<<attempt)

		delay := calculateBackoff(base, attempt, transient)

		min := expected - expected/4
		max := expected + expected/4
		if delay < min || delay > max {
			t.Errorf("Attempt %d: expected delay within [%v, %v], got %v", attempt, min, max, delay)
		}
	}
}

func TestCalculateBackoff_CapsExponential(t *testing.T) {
	transient := ClassifyHTTPError("sharepoint", "list", "/lab", 503, "", "")

	// 2^10 seconds would be far beyond the cap; jitter keeps the result
	// within ±25% of 32s.
	delay := calculateBackoff(time.Second, 10, transient)
	limit := 32 * time.Second
	if delay < limit-limit/4 || delay > limit+limit/4 {
		t.Errorf("Expected delay near the 32s cap, got %v", delay)
	}
}

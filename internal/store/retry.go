package store

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/dittorahmat/labsync/internal/logging"
	"github.com/dittorahmat/labsync/internal/utils"
)

// RetryPolicy bounds the retry loop around remote calls.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy mirrors the default config values.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: utils.DefaultMaxRetries,
		BaseDelay:  time.Duration(utils.DefaultRetryDelayMs) * time.Millisecond,
	}
}

// ExecuteWithRetry runs fn with exponential backoff until it succeeds, a
// non-retryable error surfaces, the retry budget runs out, or ctx is done.
func ExecuteWithRetry[T any](ctx context.Context, policy RetryPolicy, logger logging.Logger, op string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	logger.Debug("remote operation starting", logging.F("op", op))
	start := time.Now()

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			logger.Debug("remote operation completed",
				logging.F("op", op),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}

		if !IsRetryable(lastErr) {
			logger.Error("remote operation failed (non-retryable)",
				logging.F("op", op),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, lastErr
		}

		if attempt < policy.MaxRetries {
			delay := calculateBackoff(policy.BaseDelay, attempt, lastErr)
			logger.Warn("remote operation failed (retryable)",
				logging.F("op", op),
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	logger.Error("remote operation failed after max retries",
		logging.F("op", op),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", policy.MaxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, lastErr
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	maxDelay := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond

	// Honor a Retry-After header when the server sent one
	if se, ok := AsStoreError(err); ok && se.RetryAfter != "" {
		if seconds, parseErr := strconv.Atoi(se.RetryAfter); parseErr == nil {
			delay := time.Duration(seconds) * time.Second
			if delay > maxDelay {
				return maxDelay
			}
			return delay
		}
	}

	// Exponential backoff: base * 2^attempt
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add jitter (±25% of delay)
	jitterRange := delay / 4
	if jitterRange > 0 {
		jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		delay = delay + jitter
	}

	if delay < 0 {
		delay = baseDelay
	}

	return delay
}

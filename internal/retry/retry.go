// Package retry wraps fallible external calls with exponential backoff.
// Each external call (model invocation, mail delivery) is wrapped
// independently; retries never cross component boundaries.
package retry

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/mailmind/mailmind-backend/internal/errors"
)

// Config controls the retry policy for one wrapped operation.
type Config struct {
	// MaxAttempts is the total attempt budget, including the first call.
	MaxAttempts int

	// BaseDelay is the sleep before the second attempt; it doubles on
	// each subsequent attempt.
	BaseDelay time.Duration

	// RetryableStatus lists the status codes considered transient.
	RetryableStatus []int
}

// DefaultConfig returns the standard policy: 3 attempts, 1s base delay,
// retry on 429 and transient 5xx codes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		RetryableStatus: []int{429, 500, 502, 503, 504},
	}
}

// Do invokes op until it succeeds, the failure is non-retryable, or the
// attempt budget is exhausted. The final error is propagated unchanged.
// Timeouts are applied per attempt by op itself; a timed-out attempt is
// retryable but still counts against the budget.
func Do[T any](ctx context.Context, cfg Config, logger *slog.Logger, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts || !apperrors.IsRetryable(err, cfg.RetryableStatus) {
			break
		}

		delay := cfg.BaseDelay << (attempt - 1)
		if logger != nil {
			logger.Warn("retrying after transient failure",
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("delay", delay),
				slog.Int("status", apperrors.StatusOf(err)),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

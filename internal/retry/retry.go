// Package retry provides the bounded retry-with-delay wrapper used by every
// remote or external call in the pipeline. No operation retries forever.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimited marks an error as a rate-limit signal (HTTP 429 or
// equivalent). The delay before the next attempt escalates linearly
// instead of staying fixed.
type RateLimited struct {
	Err error
}

func (e *RateLimited) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimited) Unwrap() error { return e.Err }

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *RateLimited
	return errors.As(err, &rl)
}

// Do runs fn up to attempts times. After a failed attempt it sleeps
// baseDelay, or baseDelay * attemptNumber when the failure was a rate-limit
// signal. Each attempt re-executes fn from scratch; fn must not rely on
// partial progress from a previous attempt. Returns nil on the first
// success, or the last error once attempts are exhausted.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		delay := baseDelay
		if IsRateLimited(lastErr) {
			delay = baseDelay * time.Duration(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, attempts int, baseDelay time.Duration, fn func() (T, error)) (T, error) {
	var out T
	err := Do(ctx, attempts, baseDelay, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Package retry runs an operation in a fixed-delay loop until it succeeds,
// fails permanently, or the context is cancelled.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NonRetryableError wraps errors that end the loop immediately.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err as permanent.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// DelayError asks the loop to wait a specific delay before the next attempt.
type DelayError struct {
	Err   error
	Delay time.Duration
}

func (e *DelayError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.Delay, e.Err)
}

func (e *DelayError) Unwrap() error {
	return e.Err
}

// After marks err as retryable after d instead of the configured delay.
func After(err error, d time.Duration) error {
	if err == nil {
		return nil
	}
	return &DelayError{Err: err, Delay: d}
}

// Config controls the loop.
type Config struct {
	// Delay between attempts unless the error carries its own.
	Delay time.Duration
	// MaxAttempts of zero or less means unbounded.
	MaxAttempts int
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do calls fn with a 1-based attempt counter until it returns nil or a
// non-retryable error, the attempts run out, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.Delay < 0 {
		return errors.New("retry: Delay cannot be negative")
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("retry: giving up after %d attempts: %w", attempt, err)
		}

		delay := cfg.Delay
		var de *DelayError
		if errors.As(err, &de) {
			delay = de.Delay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

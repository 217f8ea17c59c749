package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMaxAttempts indicates that all retry attempts have been exhausted.
var ErrMaxAttempts = errors.New("max attempts exceeded")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying cannot fix, such as a document
// that does not exist. Do returns the wrapped error immediately without
// further attempts; errors.Is and errors.As still see it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Policy describes a short, linear retry: attempt, wait base*attempt,
// attempt again. It is meant for a couple of quick extra tries against a
// flaky connection, not for long-tail resilience.
type Policy struct {
	// MaxAttempts is the total number of tries (default 3).
	MaxAttempts int

	// BaseDelay is multiplied by the attempt number to produce the wait
	// before the next try (default 500ms).
	BaseDelay time.Duration

	// PerAttempt bounds a single attempt. Zero means no per-attempt
	// deadline beyond the caller's context.
	PerAttempt time.Duration
}

// DefaultPolicy returns the policy used by the persistence paths.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// Do runs op until it succeeds, the attempts are exhausted, or the context
// is cancelled. Attempts run sequentially, never in parallel. The returned
// error wraps both ErrMaxAttempts and the last attempt's error.
func (p Policy) Do(ctx context.Context, name string, op func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.PerAttempt > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.PerAttempt)
		}
		lastErr = op(attemptCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * p.BaseDelay
		slog.WarnContext(ctx, "Operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay", delay,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrMaxAttempts, name, p.MaxAttempts, lastErr)
}

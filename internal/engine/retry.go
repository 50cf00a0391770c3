package engine

import (
	"context"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// retryResult reports how an attempt loop ended.
type retryResult struct {
	attempts int
	err      error
}

// retry runs op up to policy.MaxAttempts times with a fixed backoff
// between attempts. Waits respect context cancellation. onRetry is
// called before each re-attempt with the attempt number just failed and
// its error; lifecycle errors (illegal transitions, unmet dependencies)
// are never retried.
func retry[T any](ctx context.Context, policy core.RetryPolicy, op func(ctx context.Context, attempt int) (T, error), onRetry func(attempt int, err error)) (T, retryResult) {
	var zero T
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := op(ctx, attempt)
		if err == nil {
			return value, retryResult{attempts: attempt}
		}
		lastErr = err

		if !retryable(err) || attempt == maxAttempts {
			return zero, retryResult{attempts: attempt, err: lastErr}
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := wait(ctx, policy.Backoff); err != nil {
			return zero, retryResult{attempts: attempt, err: err}
		}
	}
	return zero, retryResult{attempts: maxAttempts, err: lastErr}
}

// retryable reports whether another attempt may change the outcome.
// Transition and dependency violations indicate caller bugs and are
// always fatal; timeouts stay eligible so a slow attempt can be redone
// within the remaining budget.
func retryable(err error) bool {
	if core.IsCategory(err, core.ErrCatTransition) || core.IsCategory(err, core.ErrCatDependency) {
		return false
	}
	if core.IsCategory(err, core.ErrCatValidation) {
		return false
	}
	return true
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// Package engine runs compiled workflows: a policy-driven orchestrator
// with retry, escalation and timeout control, wrapped by a facade that
// guarantees terminal persisted state.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// WithTimeout races op against a deadline. On timeout the operation is
// abandoned, not terminated: the goroutine keeps running and its late
// result is discarded. The returned error carries the timeout code and
// the owning id.
func WithTimeout[T any](ctx context.Context, d time.Duration, code, ownerID string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := op(opCtx)
		done <- result{value: value, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case res := <-done:
		cancel()
		return res.value, res.err
	case <-ctx.Done():
		cancel()
		return zero, ctx.Err()
	case <-timer.C:
		cancel()
		return zero, core.ErrTimeout(code, ownerID,
			fmt.Sprintf("operation exceeded %s", d))
	}
}

// WithWorkflowTimeout bounds a whole execution run.
func WithWorkflowTimeout[T any](ctx context.Context, d time.Duration, executionID core.ExecutionID, op func(ctx context.Context) (T, error)) (T, error) {
	return WithTimeout(ctx, d, core.CodeWorkflowTimeout, string(executionID), op)
}

// WithStepTimeout bounds one step attempt.
func WithStepTimeout[T any](ctx context.Context, d time.Duration, stepID core.StepID, op func(ctx context.Context) (T, error)) (T, error) {
	return WithTimeout(ctx, d, core.CodeStepTimeout, string(stepID), op)
}

// WithTaskTimeout bounds one agent task invocation.
func WithTaskTimeout[T any](ctx context.Context, d time.Duration, taskID string, op func(ctx context.Context) (T, error)) (T, error) {
	return WithTimeout(ctx, d, core.CodeTaskTimeout, taskID, op)
}

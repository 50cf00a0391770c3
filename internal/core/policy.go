package core

import "time"

// Complexity tags a workflow with an execution cost class. The tag is
// resolved to an ExecutionPolicy at orchestration time and never persisted.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityHigh     Complexity = "high"
)

// RetryPolicy controls per-step retry behavior.
type RetryPolicy struct {
	MaxAttempts       int
	Backoff           time.Duration
	EscalateOnFailure bool
}

// ParallelismPolicy bounds concurrency within a level.
type ParallelismPolicy struct {
	MaxConcurrent int
	FailFast      bool
}

// TimeoutPolicy bounds step and whole-workflow execution time.
type TimeoutPolicy struct {
	PerStep       time.Duration
	TotalWorkflow time.Duration
}

// ExecutionPolicy is the immutable retry/parallelism/timeout configuration
// derived from a complexity tag.
type ExecutionPolicy struct {
	Retry       RetryPolicy
	Parallelism ParallelismPolicy
	Timeout     TimeoutPolicy
}

// GetExecutionPolicy is a pure lookup over the closed complexity enum.
// Unknown values fall back to the simple policy: they must be rejected by
// input validation before reaching this table.
func GetExecutionPolicy(c Complexity) ExecutionPolicy {
	switch c {
	case ComplexityModerate:
		return ExecutionPolicy{
			Retry:       RetryPolicy{MaxAttempts: 2, Backoff: time.Second, EscalateOnFailure: false},
			Parallelism: ParallelismPolicy{MaxConcurrent: 4, FailFast: false},
			Timeout:     TimeoutPolicy{PerStep: 10 * time.Minute, TotalWorkflow: time.Hour},
		}
	case ComplexityHigh:
		return ExecutionPolicy{
			Retry:       RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Second, EscalateOnFailure: false},
			Parallelism: ParallelismPolicy{MaxConcurrent: 6, FailFast: false},
			Timeout:     TimeoutPolicy{PerStep: 30 * time.Minute, TotalWorkflow: 2 * time.Hour},
		}
	default:
		return ExecutionPolicy{
			Retry:       RetryPolicy{MaxAttempts: 1, Backoff: 0, EscalateOnFailure: true},
			Parallelism: ParallelismPolicy{MaxConcurrent: 2, FailFast: true},
			Timeout:     TimeoutPolicy{PerStep: 5 * time.Minute, TotalWorkflow: 15 * time.Minute},
		}
	}
}

// ValidComplexity checks if a complexity tag is a member of the closed enum.
func ValidComplexity(c Complexity) bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityHigh:
		return true
	default:
		return false
	}
}

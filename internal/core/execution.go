package core

import (
	"time"
)

// ExecutionID uniquely identifies a workflow execution.
type ExecutionID string

// ExecutionState represents the lifecycle state of an execution.
type ExecutionState string

const (
	ExecutionStatePending   ExecutionState = "pending"
	ExecutionStateRunning   ExecutionState = "running"
	ExecutionStateCompleted ExecutionState = "completed"
	ExecutionStateFailed    ExecutionState = "failed"
	ExecutionStateTimeout   ExecutionState = "timeout"
)

// DefaultExecutionTimeout bounds executions created without an explicit
// timeout once they enter running.
const DefaultExecutionTimeout = time.Hour

// WorkflowExecution is one run of a named workflow.
type WorkflowExecution struct {
	ID           ExecutionID       `json:"id"`
	WorkflowName string            `json:"workflow_name"`
	ProjectID    string            `json:"project_id,omitempty"`
	State        ExecutionState    `json:"state"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	TimeoutMs    int64             `json:"timeout_ms,omitempty"`
	TimeoutAt    *time.Time        `json:"timeout_at,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// executionTransitions is the closed transition table for executions.
// pending -> running -> {completed, failed}; running -> timeout is
// system-detected, timeout -> running is an explicit resume.
var executionTransitions = map[ExecutionState][]ExecutionState{
	ExecutionStatePending: {ExecutionStateRunning},
	ExecutionStateRunning: {ExecutionStateCompleted, ExecutionStateFailed, ExecutionStateTimeout},
	ExecutionStateTimeout: {ExecutionStateRunning},
}

// CanTransition reports whether newState is reachable from the current state.
func (e *WorkflowExecution) CanTransition(newState ExecutionState) bool {
	for _, s := range executionTransitions[e.State] {
		if s == newState {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the execution reached a terminal state.
func (e *WorkflowExecution) IsTerminal() bool {
	return e.State == ExecutionStateCompleted || e.State == ExecutionStateFailed
}

// Timeout returns the configured timeout, falling back to the default.
func (e *WorkflowExecution) Timeout() time.Duration {
	if e.TimeoutMs > 0 {
		return time.Duration(e.TimeoutMs) * time.Millisecond
	}
	return DefaultExecutionTimeout
}

// Deadline computes the absolute deadline for an execution entering
// running at the given instant.
func (e *WorkflowExecution) Deadline(now time.Time) time.Time {
	return now.Add(e.Timeout())
}

// TimedOut reports whether a running execution has passed its deadline.
func (e *WorkflowExecution) TimedOut(now time.Time) bool {
	return e.State == ExecutionStateRunning && e.TimeoutAt != nil && now.After(*e.TimeoutAt)
}

// ValidExecutionState checks if a state value is a member of the closed enum.
func ValidExecutionState(s ExecutionState) bool {
	switch s {
	case ExecutionStatePending, ExecutionStateRunning, ExecutionStateCompleted,
		ExecutionStateFailed, ExecutionStateTimeout:
		return true
	default:
		return false
	}
}

// Validate checks execution invariants.
func (e *WorkflowExecution) Validate() error {
	if e.ID == "" {
		return ErrValidation("EXECUTION_ID_REQUIRED", "execution ID cannot be empty")
	}
	if e.WorkflowName == "" {
		return ErrValidation(CodeEmptyWorkflowName, "workflow name cannot be empty")
	}
	if !ValidExecutionState(e.State) {
		return ErrValidation(CodeInvalidState, "invalid execution state: "+string(e.State))
	}
	return nil
}

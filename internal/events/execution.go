package events

import (
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// Event type constants for execution-level events.
const (
	TypeExecutionStarted   = "execution_started"
	TypeExecutionCompleted = "execution_completed"
	TypeExecutionFailed    = "execution_failed"
	TypeExecutionTimedOut  = "execution_timed_out"
	TypeExecutionResumed   = "execution_resumed"
)

// ExecutionStartedEvent is emitted when an execution enters running.
type ExecutionStartedEvent struct {
	BaseEvent
	WorkflowName string `json:"workflow_name"`
	Levels       int    `json:"levels"`
}

func NewExecutionStartedEvent(executionID core.ExecutionID, workflowName string, levels int) ExecutionStartedEvent {
	return ExecutionStartedEvent{
		BaseEvent:    NewBaseEvent(TypeExecutionStarted, executionID),
		WorkflowName: workflowName,
		Levels:       levels,
	}
}

// ExecutionCompletedEvent is emitted exactly once when an execution
// finishes successfully.
type ExecutionCompletedEvent struct {
	BaseEvent
	WorkflowName string        `json:"workflow_name"`
	Duration     time.Duration `json:"duration"`
	Confidence   float64       `json:"confidence"`
}

func NewExecutionCompletedEvent(executionID core.ExecutionID, workflowName string, duration time.Duration, confidence float64) ExecutionCompletedEvent {
	return ExecutionCompletedEvent{
		BaseEvent:    NewBaseEvent(TypeExecutionCompleted, executionID),
		WorkflowName: workflowName,
		Duration:     duration,
		Confidence:   confidence,
	}
}

// ExecutionFailedEvent is emitted when an execution fails. Published on
// the priority path so it is never dropped.
type ExecutionFailedEvent struct {
	BaseEvent
	WorkflowName string `json:"workflow_name"`
	Error        string `json:"error"`
}

func NewExecutionFailedEvent(executionID core.ExecutionID, workflowName string, err error) ExecutionFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return ExecutionFailedEvent{
		BaseEvent:    NewBaseEvent(TypeExecutionFailed, executionID),
		WorkflowName: workflowName,
		Error:        errStr,
	}
}

// ExecutionTimedOutEvent is emitted by the timeout sweep.
type ExecutionTimedOutEvent struct {
	BaseEvent
	WorkflowName string    `json:"workflow_name"`
	Deadline     time.Time `json:"deadline"`
}

func NewExecutionTimedOutEvent(executionID core.ExecutionID, workflowName string, deadline time.Time) ExecutionTimedOutEvent {
	return ExecutionTimedOutEvent{
		BaseEvent:    NewBaseEvent(TypeExecutionTimedOut, executionID),
		WorkflowName: workflowName,
		Deadline:     deadline,
	}
}

// ExecutionResumedEvent is emitted when a timed-out execution resumes.
type ExecutionResumedEvent struct {
	BaseEvent
	WorkflowName string    `json:"workflow_name"`
	NewDeadline  time.Time `json:"new_deadline"`
}

func NewExecutionResumedEvent(executionID core.ExecutionID, workflowName string, newDeadline time.Time) ExecutionResumedEvent {
	return ExecutionResumedEvent{
		BaseEvent:    NewBaseEvent(TypeExecutionResumed, executionID),
		WorkflowName: workflowName,
		NewDeadline:  newDeadline,
	}
}

package events

import (
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// Event type constants for task-level events.
const (
	TypeTaskStarted   = "task_started"
	TypeTaskCompleted = "task_completed"
	TypeTaskFailed    = "task_failed"
)

// TaskStartedEvent is emitted when the task executor dispatches a task
// to an agent capability.
type TaskStartedEvent struct {
	BaseEvent
	TaskID   string `json:"task_id"`
	StepName string `json:"step_name"`
	Agent    string `json:"agent"`
}

func NewTaskStartedEvent(executionID core.ExecutionID, taskID, stepName, agent string) TaskStartedEvent {
	return TaskStartedEvent{
		BaseEvent: NewBaseEvent(TypeTaskStarted, executionID),
		TaskID:    taskID,
		StepName:  stepName,
		Agent:     agent,
	}
}

// TaskCompletedEvent is emitted when an agent returns a valid output.
type TaskCompletedEvent struct {
	BaseEvent
	TaskID     string        `json:"task_id"`
	StepName   string        `json:"step_name"`
	Agent      string        `json:"agent"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
}

func NewTaskCompletedEvent(executionID core.ExecutionID, taskID, stepName, agent string, duration time.Duration, confidence float64) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeTaskCompleted, executionID),
		TaskID:     taskID,
		StepName:   stepName,
		Agent:      agent,
		Duration:   duration,
		Confidence: confidence,
	}
}

// TaskFailedEvent is emitted when an agent invocation fails.
type TaskFailedEvent struct {
	BaseEvent
	TaskID   string        `json:"task_id"`
	StepName string        `json:"step_name"`
	Agent    string        `json:"agent"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error"`
}

func NewTaskFailedEvent(executionID core.ExecutionID, taskID, stepName, agent string, duration time.Duration, err error) TaskFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return TaskFailedEvent{
		BaseEvent: NewBaseEvent(TypeTaskFailed, executionID),
		TaskID:    taskID,
		StepName:  stepName,
		Agent:     agent,
		Duration:  duration,
		Error:     errStr,
	}
}

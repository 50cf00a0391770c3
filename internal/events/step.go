package events

import (
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// Event type constants for step-level events.
const (
	TypeStepStarted   = "step_started"
	TypeStepCompleted = "step_completed"
	TypeStepFailed    = "step_failed"
	TypeStepRetrying  = "step_retrying"
)

// StepStartedEvent is emitted when a step enters running.
type StepStartedEvent struct {
	BaseEvent
	StepID   core.StepID `json:"step_id"`
	StepName string      `json:"step_name"`
	Level    int         `json:"level"`
	Attempt  int         `json:"attempt"`
}

func NewStepStartedEvent(executionID core.ExecutionID, stepID core.StepID, stepName string, level, attempt int) StepStartedEvent {
	return StepStartedEvent{
		BaseEvent: NewBaseEvent(TypeStepStarted, executionID),
		StepID:    stepID,
		StepName:  stepName,
		Level:     level,
		Attempt:   attempt,
	}
}

// StepCompletedEvent is emitted when a step completes.
type StepCompletedEvent struct {
	BaseEvent
	StepID     core.StepID   `json:"step_id"`
	StepName   string        `json:"step_name"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
}

func NewStepCompletedEvent(executionID core.ExecutionID, stepID core.StepID, stepName string, duration time.Duration, confidence float64) StepCompletedEvent {
	return StepCompletedEvent{
		BaseEvent:  NewBaseEvent(TypeStepCompleted, executionID),
		StepID:     stepID,
		StepName:   stepName,
		Duration:   duration,
		Confidence: confidence,
	}
}

// StepFailedEvent is emitted when a step exhausts its attempts.
type StepFailedEvent struct {
	BaseEvent
	StepID   core.StepID `json:"step_id"`
	StepName string      `json:"step_name"`
	Attempts int         `json:"attempts"`
	Error    string      `json:"error"`
}

func NewStepFailedEvent(executionID core.ExecutionID, stepID core.StepID, stepName string, attempts int, err error) StepFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return StepFailedEvent{
		BaseEvent: NewBaseEvent(TypeStepFailed, executionID),
		StepID:    stepID,
		StepName:  stepName,
		Attempts:  attempts,
		Error:     errStr,
	}
}

// StepRetryingEvent is emitted before a failed attempt is retried.
type StepRetryingEvent struct {
	BaseEvent
	StepID   core.StepID   `json:"step_id"`
	StepName string        `json:"step_name"`
	Attempt  int           `json:"attempt"`
	Backoff  time.Duration `json:"backoff"`
	Error    string        `json:"error"`
}

func NewStepRetryingEvent(executionID core.ExecutionID, stepID core.StepID, stepName string, attempt int, backoff time.Duration, err error) StepRetryingEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return StepRetryingEvent{
		BaseEvent: NewBaseEvent(TypeStepRetrying, executionID),
		StepID:    stepID,
		StepName:  stepName,
		Attempt:   attempt,
		Backoff:   backoff,
		Error:     errStr,
	}
}

package core

import (
	"time"
)

// StepID uniquely identifies a step within an execution.
type StepID string

// StepState represents the lifecycle state of a step.
type StepState string

const (
	StepStatePending   StepState = "pending"
	StepStateRunning   StepState = "running"
	StepStateCompleted StepState = "completed"
	StepStateFailed    StepState = "failed"
)

// WorkflowStep is one node of the executable graph for a specific execution.
// Steps belong exclusively to one execution and are created by the
// orchestrator as it expands phases into steps.
type WorkflowStep struct {
	ID          StepID                 `json:"id"`
	ExecutionID ExecutionID            `json:"execution_id"`
	StepName    string                 `json:"step_name"`
	PhaseName   string                 `json:"phase_name,omitempty"`
	DependsOn   []string               `json:"depends_on,omitempty"`
	State       StepState              `json:"state"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

var stepTransitions = map[StepState][]StepState{
	StepStatePending: {StepStateRunning, StepStateFailed},
	StepStateRunning: {StepStateCompleted, StepStateFailed},
}

// CanTransition reports whether newState is reachable from the current state.
func (s *WorkflowStep) CanTransition(newState StepState) bool {
	for _, st := range stepTransitions[s.State] {
		if st == newState {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the step reached a terminal state.
func (s *WorkflowStep) IsTerminal() bool {
	return s.State == StepStateCompleted || s.State == StepStateFailed
}

// IsReady returns true if the step is pending and every declared
// dependency resolves to a completed step name.
func (s *WorkflowStep) IsReady(completed map[string]bool) bool {
	if s.State != StepStatePending {
		return false
	}
	for _, dep := range s.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// ValidStepState checks if a state value is a member of the closed enum.
func ValidStepState(s StepState) bool {
	switch s {
	case StepStatePending, StepStateRunning, StepStateCompleted, StepStateFailed:
		return true
	default:
		return false
	}
}

// Validate checks step invariants.
func (s *WorkflowStep) Validate() error {
	if s.ID == "" {
		return ErrValidation("STEP_ID_REQUIRED", "step ID cannot be empty")
	}
	if s.ExecutionID == "" {
		return ErrValidation("STEP_EXECUTION_REQUIRED", "step must belong to an execution")
	}
	if s.StepName == "" {
		return ErrValidation("STEP_NAME_REQUIRED", "step name cannot be empty")
	}
	if !ValidStepState(s.State) {
		return ErrValidation(CodeInvalidState, "invalid step state: "+string(s.State))
	}
	return nil
}

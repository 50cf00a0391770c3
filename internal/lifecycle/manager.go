// Package lifecycle manages the persisted state machines for workflow
// executions and their steps: guarded transitions, readiness queries,
// timeout sweeps and resumption.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
)

// Manager validates and persists execution and step state changes. All
// transitions go through here; stores never mutate state on their own.
type Manager struct {
	executions core.ExecutionStore
	steps      core.StepStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a lifecycle manager over the given stores.
func NewManager(executions core.ExecutionStore, steps core.StepStore, logger *slog.Logger) *Manager {
	return &Manager{
		executions: executions,
		steps:      steps,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateExecutionOptions carries the optional fields of a new execution.
type CreateExecutionOptions struct {
	ProjectID string
	Metadata  map[string]string
	TimeoutMs int64
}

// CreateExecution registers a new execution in pending state. The
// timeout deadline stays unset until the execution starts running.
func (m *Manager) CreateExecution(ctx context.Context, workflowName string, opts CreateExecutionOptions) (*core.WorkflowExecution, error) {
	now := m.now()
	exec := &core.WorkflowExecution{
		ID:           core.ExecutionID(uuid.New().String()),
		WorkflowName: workflowName,
		ProjectID:    opts.ProjectID,
		State:        core.ExecutionStatePending,
		Metadata:     opts.Metadata,
		TimeoutMs:    opts.TimeoutMs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.executions.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}
	m.logger.Debug("execution created",
		"execution_id", exec.ID,
		"workflow", workflowName)
	return exec, nil
}

// TransitionExecution moves an execution to newState, enforcing the
// transition table. Entering running sets the timeout deadline; entering
// a terminal state sets completedAt. An error message is persisted when
// provided.
func (m *Manager) TransitionExecution(ctx context.Context, id core.ExecutionID, newState core.ExecutionState, errText string) (*core.WorkflowExecution, error) {
	exec, err := m.executions.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exec.CanTransition(newState) {
		return nil, core.ErrInvalidTransition(string(exec.State), string(newState))
	}

	now := m.now()
	prev := exec.State
	exec.State = newState
	exec.UpdatedAt = now

	switch {
	case newState == core.ExecutionStateRunning:
		deadline := exec.Deadline(now)
		exec.TimeoutAt = &deadline
		if exec.StartedAt == nil {
			started := now
			exec.StartedAt = &started
		}
	case exec.IsTerminal():
		completed := now
		exec.CompletedAt = &completed
	}
	if errText != "" {
		exec.Error = errText
	}

	if err := m.executions.UpdateExecution(ctx, exec); err != nil {
		return nil, err
	}
	m.logger.Debug("execution transitioned",
		"execution_id", id,
		"from", prev,
		"to", newState)
	return exec, nil
}

// CreateStep registers a pending step under an execution.
func (m *Manager) CreateStep(ctx context.Context, executionID core.ExecutionID, stepName, phaseName string, dependsOn []string) (*core.WorkflowStep, error) {
	if _, err := m.executions.GetExecution(ctx, executionID); err != nil {
		return nil, err
	}
	now := m.now()
	step := &core.WorkflowStep{
		ID:          core.StepID(uuid.New().String()),
		ExecutionID: executionID,
		StepName:    stepName,
		PhaseName:   phaseName,
		DependsOn:   dependsOn,
		State:       core.StepStatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.steps.CreateStep(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// TransitionStep moves a step to newState. Entering running requires
// every dependency to be completed; terminal transitions record output
// and error.
func (m *Manager) TransitionStep(ctx context.Context, id core.StepID, newState core.StepState, output map[string]interface{}, errText string) (*core.WorkflowStep, error) {
	step, err := m.steps.GetStep(ctx, id)
	if err != nil {
		return nil, err
	}
	if !step.CanTransition(newState) {
		return nil, core.ErrInvalidTransition(string(step.State), string(newState))
	}

	if newState == core.StepStateRunning {
		completed, err := m.completedStepNames(ctx, step.ExecutionID)
		if err != nil {
			return nil, err
		}
		for _, dep := range step.DependsOn {
			if !completed[dep] {
				return nil, core.ErrDependencyNotMet(step.StepName, dep)
			}
		}
	}

	step.State = newState
	step.UpdatedAt = m.now()
	if step.IsTerminal() {
		if output != nil {
			step.Output = output
		}
		if errText != "" {
			step.Error = errText
		}
	}

	if err := m.steps.UpdateStep(ctx, step); err != nil {
		return nil, err
	}
	return step, nil
}

// ReadySteps returns pending steps whose full dependency set is
// completed, in stable creation order.
func (m *Manager) ReadySteps(ctx context.Context, executionID core.ExecutionID) ([]*core.WorkflowStep, error) {
	steps, err := m.steps.ListSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.State == core.StepStateCompleted {
			completed[step.StepName] = true
		}
	}
	var ready []*core.WorkflowStep
	for _, step := range steps {
		if step.IsReady(completed) {
			ready = append(ready, step)
		}
	}
	return ready, nil
}

// IncompleteExecutions returns executions that have not reached a
// terminal state, optionally narrowed by workflow name.
func (m *Manager) IncompleteExecutions(ctx context.Context, workflowName string) ([]*core.WorkflowExecution, error) {
	return m.executions.ListExecutions(ctx, core.ExecutionFilter{
		WorkflowName: workflowName,
		States: []core.ExecutionState{
			core.ExecutionStatePending,
			core.ExecutionStateRunning,
			core.ExecutionStateTimeout,
		},
	})
}

// CheckTimeouts scans running executions whose deadline has elapsed and
// transitions each to timeout. Safe to call repeatedly on an interval.
func (m *Manager) CheckTimeouts(ctx context.Context) ([]*core.WorkflowExecution, error) {
	running, err := m.executions.ListExecutions(ctx, core.ExecutionFilter{
		States: []core.ExecutionState{core.ExecutionStateRunning},
	})
	if err != nil {
		return nil, err
	}

	now := m.now()
	var timedOut []*core.WorkflowExecution
	for _, exec := range running {
		if !exec.TimedOut(now) {
			continue
		}
		transitioned, err := m.TransitionExecution(ctx, exec.ID, core.ExecutionStateTimeout,
			fmt.Sprintf("execution exceeded its deadline of %s", exec.TimeoutAt.Format(time.RFC3339)))
		if err != nil {
			// Lost a race with another transition; skip and keep sweeping.
			if core.IsCategory(err, core.ErrCatTransition) {
				continue
			}
			return timedOut, err
		}
		m.logger.Warn("execution timed out",
			"execution_id", exec.ID,
			"workflow", exec.WorkflowName)
		timedOut = append(timedOut, transitioned)
	}
	return timedOut, nil
}

// ResumeExecution moves a timed-out execution back to running with a
// freshly computed deadline.
func (m *Manager) ResumeExecution(ctx context.Context, id core.ExecutionID) (*core.WorkflowExecution, error) {
	exec, err := m.executions.GetExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec.State != core.ExecutionStateTimeout {
		return nil, core.ErrInvalidTransition(string(exec.State), string(core.ExecutionStateRunning))
	}
	resumed, err := m.TransitionExecution(ctx, id, core.ExecutionStateRunning, "")
	if err != nil {
		return nil, err
	}
	m.logger.Info("execution resumed",
		"execution_id", id,
		"deadline", resumed.TimeoutAt)
	return resumed, nil
}

func (m *Manager) completedStepNames(ctx context.Context, executionID core.ExecutionID) (map[string]bool, error) {
	steps, err := m.steps.ListSteps(ctx, executionID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step.State == core.StepStateCompleted {
			completed[step.StepName] = true
		}
	}
	return completed, nil
}

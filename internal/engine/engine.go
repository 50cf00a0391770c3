package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/scscodes/conductor/internal/compiler"
	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/events"
	"github.com/scscodes/conductor/internal/lifecycle"
)

// StartOptions carries the optional inputs of a new execution.
type StartOptions struct {
	Reason    string
	ProjectID string
	Metadata  map[string]string
	TimeoutMs int64
}

// Engine is the facade callers use to run workflows. It owns the
// pending -> running -> terminal progression and guarantees the
// execution row never stays in running once Execute returns.
type Engine struct {
	templates core.TemplateProvider
	projects  core.ProjectRegistry
	lifecycle *lifecycle.Manager
	orch      *Orchestrator
	audit     core.ExecutionLogger
	bus       *events.Bus
	logger    *slog.Logger
}

// New creates an engine facade.
func New(templates core.TemplateProvider, projects core.ProjectRegistry, lm *lifecycle.Manager, orch *Orchestrator, audit core.ExecutionLogger, bus *events.Bus, logger *slog.Logger) *Engine {
	return &Engine{
		templates: templates,
		projects:  projects,
		lifecycle: lm,
		orch:      orch,
		audit:     audit,
		bus:       bus,
		logger:    logger,
	}
}

// Execute runs the named workflow to completion and returns the
// aggregated output. Orchestration failures are persisted (failed state
// plus error text) and then returned to the caller unchanged.
func (e *Engine) Execute(ctx context.Context, workflowName string, opts StartOptions) (*core.ExecutionResult, error) {
	tpl, err := e.templates.Get(workflowName)
	if err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile(tpl)
	if err != nil {
		return nil, err
	}
	if opts.ProjectID != "" {
		exists, err := e.projects.Exists(ctx, opts.ProjectID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, core.ErrNotFound("project", opts.ProjectID)
		}
	}

	policy := core.GetExecutionPolicy(tpl.ComplexityOrDefault())
	timeoutMs := opts.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = policy.Timeout.TotalWorkflow.Milliseconds()
	}

	metadata := opts.Metadata
	if opts.Reason != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["reason"] = opts.Reason
	}

	exec, err := e.lifecycle.CreateExecution(ctx, workflowName, lifecycle.CreateExecutionOptions{
		ProjectID: opts.ProjectID,
		Metadata:  metadata,
		TimeoutMs: timeoutMs,
	})
	if err != nil {
		return nil, err
	}

	exec, err = e.lifecycle.TransitionExecution(ctx, exec.ID, core.ExecutionStateRunning, "")
	if err != nil {
		return nil, err
	}
	start := time.Now()
	e.logStarted(ctx, exec, compiled)

	output, runErr := e.orch.Execute(ctx, exec, compiled, policy)
	elapsed := time.Since(start)

	if runErr != nil {
		e.finalize(ctx, exec, core.ExecutionStateFailed, runErr.Error())
		e.audit.LogExecution(ctx, core.LogEntry{
			ExecutionID: exec.ID,
			Event:       "execution.failed",
			Message:     runErr.Error(),
			Fields:      map[string]interface{}{"duration_ms": elapsed.Milliseconds()},
		})
		e.bus.PublishPriority(events.NewExecutionFailedEvent(exec.ID, workflowName, runErr))
		e.logger.Error("execution failed",
			"execution_id", exec.ID,
			"workflow", workflowName,
			"error", runErr)
		return nil, runErr
	}

	exec = e.finalize(ctx, exec, core.ExecutionStateCompleted, "")
	e.audit.LogExecution(ctx, core.LogEntry{
		ExecutionID: exec.ID,
		Event:       "execution.completed",
		Fields: map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
			"confidence":  output.Confidence,
		},
	})
	e.bus.Publish(events.NewExecutionCompletedEvent(exec.ID, workflowName, elapsed, output.Confidence))
	e.logger.Info("execution completed",
		"execution_id", exec.ID,
		"workflow", workflowName,
		"duration", elapsed,
		"confidence", output.Confidence)

	return &core.ExecutionResult{
		Execution: exec,
		Output:    output,
		Duration:  elapsed,
	}, nil
}

// Resume re-opens a timed-out execution with a fresh deadline.
func (e *Engine) Resume(ctx context.Context, id core.ExecutionID) (*core.WorkflowExecution, error) {
	exec, err := e.lifecycle.ResumeExecution(ctx, id)
	if err != nil {
		return nil, err
	}
	e.audit.LogExecution(ctx, core.LogEntry{
		ExecutionID: exec.ID,
		Event:       "execution.resumed",
		Fields:      map[string]interface{}{"deadline": exec.TimeoutAt},
	})
	if exec.TimeoutAt != nil {
		e.bus.Publish(events.NewExecutionResumedEvent(exec.ID, exec.WorkflowName, *exec.TimeoutAt))
	}
	return exec, nil
}

func (e *Engine) logStarted(ctx context.Context, exec *core.WorkflowExecution, compiled *compiler.ExecutableWorkflow) {
	if err := e.audit.LogExecution(ctx, core.LogEntry{
		ExecutionID: exec.ID,
		Event:       "execution.started",
		Fields: map[string]interface{}{
			"workflow": exec.WorkflowName,
			"levels":   len(compiled.Levels),
			"phases":   compiled.PhaseCount(),
		},
	}); err != nil {
		e.logger.Error("failed to append audit entry",
			"execution_id", exec.ID,
			"error", err)
	}
	e.bus.Publish(events.NewExecutionStartedEvent(exec.ID, exec.WorkflowName, len(compiled.Levels)))
	e.logger.Info("execution started",
		"execution_id", exec.ID,
		"workflow", exec.WorkflowName,
		"levels", len(compiled.Levels))
}

// finalize persists the terminal state even when the caller's context
// is already canceled.
func (e *Engine) finalize(ctx context.Context, exec *core.WorkflowExecution, state core.ExecutionState, errText string) *core.WorkflowExecution {
	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	final, err := e.lifecycle.TransitionExecution(persistCtx, exec.ID, state, errText)
	if err != nil {
		e.logger.Error("failed to persist terminal execution state",
			"execution_id", exec.ID,
			"state", state,
			"error", err)
		return exec
	}
	return final
}

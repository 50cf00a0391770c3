package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scscodes/conductor/internal/agent"
	"github.com/scscodes/conductor/internal/compiler"
	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/events"
	"github.com/scscodes/conductor/internal/lifecycle"
)

// Orchestrator walks a compiled workflow level by level, running phases
// under the execution policy's concurrency, retry and timeout limits.
type Orchestrator struct {
	lifecycle *lifecycle.Manager
	executor  *agent.TaskExecutor
	artifacts core.ArtifactStore
	findings  core.FindingStore
	bus       *events.Bus
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(lm *lifecycle.Manager, executor *agent.TaskExecutor, artifacts core.ArtifactStore, findings core.FindingStore, bus *events.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		lifecycle: lm,
		executor:  executor,
		artifacts: artifacts,
		findings:  findings,
		bus:       bus,
		logger:    logger,
	}
}

// stepOutcome is the per-phase record gathered during a run.
type stepOutcome struct {
	result core.StepResult
	output *core.AgentOutput
	err    error
}

// runState accumulates outcomes across concurrent phases.
type runState struct {
	mu       sync.Mutex
	outcomes []stepOutcome
	firstErr error
}

func (rs *runState) record(o stepOutcome) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.outcomes = append(rs.outcomes, o)
	if o.err != nil && rs.firstErr == nil {
		rs.firstErr = o.err
	}
}

// Execute runs the compiled workflow for an execution already in
// running state. The whole run is bounded by the policy's total
// workflow timeout; per-step timeouts apply around each attempt.
func (o *Orchestrator) Execute(ctx context.Context, exec *core.WorkflowExecution, compiled *compiler.ExecutableWorkflow, policy core.ExecutionPolicy) (*core.WorkflowOutput, error) {
	return WithWorkflowTimeout(ctx, policy.Timeout.TotalWorkflow, exec.ID, func(ctx context.Context) (*core.WorkflowOutput, error) {
		return o.run(ctx, exec, compiled, policy)
	})
}

func (o *Orchestrator) run(ctx context.Context, exec *core.WorkflowExecution, compiled *compiler.ExecutableWorkflow, policy core.ExecutionPolicy) (*core.WorkflowOutput, error) {
	state := &runState{}

	for levelIdx, level := range compiled.Levels {
		if err := ctx.Err(); err != nil {
			break
		}

		aborted := o.runLevel(ctx, exec, levelIdx, level, policy, state)
		if aborted {
			o.logger.Warn("aborting remaining levels",
				"execution_id", exec.ID,
				"level", levelIdx)
			output := o.aggregate(exec, compiled, state)
			root := state.firstErr
			return output, core.ErrWorkflowExecution(
				fmt.Sprintf("workflow %s aborted at level %d", compiled.Name, levelIdx), root)
		}
	}

	if err := ctx.Err(); err != nil {
		return o.aggregate(exec, compiled, state), err
	}
	return o.aggregate(exec, compiled, state), nil
}

// runLevel executes one level and reports whether escalation aborts the
// remaining levels. Phases marked non-parallel run alone, in declared
// order, before the concurrent batch.
func (o *Orchestrator) runLevel(ctx context.Context, exec *core.WorkflowExecution, levelIdx int, level []core.PhaseTemplate, policy core.ExecutionPolicy, state *runState) bool {
	var solo, concurrent []core.PhaseTemplate
	for _, phase := range level {
		if phase.AllowParallel {
			concurrent = append(concurrent, phase)
		} else {
			solo = append(solo, phase)
		}
	}

	var failedInLevel atomic.Bool
	for _, phase := range solo {
		if ctx.Err() != nil {
			return false
		}
		outcome := o.runPhase(ctx, exec, levelIdx, phase, policy)
		state.record(outcome)
		if outcome.err != nil {
			failedInLevel.Store(true)
			// Escalation leaves the rest of the level unstarted;
			// failFast alone stops the level but later levels run.
			if policy.Retry.EscalateOnFailure || policy.Parallelism.FailFast {
				return policy.Retry.EscalateOnFailure
			}
		}
	}

	if len(concurrent) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(policy.Parallelism.MaxConcurrent)
		for _, phase := range concurrent {
			phase := phase
			g.Go(func() error {
				if failedInLevel.Load() && policy.Retry.EscalateOnFailure {
					// Escalated while this phase was queued; it
					// never starts. In-flight siblings finish.
					return nil
				}
				outcome := o.runPhase(gctx, exec, levelIdx, phase, policy)
				state.record(outcome)
				if outcome.err != nil {
					failedInLevel.Store(true)
					if policy.Parallelism.FailFast {
						// Cancel in-flight siblings immediately.
						return outcome.err
					}
				}
				return nil
			})
		}
		// Errors are tracked through the shared state; Wait only
		// propagates the failFast cancellation.
		_ = g.Wait()
	}

	return failedInLevel.Load() && policy.Retry.EscalateOnFailure
}

// runPhase creates the persisted step for one phase and drives it to a
// terminal state through the attempt loop.
func (o *Orchestrator) runPhase(ctx context.Context, exec *core.WorkflowExecution, levelIdx int, phase core.PhaseTemplate, policy core.ExecutionPolicy) stepOutcome {
	started := time.Now()
	outcome := stepOutcome{result: core.StepResult{
		StepName:  phase.Name,
		PhaseName: phase.Name,
		Agent:     phase.Agent,
	}}

	step, err := o.lifecycle.CreateStep(ctx, exec.ID, phase.Name, phase.Name, phase.DependsOn)
	if err != nil {
		outcome.err = err
		outcome.result.State = core.StepStateFailed
		outcome.result.Error = err.Error()
		outcome.result.Duration = time.Since(started)
		return outcome
	}
	outcome.result.StepID = step.ID

	if _, err := o.lifecycle.TransitionStep(ctx, step.ID, core.StepStateRunning, nil, ""); err != nil {
		o.failStep(ctx, exec, step, &outcome, 0, started, err)
		return outcome
	}

	o.bus.Publish(events.NewStepStartedEvent(exec.ID, step.ID, phase.Name, levelIdx, 1))

	output, res := retry(ctx, policy.Retry, func(ctx context.Context, attempt int) (*core.AgentOutput, error) {
		return WithStepTimeout(ctx, policy.Timeout.PerStep, step.ID, func(ctx context.Context) (*core.AgentOutput, error) {
			return o.executor.Execute(ctx, agent.TaskDefinition{
				ExecutionID: exec.ID,
				StepName:    phase.Name,
				Agent:       phase.Agent,
				Task:        taskDescription(phase),
				Metadata:    exec.Metadata,
			}, agent.StepInput{})
		})
	}, func(attempt int, err error) {
		o.bus.Publish(events.NewStepRetryingEvent(exec.ID, step.ID, phase.Name, attempt, policy.Retry.Backoff, err))
	})

	outcome.result.Attempts = res.attempts
	if res.err != nil {
		o.failStep(ctx, exec, step, &outcome, res.attempts, started, res.err)
		return outcome
	}

	elapsed := time.Since(started)
	stepOutput := map[string]interface{}{
		"summary":    output.Summary,
		"confidence": output.Confidence,
	}
	if _, err := o.lifecycle.TransitionStep(ctx, step.ID, core.StepStateCompleted, stepOutput, ""); err != nil {
		o.failStep(ctx, exec, step, &outcome, res.attempts, started, err)
		return outcome
	}

	outcome.output = output
	outcome.result.State = core.StepStateCompleted
	outcome.result.Duration = elapsed
	outcome.result.Summary = output.Summary
	o.bus.Publish(events.NewStepCompletedEvent(exec.ID, step.ID, phase.Name, elapsed, output.Confidence))
	o.persistOutputs(ctx, exec, phase, step, output)
	return outcome
}

// failStep marks the persisted step failed, best-effort, and fills the
// outcome.
func (o *Orchestrator) failStep(ctx context.Context, exec *core.WorkflowExecution, step *core.WorkflowStep, outcome *stepOutcome, attempts int, started time.Time, cause error) {
	outcome.err = cause
	outcome.result.State = core.StepStateFailed
	outcome.result.Attempts = attempts
	outcome.result.Error = cause.Error()
	outcome.result.Duration = time.Since(started)

	// A canceled context must not block persisting terminal state.
	persistCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if _, err := o.lifecycle.TransitionStep(persistCtx, step.ID, core.StepStateFailed, nil, cause.Error()); err != nil {
		o.logger.Error("failed to persist step failure",
			"step_id", step.ID,
			"error", err)
	}
	o.bus.Publish(events.NewStepFailedEvent(exec.ID, step.ID, step.StepName, attempts, cause))
}

// persistOutputs writes the artifacts and findings an agent produced.
// Persistence failures are logged, not fatal to the step.
func (o *Orchestrator) persistOutputs(ctx context.Context, exec *core.WorkflowExecution, phase core.PhaseTemplate, step *core.WorkflowStep, output *core.AgentOutput) {
	for _, draft := range output.Artifacts {
		if _, err := o.artifacts.StoreArtifact(ctx, core.StoreArtifactOptions{
			ExecutionID: exec.ID,
			StepID:      step.ID,
			Name:        draft.Name,
			ContentType: draft.ContentType,
			Content:     draft.Content,
			Metadata:    draft.Metadata,
		}); err != nil {
			o.logger.Error("failed to store artifact",
				"execution_id", exec.ID,
				"artifact", draft.Name,
				"error", err)
		}
	}

	now := time.Now().UTC()
	for _, draft := range output.Findings {
		finding := &core.Finding{
			ID:                uuid.New().String(),
			Scope:             core.ScopeGlobal,
			Category:          draft.Category,
			Severity:          draft.Severity,
			Title:             draft.Title,
			Content:           draft.Content,
			Tags:              draft.Tags,
			SourceExecutionID: exec.ID,
			SourceAgent:       phase.Agent,
			Status:            core.FindingStatusOpen,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if exec.ProjectID != "" {
			finding.Scope = core.ScopeProject
			finding.ProjectID = exec.ProjectID
		}
		if err := o.findings.InsertFinding(ctx, finding); err != nil {
			o.logger.Error("failed to store finding",
				"execution_id", exec.ID,
				"title", draft.Title,
				"error", err)
		}
	}
}

// aggregate merges all step outcomes into one WorkflowOutput.
// Confidence is the minimum across completed steps; no completed step
// yields 0.
func (o *Orchestrator) aggregate(exec *core.WorkflowExecution, compiled *compiler.ExecutableWorkflow, state *runState) *core.WorkflowOutput {
	state.mu.Lock()
	defer state.mu.Unlock()

	out := &core.WorkflowOutput{
		WorkflowName: compiled.Name,
		ExecutionID:  exec.ID,
	}

	completed := 0
	confidence := 0.0
	for _, outcome := range state.outcomes {
		out.Steps = append(out.Steps, outcome.result)
		if outcome.output == nil {
			continue
		}
		if completed == 0 || outcome.output.Confidence < confidence {
			confidence = outcome.output.Confidence
		}
		completed++

		for _, draft := range outcome.output.Artifacts {
			out.Artifacts = append(out.Artifacts, draft.Name)
		}
		for _, draft := range outcome.output.Findings {
			out.Findings = append(out.Findings, draft.Title)
		}
		out.Decisions = append(out.Decisions, outcome.output.Decisions...)
		out.NextSteps = append(out.NextSteps, outcome.output.NextSteps...)
		out.Blockers = append(out.Blockers, outcome.output.Blockers...)
		out.References = append(out.References, outcome.output.References...)
	}

	out.Confidence = confidence
	out.Summary = fmt.Sprintf("%s: %d/%d steps completed", compiled.Name, completed, len(state.outcomes))
	return out
}

func taskDescription(phase core.PhaseTemplate) string {
	if phase.Description != "" {
		return phase.Description
	}
	return fmt.Sprintf("execute phase %s", phase.Name)
}

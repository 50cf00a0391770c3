package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/scscodes/conductor/internal/agent"
	"github.com/scscodes/conductor/internal/compiler"
	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/events"
	"github.com/scscodes/conductor/internal/lifecycle"
	"github.com/scscodes/conductor/internal/store"
)

func newOrchestratorHarness(t *testing.T, worker *recordingAgent) (*Orchestrator, *lifecycle.Manager, *store.StepStore) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "orch.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewBus(100)
	t.Cleanup(bus.Close)

	executions := store.NewExecutionStore(s)
	steps := store.NewStepStore(s)
	registry := agent.NewRegistry()
	if err := registry.Register(worker); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	lm := lifecycle.NewManager(executions, steps, logger)
	executor := agent.NewTaskExecutor(registry, bus)
	orch := NewOrchestrator(lm, executor, store.NewArtifactStore(s), store.NewFindingStore(s), bus, logger)
	return orch, lm, steps
}

func startExecution(t *testing.T, lm *lifecycle.Manager, workflowName string) *core.WorkflowExecution {
	t.Helper()
	exec, err := lm.CreateExecution(context.Background(), workflowName, lifecycle.CreateExecutionOptions{})
	if err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	exec, err = lm.TransitionExecution(context.Background(), exec.ID, core.ExecutionStateRunning, "")
	if err != nil {
		t.Fatalf("TransitionExecution() error = %v", err)
	}
	return exec
}

func compile(t *testing.T, tpl *core.WorkflowTemplate) *compiler.ExecutableWorkflow {
	t.Helper()
	compiled, err := compiler.Compile(tpl)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return compiled
}

func fastPolicy(maxAttempts int, escalate, failFast bool) core.ExecutionPolicy {
	return core.ExecutionPolicy{
		Retry: core.RetryPolicy{
			MaxAttempts:       maxAttempts,
			Backoff:           5 * time.Millisecond,
			EscalateOnFailure: escalate,
		},
		Parallelism: core.ParallelismPolicy{MaxConcurrent: 4, FailFast: failFast},
		Timeout: core.TimeoutPolicy{
			PerStep:       time.Second,
			TotalWorkflow: 5 * time.Second,
		},
	}
}

func TestOrchestratorRetriesExactlyPerPolicy(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"only": 10}}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name:   "retrying",
		Phases: []core.PhaseTemplate{{Name: "only", Agent: "worker"}},
	}
	exec := startExecution(t, lm, "retrying")

	_, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(2, true, false))
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != core.CodeExecutionFailed {
		t.Fatalf("Execute() error = %v, want EXECUTION_FAILED", err)
	}

	if got := len(worker.invocations()); got != 2 {
		t.Errorf("agent invoked %d times, want exactly 2 attempts", got)
	}
}

func TestOrchestratorRecoveryWithinAttemptBudget(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"flaky": 1}}
	orch, lm, steps := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name:   "recovers",
		Phases: []core.PhaseTemplate{{Name: "flaky", Agent: "worker"}},
	}
	exec := startExecution(t, lm, "recovers")

	output, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(3, true, false))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(output.Steps) != 1 || output.Steps[0].Attempts != 2 {
		t.Errorf("Steps = %+v, want one step with 2 attempts", output.Steps)
	}
	if output.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", output.Confidence)
	}

	persisted, err := steps.ListSteps(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	if len(persisted) != 1 || persisted[0].State != core.StepStateCompleted {
		t.Errorf("persisted step = %+v, want completed", persisted)
	}
}

func TestOrchestratorContinuesWithoutEscalation(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"broken": 10}}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name: "tolerant",
		Phases: []core.PhaseTemplate{
			{Name: "broken", Agent: "worker"},
			{Name: "later", Agent: "worker"},
		},
	}
	exec := startExecution(t, lm, "tolerant")

	output, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(1, false, false))
	if err != nil {
		t.Fatalf("Execute() error = %v, escalation disabled should not abort", err)
	}

	states := map[string]core.StepState{}
	for _, step := range output.Steps {
		states[step.StepName] = step.State
	}
	if states["broken"] != core.StepStateFailed {
		t.Errorf("broken state = %q, want failed", states["broken"])
	}
	if states["later"] != core.StepStateCompleted {
		t.Errorf("later state = %q, want completed", states["later"])
	}
	// One completed step with confidence 0.9.
	if output.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", output.Confidence)
	}
}

func TestOrchestratorEscalationAbortsRestOfLevel(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"first": 10}}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	// Both phases share a level; once first exhausts its attempts the
	// escalation must leave second unstarted, not just later levels.
	tpl := &core.WorkflowTemplate{
		Name: "escalating",
		Phases: []core.PhaseTemplate{
			{Name: "first", Agent: "worker"},
			{Name: "second", Agent: "worker"},
		},
	}
	exec := startExecution(t, lm, "escalating")

	_, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(1, true, false))
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != core.CodeExecutionFailed {
		t.Fatalf("Execute() error = %v, want EXECUTION_FAILED", err)
	}

	got := worker.invocations()
	if len(got) != 1 || got[0] != "first" {
		t.Errorf("invocations = %v, want only first", got)
	}
}

func TestOrchestratorEscalationSkipsConcurrentBatch(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"solo": 10}}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name: "escalating",
		Phases: []core.PhaseTemplate{
			{Name: "solo", Agent: "worker"},
			{Name: "p1", Agent: "worker", AllowParallel: true},
			{Name: "p2", Agent: "worker", AllowParallel: true},
		},
	}
	exec := startExecution(t, lm, "escalating")

	_, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(1, true, false))
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != core.CodeExecutionFailed {
		t.Fatalf("Execute() error = %v, want EXECUTION_FAILED", err)
	}

	for _, name := range worker.invocations() {
		if name == "p1" || name == "p2" {
			t.Errorf("phase %s ran after the solo failure escalated", name)
		}
	}
}

func TestOrchestratorFailFastCancelsSiblings(t *testing.T) {
	const slowDelay = 300 * time.Millisecond
	worker := &recordingAgent{
		name:     "worker",
		failures: map[string]int{"doomed": 10},
		delays:   map[string]time.Duration{"slow": slowDelay},
	}
	orch, lm, steps := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name: "failfast",
		Phases: []core.PhaseTemplate{
			{Name: "doomed", Agent: "worker", AllowParallel: true},
			{Name: "slow", Agent: "worker", AllowParallel: true},
		},
	}
	exec := startExecution(t, lm, "failfast")

	policy := fastPolicy(1, false, true)
	started := time.Now()
	output, err := orch.Execute(context.Background(), exec, compile(t, tpl), policy)
	if err != nil {
		t.Fatalf("Execute() error = %v, failFast without escalation continues", err)
	}
	if output.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 with no completed step", output.Confidence)
	}

	// The agent only records an invocation after its delay elapses, so
	// a canceled sibling never shows up.
	for _, name := range worker.invocations() {
		if name == "slow" {
			t.Errorf("slow sibling completed despite failFast cancellation")
		}
	}
	if elapsed := time.Since(started); elapsed > slowDelay/2 {
		t.Errorf("Execute() took %v, cancellation should not wait out the sibling", elapsed)
	}

	persisted, err := steps.ListSteps(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("ListSteps() error = %v", err)
	}
	for _, step := range persisted {
		if step.StepName == "slow" && step.State != core.StepStateFailed {
			t.Errorf("slow step state = %q, want failed after cancellation", step.State)
		}
	}
}

func TestOrchestratorDependentOfFailedStepCannotRun(t *testing.T) {
	worker := &recordingAgent{name: "worker", failures: map[string]int{"base": 10}}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name: "cascade",
		Phases: []core.PhaseTemplate{
			{Name: "base", Agent: "worker"},
			{Name: "child", Agent: "worker", DependsOn: []string{"base"}},
		},
	}
	exec := startExecution(t, lm, "cascade")

	output, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(1, false, false))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var child core.StepResult
	for _, step := range output.Steps {
		if step.StepName == "child" {
			child = step
		}
	}
	if child.State != core.StepStateFailed {
		t.Errorf("child state = %q, want failed via dependency guard", child.State)
	}
	if output.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0 with no completed step", output.Confidence)
	}
}

func TestOrchestratorPerStepTimeout(t *testing.T) {
	worker := &recordingAgent{name: "worker", delay: 200 * time.Millisecond}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name:   "slow",
		Phases: []core.PhaseTemplate{{Name: "sluggish", Agent: "worker"}},
	}
	exec := startExecution(t, lm, "slow")

	policy := fastPolicy(1, true, false)
	policy.Timeout.PerStep = 20 * time.Millisecond

	_, err := orch.Execute(context.Background(), exec, compile(t, tpl), policy)
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != core.CodeExecutionFailed {
		t.Fatalf("Execute() error = %v, want EXECUTION_FAILED", err)
	}
	if !core.IsTimeout(errors.Unwrap(domainErr)) {
		t.Errorf("root cause = %v, want step timeout", domainErr.Unwrap())
	}
}

func TestOrchestratorTotalWorkflowTimeout(t *testing.T) {
	worker := &recordingAgent{name: "worker", delay: 100 * time.Millisecond}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	tpl := &core.WorkflowTemplate{
		Name: "chain",
		Phases: []core.PhaseTemplate{
			{Name: "a", Agent: "worker"},
			{Name: "b", Agent: "worker", DependsOn: []string{"a"}},
			{Name: "c", Agent: "worker", DependsOn: []string{"b"}},
		},
	}
	exec := startExecution(t, lm, "chain")

	policy := fastPolicy(1, true, false)
	policy.Timeout.TotalWorkflow = 120 * time.Millisecond

	_, err := orch.Execute(context.Background(), exec, compile(t, tpl), policy)
	var domainErr *core.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("Execute() error = %v, want DomainError", err)
	}
	if domainErr.Code != core.CodeWorkflowTimeout {
		t.Errorf("Code = %s, want WORKFLOW_TIMEOUT", domainErr.Code)
	}
}

func TestOrchestratorSoloPhaseRunsAlone(t *testing.T) {
	worker := &recordingAgent{name: "worker", delay: 20 * time.Millisecond}
	orch, lm, _ := newOrchestratorHarness(t, worker)

	// Same level, but the solo phase must never overlap the others.
	tpl := &core.WorkflowTemplate{
		Name: "mixed",
		Phases: []core.PhaseTemplate{
			{Name: "solo", Agent: "worker", AllowParallel: false},
			{Name: "p1", Agent: "worker", AllowParallel: true},
			{Name: "p2", Agent: "worker", AllowParallel: true},
		},
	}
	exec := startExecution(t, lm, "mixed")

	output, err := orch.Execute(context.Background(), exec, compile(t, tpl), fastPolicy(1, true, false))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(output.Steps) != 3 {
		t.Fatalf("Steps = %d, want 3", len(output.Steps))
	}

	// The solo phase runs before the concurrent batch starts.
	if first := worker.invocations()[0]; first != "solo" {
		t.Errorf("first invocation = %s, want solo", first)
	}
}

package agent

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/events"
)

// TaskDefinition describes the work one phase hands to its agent.
type TaskDefinition struct {
	ExecutionID core.ExecutionID
	StepName    string
	Agent       string
	Task        string
	Constraints []string
	References  []string
	Metadata    map[string]string
}

// StepInput carries step-level additions merged into the task input.
type StepInput struct {
	Constraints []string
	References  []string
}

// TaskExecutor builds validated agent inputs, dispatches them to the
// registered capability, and reports task telemetry. Timeouts are the
// caller's responsibility.
type TaskExecutor struct {
	registry core.AgentRegistry
	bus      *events.Bus
}

// NewTaskExecutor creates a task executor.
func NewTaskExecutor(registry core.AgentRegistry, bus *events.Bus) *TaskExecutor {
	return &TaskExecutor{registry: registry, bus: bus}
}

// Execute runs one agent task. Contract violations in the input surface
// as validation errors before any dispatch; capability failures are
// wrapped into a retryable task error carrying the task id.
func (te *TaskExecutor) Execute(ctx context.Context, def TaskDefinition, input StepInput) (*core.AgentOutput, error) {
	task, err := te.buildTask(def, input)
	if err != nil {
		return nil, err
	}

	capability, err := te.registry.Get(def.Agent)
	if err != nil {
		return nil, core.ErrValidation(core.CodeContractViolation,
			"task references unknown agent: "+def.Agent)
	}

	te.bus.Publish(events.NewTaskStartedEvent(def.ExecutionID, task.TaskID, def.StepName, def.Agent))
	start := time.Now()

	output, err := capability.Invoke(ctx, task)
	elapsed := time.Since(start)
	if err != nil {
		te.bus.Publish(events.NewTaskFailedEvent(def.ExecutionID, task.TaskID, def.StepName, def.Agent, elapsed, err))
		return nil, core.ErrAgentTask(task.TaskID, err)
	}
	if err := validateOutput(output); err != nil {
		te.bus.Publish(events.NewTaskFailedEvent(def.ExecutionID, task.TaskID, def.StepName, def.Agent, elapsed, err))
		return nil, core.ErrAgentTask(task.TaskID, err)
	}

	te.bus.Publish(events.NewTaskCompletedEvent(def.ExecutionID, task.TaskID, def.StepName, def.Agent, elapsed, output.Confidence))
	return output, nil
}

func (te *TaskExecutor) buildTask(def TaskDefinition, input StepInput) (core.AgentTask, error) {
	if strings.TrimSpace(def.Task) == "" {
		return core.AgentTask{}, core.ErrValidation(core.CodeContractViolation,
			"task description cannot be empty")
	}
	if def.Agent == "" {
		return core.AgentTask{}, core.ErrValidation(core.CodeContractViolation,
			"task must name an agent")
	}
	if def.ExecutionID == "" {
		return core.AgentTask{}, core.ErrValidation(core.CodeContractViolation,
			"task must belong to an execution")
	}

	return core.AgentTask{
		TaskID:      uuid.New().String(),
		ExecutionID: def.ExecutionID,
		StepName:    def.StepName,
		Task:        def.Task,
		Constraints: mergeUnique(def.Constraints, input.Constraints),
		References:  mergeUnique(def.References, input.References),
		Metadata:    def.Metadata,
	}, nil
}

func validateOutput(output *core.AgentOutput) error {
	if output == nil {
		return core.ErrValidation(core.CodeContractViolation, "agent returned no output")
	}
	if output.Confidence < 0 || output.Confidence > 1 {
		return core.ErrValidation(core.CodeContractViolation,
			"agent confidence must be within [0,1]")
	}
	return nil
}

// mergeUnique concatenates two lists preserving first-seen order.
func mergeUnique(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		merged = append(merged, v)
	}
	return merged
}

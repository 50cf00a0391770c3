package agent

import (
	"context"
	"fmt"

	"github.com/scscodes/conductor/internal/core"
)

// StubAgent is a deterministic capability that acknowledges every task
// without doing real work. It backs dry runs, local development, and
// phases whose assigned agent is not wired up yet.
type StubAgent struct {
	name       string
	confidence float64
}

// NewStubAgent creates a stub with the given name. Confidence defaults
// to 0.5, the neutral midpoint.
func NewStubAgent(name string) *StubAgent {
	return &StubAgent{name: name, confidence: 0.5}
}

// WithConfidence sets the confidence the stub reports.
func (a *StubAgent) WithConfidence(confidence float64) *StubAgent {
	a.confidence = confidence
	return a
}

func (a *StubAgent) Name() string { return a.name }

func (a *StubAgent) Describe() string {
	return "deterministic placeholder capability"
}

// Invoke returns a fixed acknowledgement derived from the task fields.
func (a *StubAgent) Invoke(ctx context.Context, task core.AgentTask) (*core.AgentOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &core.AgentOutput{
		Summary:    fmt.Sprintf("%s acknowledged task %q for step %s", a.name, task.Task, task.StepName),
		Decisions:  []string{"no-op: stub capability"},
		References: task.References,
		Confidence: a.confidence,
	}, nil
}

// Verify that StubAgent implements core.AgentCapability.
var _ core.AgentCapability = (*StubAgent)(nil)

package core

import "time"

// AgentTask is the validated input handed to an agent capability.
type AgentTask struct {
	TaskID      string            `json:"task_id"`
	ExecutionID ExecutionID       `json:"execution_id"`
	StepName    string            `json:"step_name"`
	Task        string            `json:"task"`
	Constraints []string          `json:"constraints,omitempty"`
	References  []string          `json:"references,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ArtifactDraft is an artifact proposed by an agent before it is
// persisted through the artifact store.
type ArtifactDraft struct {
	Name        string              `json:"name"`
	ContentType ArtifactContentType `json:"content_type"`
	Content     []byte              `json:"content"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
}

// FindingDraft is a finding proposed by an agent before validation.
type FindingDraft struct {
	Category string          `json:"category"`
	Severity FindingSeverity `json:"severity"`
	Title    string          `json:"title"`
	Content  string          `json:"content"`
	Tags     []string        `json:"tags,omitempty"`
}

// AgentOutput is the structured result of one agent task invocation.
type AgentOutput struct {
	Summary    string          `json:"summary"`
	Artifacts  []ArtifactDraft `json:"artifacts,omitempty"`
	Decisions  []string        `json:"decisions,omitempty"`
	Findings   []FindingDraft  `json:"findings,omitempty"`
	NextSteps  []string        `json:"next_steps,omitempty"`
	Blockers   []string        `json:"blockers,omitempty"`
	References []string        `json:"references,omitempty"`
	Confidence float64         `json:"confidence"`
}

// StepResult records the outcome of one orchestrated step.
type StepResult struct {
	StepID    StepID        `json:"step_id"`
	StepName  string        `json:"step_name"`
	PhaseName string        `json:"phase_name"`
	Agent     string        `json:"agent"`
	State     StepState     `json:"state"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
	Summary   string        `json:"summary,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// WorkflowOutput is the unified aggregation of all step results.
// Confidence is the minimum of gathered per-task confidences; an
// execution with no completed step reports confidence 0.
type WorkflowOutput struct {
	Summary      string       `json:"summary"`
	WorkflowName string       `json:"workflow_name"`
	ExecutionID  ExecutionID  `json:"execution_id"`
	Steps        []StepResult `json:"steps"`
	Artifacts    []string     `json:"artifacts,omitempty"`
	Decisions    []string     `json:"decisions,omitempty"`
	Findings     []string     `json:"findings,omitempty"`
	NextSteps    []string     `json:"next_steps,omitempty"`
	Blockers     []string     `json:"blockers,omitempty"`
	References   []string     `json:"references,omitempty"`
	Confidence   float64      `json:"confidence"`
}

// ExecutionResult is what the engine facade returns to callers.
type ExecutionResult struct {
	Execution *WorkflowExecution `json:"execution"`
	Output    *WorkflowOutput    `json:"output"`
	Duration  time.Duration      `json:"duration_ms"`
}

package core

import (
	"context"
	"time"
)

// =============================================================================
// Agent Capability Port
// =============================================================================

// AgentCapability is the contract for the external worker that performs
// task work. The engine treats it as a black box honoring this
// request/response contract; the context carries cancellation so a real
// capability can stop early, though the engine only guarantees
// abandonment semantics on timeout.
type AgentCapability interface {
	// Name returns the capability identifier phases are assigned to.
	Name() string

	// Describe returns a short human-readable description.
	Describe() string

	// Invoke performs one task and returns its structured output.
	Invoke(ctx context.Context, task AgentTask) (*AgentOutput, error)
}

// AgentRegistry resolves agent capabilities by name.
type AgentRegistry interface {
	// Register adds a capability to the registry.
	Register(agent AgentCapability) error

	// Get retrieves a capability by name.
	Get(name string) (AgentCapability, error)

	// List returns all registered capability names.
	List() []string
}

// =============================================================================
// Template Provider Port
// =============================================================================

// TemplateProvider supplies workflow templates by name.
type TemplateProvider interface {
	// Get returns the template for a workflow name.
	Get(name string) (*WorkflowTemplate, error)

	// List returns all known workflow names.
	List() []string
}

// ProjectRegistry resolves project existence for project-scoped records.
type ProjectRegistry interface {
	// Exists reports whether a project ID references a known project.
	Exists(ctx context.Context, projectID string) (bool, error)
}

// =============================================================================
// Persistence Ports
// =============================================================================

// ExecutionFilter narrows execution queries.
type ExecutionFilter struct {
	WorkflowName string
	States       []ExecutionState
	ProjectID    string
	Limit        int
}

// ExecutionStore persists workflow executions.
type ExecutionStore interface {
	// CreateExecution inserts a new execution row.
	CreateExecution(ctx context.Context, exec *WorkflowExecution) error

	// GetExecution loads an execution by ID.
	GetExecution(ctx context.Context, id ExecutionID) (*WorkflowExecution, error)

	// UpdateExecution persists mutated execution fields.
	UpdateExecution(ctx context.Context, exec *WorkflowExecution) error

	// ListExecutions returns executions matching the filter, most recent first.
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*WorkflowExecution, error)
}

// StepStore persists workflow steps.
type StepStore interface {
	// CreateStep inserts a new step row.
	CreateStep(ctx context.Context, step *WorkflowStep) error

	// GetStep loads a step by ID.
	GetStep(ctx context.Context, id StepID) (*WorkflowStep, error)

	// UpdateStep persists mutated step fields.
	UpdateStep(ctx context.Context, step *WorkflowStep) error

	// ListSteps returns all steps of an execution in creation order.
	ListSteps(ctx context.Context, executionID ExecutionID) ([]*WorkflowStep, error)
}

// ArtifactFilter narrows artifact queries within an execution.
type ArtifactFilter struct {
	StepID      StepID
	ContentType ArtifactContentType
	NamePrefix  string
}

// StoreArtifactOptions describes a new artifact to persist. Content is
// the raw payload; binary content is text-encoded by the store.
type StoreArtifactOptions struct {
	ExecutionID ExecutionID
	StepID      StepID
	Name        string
	ContentType ArtifactContentType
	Content     []byte
	Metadata    map[string]string
}

// ArtifactStore persists immutable artifacts. Rows are only created and
// read; deletion exists as an administrative escape hatch.
type ArtifactStore interface {
	StoreArtifact(ctx context.Context, opts StoreArtifactOptions) (*Artifact, error)
	GetArtifact(ctx context.Context, id string) (*Artifact, error)
	GetArtifactsByExecution(ctx context.Context, executionID ExecutionID, filter ArtifactFilter) ([]*Artifact, error)
	GetArtifactContent(ctx context.Context, id string) ([]byte, error)
	GetExecutionArtifactsSize(ctx context.Context, executionID ExecutionID) (int64, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// FindingFilter narrows finding queries.
type FindingFilter struct {
	Scope             FindingScope
	ProjectID         string
	Category          string
	Severity          FindingSeverity
	Status            FindingStatus
	Tag               string
	SourceExecutionID ExecutionID
	Limit             int
}

// FindingStore persists findings with validated references.
type FindingStore interface {
	InsertFinding(ctx context.Context, f *Finding) error
	GetFinding(ctx context.Context, id string) (*Finding, error)
	UpdateFinding(ctx context.Context, id string, patch FindingPatch) (*Finding, error)
	QueryFindings(ctx context.Context, filter FindingFilter) ([]*Finding, error)
	SearchFindings(ctx context.Context, text string, filter FindingFilter) ([]*Finding, error)
}

// LogEntry is one structured, timestamped audit event for an execution.
type LogEntry struct {
	ID          string                 `json:"id"`
	ExecutionID ExecutionID            `json:"execution_id"`
	Event       string                 `json:"event"`
	Message     string                 `json:"message,omitempty"`
	Fields      map[string]interface{} `json:"fields,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ExecutionLogger appends to the per-execution audit trail. The read
// path serves external collaborators (dashboards, history views); the
// engine itself only writes.
type ExecutionLogger interface {
	LogExecution(ctx context.Context, entry LogEntry) error
	GetExecutionLog(ctx context.Context, executionID ExecutionID) ([]LogEntry, error)
}

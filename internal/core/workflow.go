package core

import "fmt"

// PhaseTemplate is one template node of a workflow definition.
type PhaseTemplate struct {
	Name          string   `json:"name" yaml:"name"`
	Agent         string   `json:"agent" yaml:"agent"`
	DependsOn     []string `json:"depends_on,omitempty" yaml:"dependsOn,omitempty"`
	AllowParallel bool     `json:"allow_parallel" yaml:"allowParallel"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// WorkflowTemplate is a named template of phases with dependencies and
// agent assignments. Phase order is the declaration order and is the
// tie-break for compiled levels.
type WorkflowTemplate struct {
	Name       string          `json:"name" yaml:"name"`
	Complexity Complexity      `json:"complexity" yaml:"complexity"`
	Phases     []PhaseTemplate `json:"phases" yaml:"phases"`
}

// Validate checks template invariants that do not require graph analysis.
// Cycle and reference checks are the compiler's job.
func (t *WorkflowTemplate) Validate() error {
	if t.Name == "" {
		return ErrValidation(CodeEmptyWorkflowName, "workflow template name cannot be empty")
	}
	if len(t.Phases) == 0 {
		return ErrValidation("NO_PHASES", fmt.Sprintf("workflow %s declares no phases", t.Name))
	}
	if t.Complexity != "" && !ValidComplexity(t.Complexity) {
		return ErrValidation(CodeInvalidComplexity, fmt.Sprintf("invalid complexity: %s", t.Complexity))
	}
	seen := make(map[string]bool, len(t.Phases))
	for _, p := range t.Phases {
		if p.Name == "" {
			return ErrValidation("PHASE_NAME_REQUIRED", fmt.Sprintf("workflow %s has a phase without a name", t.Name))
		}
		if p.Agent == "" {
			return ErrValidation("PHASE_AGENT_REQUIRED", fmt.Sprintf("phase %s has no agent assigned", p.Name))
		}
		if seen[p.Name] {
			return ErrValidation("DUPLICATE_PHASE", fmt.Sprintf("phase %s declared twice", p.Name))
		}
		seen[p.Name] = true
	}
	return nil
}

// ComplexityOrDefault returns the template's complexity hint, defaulting
// to moderate when unset.
func (t *WorkflowTemplate) ComplexityOrDefault() Complexity {
	if t.Complexity == "" {
		return ComplexityModerate
	}
	return t.Complexity
}

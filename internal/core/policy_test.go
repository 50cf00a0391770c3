package core

import (
	"testing"
	"time"
)

func TestGetExecutionPolicy_Simple(t *testing.T) {
	p := GetExecutionPolicy(ComplexitySimple)
	if p.Retry.MaxAttempts != 1 {
		t.Fatalf("simple MaxAttempts = %d, want 1", p.Retry.MaxAttempts)
	}
	if p.Retry.Backoff != 0 {
		t.Fatalf("simple Backoff = %v, want 0", p.Retry.Backoff)
	}
	if !p.Retry.EscalateOnFailure {
		t.Fatalf("simple workflows escalate on failure")
	}
	if p.Parallelism.MaxConcurrent != 2 || !p.Parallelism.FailFast {
		t.Fatalf("simple parallelism = %+v", p.Parallelism)
	}
	if p.Timeout.PerStep != 5*time.Minute || p.Timeout.TotalWorkflow != 15*time.Minute {
		t.Fatalf("simple timeouts = %+v", p.Timeout)
	}
}

func TestGetExecutionPolicy_Moderate(t *testing.T) {
	p := GetExecutionPolicy(ComplexityModerate)
	if p.Retry.MaxAttempts != 2 || p.Retry.Backoff != time.Second || p.Retry.EscalateOnFailure {
		t.Fatalf("moderate retry = %+v", p.Retry)
	}
	if p.Parallelism.MaxConcurrent != 4 || p.Parallelism.FailFast {
		t.Fatalf("moderate parallelism = %+v", p.Parallelism)
	}
	if p.Timeout.PerStep != 10*time.Minute || p.Timeout.TotalWorkflow != time.Hour {
		t.Fatalf("moderate timeouts = %+v", p.Timeout)
	}
}

func TestGetExecutionPolicy_High(t *testing.T) {
	p := GetExecutionPolicy(ComplexityHigh)
	if p.Retry.MaxAttempts != 3 {
		t.Fatalf("high MaxAttempts = %d, want 3", p.Retry.MaxAttempts)
	}
	if p.Retry.Backoff != 5*time.Second {
		t.Fatalf("high Backoff = %v, want 5s", p.Retry.Backoff)
	}
	if p.Parallelism.MaxConcurrent != 6 {
		t.Fatalf("high MaxConcurrent = %d, want 6", p.Parallelism.MaxConcurrent)
	}
	if p.Timeout.PerStep != 30*time.Minute || p.Timeout.TotalWorkflow != 2*time.Hour {
		t.Fatalf("high timeouts = %+v", p.Timeout)
	}
}

func TestValidComplexity(t *testing.T) {
	for _, c := range []Complexity{ComplexitySimple, ComplexityModerate, ComplexityHigh} {
		if !ValidComplexity(c) {
			t.Errorf("ValidComplexity(%s) = false", c)
		}
	}
	if ValidComplexity("extreme") {
		t.Errorf("ValidComplexity(extreme) should be false")
	}
}

func TestWorkflowTemplate_Validate(t *testing.T) {
	tpl := &WorkflowTemplate{
		Name:       "review",
		Complexity: ComplexityModerate,
		Phases: []PhaseTemplate{
			{Name: "scan", Agent: "reviewer"},
			{Name: "report", Agent: "writer", DependsOn: []string{"scan"}},
		},
	}
	if err := tpl.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	dup := &WorkflowTemplate{
		Name: "dup",
		Phases: []PhaseTemplate{
			{Name: "a", Agent: "x"},
			{Name: "a", Agent: "y"},
		},
	}
	if err := dup.Validate(); err == nil {
		t.Fatalf("duplicate phase names must be rejected")
	}

	empty := &WorkflowTemplate{Name: "empty"}
	if err := empty.Validate(); err == nil {
		t.Fatalf("template without phases must be rejected")
	}
}

package core

import (
	"errors"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatValidation,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatValidation, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatTask, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactories(t *testing.T) {
	if ErrValidation("C", "m").Retryable {
		t.Fatalf("validation should not be retryable")
	}
	if ErrInvalidTransition("pending", "completed").Retryable {
		t.Fatalf("invalid transition must never be retryable")
	}
	if ErrDependencyNotMet("b", "a").Retryable {
		t.Fatalf("dependency violation must never be retryable")
	}
	if !ErrAgentTask("t1", errors.New("boom")).Retryable {
		t.Fatalf("agent task failure should be retryable")
	}
	if ErrTimeout(CodeStepTimeout, "s1", "m").Retryable {
		t.Fatalf("timeouts escalate, they are not retried as-is")
	}
}

func TestErrTimeout_CarriesOwnerAndCode(t *testing.T) {
	err := ErrTimeout(CodeWorkflowTimeout, "exec-1", "workflow deadline exceeded")
	if err.Code != CodeWorkflowTimeout {
		t.Fatalf("Code = %s, want %s", err.Code, CodeWorkflowTimeout)
	}
	if err.Details["owner_id"] != "exec-1" {
		t.Fatalf("expected owner_id detail")
	}
	if !IsTimeout(err) {
		t.Fatalf("IsTimeout should report true")
	}
}

func TestCategoryHelpers(t *testing.T) {
	err := ErrNotFound("execution", "x")
	if GetCategory(err) != ErrCatNotFound {
		t.Fatalf("GetCategory = %s", GetCategory(err))
	}
	if !IsCategory(err, ErrCatNotFound) {
		t.Fatalf("IsCategory should match")
	}
	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Fatalf("plain errors default to internal")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
}

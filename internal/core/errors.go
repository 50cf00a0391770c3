package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Input rejected by a contract schema
	ErrCatTransition ErrorCategory = "transition" // Illegal lifecycle state change
	ErrCatDependency ErrorCategory = "dependency" // Step readiness violated
	ErrCatNotFound   ErrorCategory = "not_found"  // Referenced resource absent
	ErrCatCompile    ErrorCategory = "compile"    // Workflow template rejected
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation exceeded its deadline
	ErrCatTask       ErrorCategory = "task"       // Agent task execution failure
	ErrCatWorkflow   ErrorCategory = "workflow"   // Workflow-level execution failure
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the engine.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrInvalidTransition creates an invalid lifecycle transition error.
// Transition errors are never retried: they indicate an ordering bug in
// the caller, not a transient condition.
func ErrInvalidTransition(from, to string) *DomainError {
	return &DomainError{
		Category:  ErrCatTransition,
		Code:      CodeInvalidTransition,
		Message:   fmt.Sprintf("cannot transition from %s to %s", from, to),
		Retryable: false,
	}
}

// ErrDependencyNotMet creates a step readiness error.
func ErrDependencyNotMet(stepName, dependency string) *DomainError {
	return &DomainError{
		Category:  ErrCatDependency,
		Code:      CodeDependencyNotMet,
		Message:   fmt.Sprintf("step %s depends on %s which is not completed", stepName, dependency),
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      CodeNotFound,
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrCompile creates a workflow compilation error.
func ErrCompile(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCompile,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a typed timeout error carrying the owning id.
// Timeouts are distinguishable by code so callers can escalate them
// regardless of the retry policy in force.
func ErrTimeout(code, ownerID, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      code,
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"owner_id": ownerID},
	}
}

// ErrAgentTask wraps an agent task failure.
func ErrAgentTask(taskID string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatTask,
		Code:      CodeTaskExecutionFailed,
		Message:   fmt.Sprintf("task %s failed", taskID),
		Retryable: true,
		Cause:     cause,
		Details:   map[string]interface{}{"task_id": taskID},
	}
}

// ErrWorkflowExecution creates a workflow-level execution failure.
func ErrWorkflowExecution(message string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatWorkflow,
		Code:      CodeExecutionFailed,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// IsTimeout checks whether an error carries one of the timeout codes.
func IsTimeout(err error) bool {
	return IsCategory(err, ErrCatTimeout)
}

// Predefined error codes
const (
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeDependencyNotMet    = "DEPENDENCY_NOT_MET"
	CodeNotFound            = "NOT_FOUND"
	CodeCycleDetected       = "CYCLE_DETECTED"
	CodeUnknownDependency   = "UNKNOWN_DEPENDENCY"
	CodeWorkflowTimeout     = "WORKFLOW_TIMEOUT"
	CodeStepTimeout         = "STEP_TIMEOUT"
	CodeTaskTimeout         = "TASK_TIMEOUT"
	CodeTaskExecutionFailed = "TASK_EXECUTION_FAILED"
	CodeExecutionFailed     = "EXECUTION_FAILED"
	CodeContractViolation   = "CONTRACT_VIOLATION"

	// Validation error codes
	CodeInvalidState       = "INVALID_STATE"
	CodeInvalidContentType = "INVALID_CONTENT_TYPE"
	CodeInvalidSeverity    = "INVALID_SEVERITY"
	CodeInvalidScope       = "INVALID_SCOPE"
	CodeInvalidComplexity  = "INVALID_COMPLEXITY"
	CodeEmptyWorkflowName  = "EMPTY_WORKFLOW_NAME"
)

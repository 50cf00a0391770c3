package core

import (
	"fmt"
	"time"
)

// FindingScope determines whether a finding is project-bound or global.
type FindingScope string

const (
	ScopeGlobal  FindingScope = "global"
	ScopeProject FindingScope = "project"
)

// FindingSeverity grades the impact of a finding.
type FindingSeverity string

const (
	SeverityInfo     FindingSeverity = "info"
	SeverityLow      FindingSeverity = "low"
	SeverityMedium   FindingSeverity = "medium"
	SeverityHigh     FindingSeverity = "high"
	SeverityCritical FindingSeverity = "critical"
)

// FindingStatus tracks the review state of a finding.
type FindingStatus string

const (
	FindingStatusOpen         FindingStatus = "open"
	FindingStatusAcknowledged FindingStatus = "acknowledged"
	FindingStatusResolved     FindingStatus = "resolved"
	FindingStatusDismissed    FindingStatus = "dismissed"
)

// Finding is a knowledge item (observation or issue) recorded during
// execution, optionally scoped to a project.
type Finding struct {
	ID                string          `json:"id"`
	Scope             FindingScope    `json:"scope"`
	ProjectID         string          `json:"project_id,omitempty"`
	Category          string          `json:"category"`
	Severity          FindingSeverity `json:"severity"`
	Title             string          `json:"title"`
	Content           string          `json:"content"`
	Tags              []string        `json:"tags,omitempty"`
	SourceExecutionID ExecutionID     `json:"source_execution_id,omitempty"`
	SourceAgent       string          `json:"source_agent,omitempty"`
	Status            FindingStatus   `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// FindingPatch is a controlled partial update. Nil fields are left
// untouched; every applied patch revises UpdatedAt.
type FindingPatch struct {
	Title    *string          `json:"title,omitempty"`
	Content  *string          `json:"content,omitempty"`
	Tags     *[]string        `json:"tags,omitempty"`
	Severity *FindingSeverity `json:"severity,omitempty"`
	Category *string          `json:"category,omitempty"`
	Status   *FindingStatus   `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *FindingPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Tags == nil &&
		p.Severity == nil && p.Category == nil && p.Status == nil
}

// Validate rejects patch values outside the closed enums.
func (p *FindingPatch) Validate() error {
	if p.Severity != nil && !ValidSeverity(*p.Severity) {
		return ErrValidation(CodeInvalidSeverity, fmt.Sprintf("invalid severity: %s", *p.Severity))
	}
	if p.Status != nil && !ValidFindingStatus(*p.Status) {
		return ErrValidation(CodeInvalidState, fmt.Sprintf("invalid finding status: %s", *p.Status))
	}
	return nil
}

// ValidScope checks if a scope is a member of the closed enum.
func ValidScope(s FindingScope) bool {
	return s == ScopeGlobal || s == ScopeProject
}

// ValidSeverity checks if a severity is a member of the closed enum.
func ValidSeverity(s FindingSeverity) bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ValidFindingStatus checks if a status is a member of the closed enum.
func ValidFindingStatus(s FindingStatus) bool {
	switch s {
	case FindingStatusOpen, FindingStatusAcknowledged, FindingStatusResolved, FindingStatusDismissed:
		return true
	default:
		return false
	}
}

// Validate checks finding invariants. Referential checks against the
// project registry and execution store happen at the store boundary.
func (f *Finding) Validate() error {
	if f.ID == "" {
		return ErrValidation("FINDING_ID_REQUIRED", "finding ID cannot be empty")
	}
	if !ValidScope(f.Scope) {
		return ErrValidation(CodeInvalidScope, fmt.Sprintf("invalid finding scope: %s", f.Scope))
	}
	if f.Scope == ScopeProject && f.ProjectID == "" {
		return ErrValidation(CodeInvalidScope, "project-scoped finding requires a project ID")
	}
	if f.Scope == ScopeGlobal && f.ProjectID != "" {
		return ErrValidation(CodeInvalidScope, "global finding cannot carry a project ID")
	}
	if !ValidSeverity(f.Severity) {
		return ErrValidation(CodeInvalidSeverity, fmt.Sprintf("invalid severity: %s", f.Severity))
	}
	if !ValidFindingStatus(f.Status) {
		return ErrValidation(CodeInvalidState, fmt.Sprintf("invalid finding status: %s", f.Status))
	}
	if f.Title == "" {
		return ErrValidation("FINDING_TITLE_REQUIRED", "finding title cannot be empty")
	}
	return nil
}

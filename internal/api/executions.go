package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/engine"
)

// StartExecutionRequest is the request body for starting an execution.
type StartExecutionRequest struct {
	Workflow  string            `json:"workflow"`
	Reason    string            `json:"reason,omitempty"`
	ProjectID string            `json:"project_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	TimeoutMs int64             `json:"timeout_ms,omitempty"`
}

// ExecutionDetail is an execution with optionally included related
// records, selected by the ?include= query parameter.
type ExecutionDetail struct {
	Execution *core.WorkflowExecution `json:"execution"`
	Steps     []*core.WorkflowStep    `json:"steps,omitempty"`
	Artifacts []*core.Artifact        `json:"artifacts,omitempty"`
	Findings  []*core.Finding         `json:"findings,omitempty"`
	Log       []core.LogEntry         `json:"log,omitempty"`
}

// handleStartExecution runs a workflow to completion and returns the
// result. A run that fails still persists its execution; the error body
// carries the domain code.
func (s *Server) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	var req StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.Workflow == "" {
		respondBadRequest(w, "workflow is required")
		return
	}

	result, err := s.engine.Execute(r.Context(), req.Workflow, engine.StartOptions{
		Reason:    req.Reason,
		ProjectID: req.ProjectID,
		Metadata:  req.Metadata,
		TimeoutMs: req.TimeoutMs,
	})
	if err != nil {
		s.logger.Error("execution failed", "workflow", req.Workflow, "error", err)
		respondError(w, err, "execution failed")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// handleListExecutions returns execution history. With ?incomplete=true
// it returns only executions that still need attention.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	workflow := q.Get("workflow")

	if q.Get("incomplete") == "true" {
		execs, err := s.lifecycle.IncompleteExecutions(ctx, workflow)
		if err != nil {
			s.logger.Error("failed to list incomplete executions", "error", err)
			respondError(w, err, "failed to list executions")
			return
		}
		respondJSON(w, http.StatusOK, execs)
		return
	}

	filter := core.ExecutionFilter{
		WorkflowName: workflow,
		ProjectID:    q.Get("project"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			respondBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	for _, raw := range splitParam(q.Get("state")) {
		state := core.ExecutionState(raw)
		if !core.ValidExecutionState(state) {
			respondBadRequest(w, "unknown execution state: "+raw)
			return
		}
		filter.States = append(filter.States, state)
	}

	execs, err := s.executions.ListExecutions(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list executions", "error", err)
		respondError(w, err, "failed to list executions")
		return
	}
	respondJSON(w, http.StatusOK, execs)
}

// handleGetExecution returns one execution, optionally with related
// records via ?include=steps,artifacts,findings,log.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ExecutionID(chi.URLParam(r, "executionID"))

	exec, err := s.executions.GetExecution(ctx, id)
	if err != nil {
		respondError(w, err, "failed to load execution")
		return
	}

	detail := ExecutionDetail{Execution: exec}
	for _, include := range splitParam(r.URL.Query().Get("include")) {
		switch include {
		case "steps":
			detail.Steps, err = s.steps.ListSteps(ctx, id)
		case "artifacts":
			detail.Artifacts, err = s.artifacts.GetArtifactsByExecution(ctx, id, core.ArtifactFilter{})
		case "findings":
			detail.Findings, err = s.findings.QueryFindings(ctx, core.FindingFilter{SourceExecutionID: id})
		case "log":
			detail.Log, err = s.auditLog.GetExecutionLog(ctx, id)
		default:
			respondBadRequest(w, "unknown include: "+include)
			return
		}
		if err != nil {
			s.logger.Error("failed to load execution detail", "execution_id", id, "include", include, "error", err)
			respondError(w, err, "failed to load execution detail")
			return
		}
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleResumeExecution moves a timed-out execution back to running.
func (s *Server) handleResumeExecution(w http.ResponseWriter, r *http.Request) {
	id := core.ExecutionID(chi.URLParam(r, "executionID"))

	exec, err := s.engine.Resume(r.Context(), id)
	if err != nil {
		respondError(w, err, "failed to resume execution")
		return
	}
	respondJSON(w, http.StatusOK, exec)
}

// handleListSteps returns all steps of an execution in creation order.
func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ExecutionID(chi.URLParam(r, "executionID"))

	if _, err := s.executions.GetExecution(ctx, id); err != nil {
		respondError(w, err, "failed to load execution")
		return
	}
	steps, err := s.steps.ListSteps(ctx, id)
	if err != nil {
		respondError(w, err, "failed to list steps")
		return
	}
	respondJSON(w, http.StatusOK, steps)
}

// handleReadySteps returns pending steps whose dependencies are all
// completed.
func (s *Server) handleReadySteps(w http.ResponseWriter, r *http.Request) {
	id := core.ExecutionID(chi.URLParam(r, "executionID"))

	steps, err := s.lifecycle.ReadySteps(r.Context(), id)
	if err != nil {
		respondError(w, err, "failed to list ready steps")
		return
	}
	respondJSON(w, http.StatusOK, steps)
}

// handleListArtifacts returns an execution's artifacts, optionally
// filtered by step, content type, or name prefix.
func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ExecutionID(chi.URLParam(r, "executionID"))
	q := r.URL.Query()

	if _, err := s.executions.GetExecution(ctx, id); err != nil {
		respondError(w, err, "failed to load execution")
		return
	}

	filter := core.ArtifactFilter{
		StepID:     core.StepID(q.Get("step")),
		NamePrefix: q.Get("prefix"),
	}
	if ct := q.Get("content_type"); ct != "" {
		contentType := core.ArtifactContentType(ct)
		if !core.ValidContentType(contentType) {
			respondBadRequest(w, "unknown content type: "+ct)
			return
		}
		filter.ContentType = contentType
	}

	artifacts, err := s.artifacts.GetArtifactsByExecution(ctx, id, filter)
	if err != nil {
		respondError(w, err, "failed to list artifacts")
		return
	}
	respondJSON(w, http.StatusOK, artifacts)
}

// handleExecutionLog returns the execution's audit trail in append
// order.
func (s *Server) handleExecutionLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := core.ExecutionID(chi.URLParam(r, "executionID"))

	if _, err := s.executions.GetExecution(ctx, id); err != nil {
		respondError(w, err, "failed to load execution")
		return
	}
	entries, err := s.auditLog.GetExecutionLog(ctx, id)
	if err != nil {
		respondError(w, err, "failed to load execution log")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleListWorkflows returns the names of available workflow templates.
func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	if s.templates == nil {
		respondJSON(w, http.StatusOK, []string{})
		return
	}
	respondJSON(w, http.StatusOK, s.templates.List())
}

// splitParam splits a comma-separated query parameter, dropping empty
// entries.
func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

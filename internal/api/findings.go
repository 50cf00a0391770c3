package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scscodes/conductor/internal/core"
)

// handleQueryFindings returns findings matching the query filters:
// scope, project, category, severity, status, tag, execution, limit.
func (s *Server) handleQueryFindings(w http.ResponseWriter, r *http.Request) {
	filter, err := findingFilterFromQuery(r.URL.Query())
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	findings, err := s.findings.QueryFindings(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to query findings", "error", err)
		respondError(w, err, "failed to query findings")
		return
	}
	respondJSON(w, http.StatusOK, findings)
}

// handleSearchFindings returns findings whose title or content matches
// ?q=, further narrowed by the same filters as handleQueryFindings.
func (s *Server) handleSearchFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		respondBadRequest(w, "q is required")
		return
	}

	filter, err := findingFilterFromQuery(q)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	findings, err := s.findings.SearchFindings(r.Context(), text, filter)
	if err != nil {
		s.logger.Error("failed to search findings", "error", err)
		respondError(w, err, "failed to search findings")
		return
	}
	respondJSON(w, http.StatusOK, findings)
}

// handleProjectFindings returns a project's findings.
func (s *Server) handleProjectFindings(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	filter, err := findingFilterFromQuery(r.URL.Query())
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	filter.Scope = core.ScopeProject
	filter.ProjectID = projectID

	findings, err := s.findings.QueryFindings(r.Context(), filter)
	if err != nil {
		respondError(w, err, "failed to query findings")
		return
	}
	respondJSON(w, http.StatusOK, findings)
}

// handleGetFinding returns one finding by ID.
func (s *Server) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "findingID")

	finding, err := s.findings.GetFinding(r.Context(), id)
	if err != nil {
		respondError(w, err, "failed to load finding")
		return
	}
	respondJSON(w, http.StatusOK, finding)
}

// handlePatchFinding applies a partial update. Scope and source
// references are immutable; the store rejects patches touching them.
func (s *Server) handlePatchFinding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "findingID")

	var patch core.FindingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if patch.IsEmpty() {
		respondBadRequest(w, "patch body is empty")
		return
	}

	finding, err := s.findings.UpdateFinding(r.Context(), id, patch)
	if err != nil {
		respondError(w, err, "failed to update finding")
		return
	}
	respondJSON(w, http.StatusOK, finding)
}

func findingFilterFromQuery(q url.Values) (core.FindingFilter, error) {
	filter := core.FindingFilter{
		ProjectID:         q.Get("project"),
		Category:          q.Get("category"),
		Tag:               q.Get("tag"),
		SourceExecutionID: core.ExecutionID(q.Get("execution")),
	}

	if scope := q.Get("scope"); scope != "" {
		s := core.FindingScope(scope)
		if !core.ValidScope(s) {
			return filter, core.ErrValidation("INVALID_SCOPE", "unknown scope: "+scope)
		}
		filter.Scope = s
	}
	if severity := q.Get("severity"); severity != "" {
		sev := core.FindingSeverity(severity)
		if !core.ValidSeverity(sev) {
			return filter, core.ErrValidation("INVALID_SEVERITY", "unknown severity: "+severity)
		}
		filter.Severity = sev
	}
	if status := q.Get("status"); status != "" {
		st := core.FindingStatus(status)
		if !core.ValidFindingStatus(st) {
			return filter, core.ErrValidation("INVALID_STATUS", "unknown status: "+status)
		}
		filter.Status = st
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, core.ErrValidation("INVALID_LIMIT", "limit must be a non-negative integer")
		}
		filter.Limit = n
	}

	return filter, nil
}

package api

import (
	"errors"
	"net/http"

	"github.com/scscodes/conductor/internal/core"
)

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation, core.ErrCatCompile:
		return http.StatusBadRequest, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatTransition, core.ErrCatDependency:
		return http.StatusConflict, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondError maps a domain error onto an HTTP status. Non-domain
// errors become 500s with a generic message so internals never leak.
func respondError(w http.ResponseWriter, err error, fallback string) {
	var domErr *core.DomainError
	if status, ok := httpStatusForDomainError(err); ok && errors.As(err, &domErr) {
		respondJSON(w, status, errorResponse{Error: domErr.Message, Code: domErr.Code})
		return
	}
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: fallback})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// Package api provides HTTP REST API handlers for the conductor
// workflow engine.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/scscodes/conductor/internal/core"
	"github.com/scscodes/conductor/internal/engine"
	"github.com/scscodes/conductor/internal/lifecycle"
)

// Server provides HTTP REST API endpoints for workflow executions and
// findings.
type Server struct {
	router    chi.Router
	engine    *engine.Engine
	lifecycle *lifecycle.Manager

	executions core.ExecutionStore
	steps      core.StepStore
	artifacts  core.ArtifactStore
	findings   core.FindingStore
	auditLog   core.ExecutionLogger

	templates      core.TemplateProvider
	logger         *slog.Logger
	allowedOrigins []string
}

// Stores bundles the persistence ports the API reads from.
type Stores struct {
	Executions core.ExecutionStore
	Steps      core.StepStore
	Artifacts  core.ArtifactStore
	Findings   core.FindingStore
	AuditLog   core.ExecutionLogger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithTemplates exposes workflow template names on the API.
func WithTemplates(tp core.TemplateProvider) ServerOption {
	return func(s *Server) {
		s.templates = tp
	}
}

// WithAllowedOrigins sets the CORS origin allowlist.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// NewServer creates a new API server.
func NewServer(eng *engine.Engine, lm *lifecycle.Manager, stores Stores, opts ...ServerOption) *Server {
	s := &Server{
		engine:         eng,
		lifecycle:      lm,
		executions:     stores.Executions,
		steps:          stores.Steps,
		artifacts:      stores.Artifacts,
		findings:       stores.Findings,
		auditLog:       stores.AuditLog,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures Chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/executions", func(r chi.Router) {
			r.Post("/", s.handleStartExecution)
			r.Get("/", s.handleListExecutions)

			r.Route("/{executionID}", func(r chi.Router) {
				r.Get("/", s.handleGetExecution)
				r.Post("/resume", s.handleResumeExecution)
				r.Get("/steps", s.handleListSteps)
				r.Get("/steps/ready", s.handleReadySteps)
				r.Get("/artifacts", s.handleListArtifacts)
				r.Get("/log", s.handleExecutionLog)
			})
		})

		r.Route("/findings", func(r chi.Router) {
			r.Get("/", s.handleQueryFindings)
			r.Get("/search", s.handleSearchFindings)
			r.Route("/{findingID}", func(r chi.Router) {
				r.Get("/", s.handleGetFinding)
				r.Patch("/", s.handlePatchFinding)
			})
		})

		r.Get("/projects/{projectID}/findings", s.handleProjectFindings)
		r.Get("/workflows", s.handleListWorkflows)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe starts the HTTP server and shuts it down when the
// context is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting API server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

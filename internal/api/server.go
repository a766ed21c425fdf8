// Package api serves the portal's JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/fmuoria/cv-grader/internal/agent"
	"github.com/fmuoria/cv-grader/internal/auth"
	"github.com/fmuoria/cv-grader/internal/export"
	"github.com/fmuoria/cv-grader/internal/ingestion"
	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/logging"
	"github.com/fmuoria/cv-grader/internal/repository"
)

const (
	recentJobsOnIndex = 3
	multipartMemory   = 32 << 20
)

// GeneratorFactory builds a model client from settings
type GeneratorFactory func(ctx context.Context, s llm.Settings) (llm.Generator, error)

// Deps are the services the API is built from. Gmail and Sheets are
// optional; their endpoints answer 503 when nil.
type Deps struct {
	Repo   *repository.Repository
	Agent  *agent.GradingAgent
	Auth   *auth.Service
	Files  *ingestion.FileHandler
	Logger *logging.Logger

	LLMSettings  llm.Settings
	NewGenerator GeneratorFactory

	Gmail         *ingestion.GmailHandler
	Sheets        *export.SheetsExporter
	SpreadsheetID string
}

// Server handles HTTP requests
type Server struct {
	repo   *repository.Repository
	agent  *agent.GradingAgent
	auth   *auth.Service
	files  *ingestion.FileHandler
	logger *logging.Logger

	llmSettings  llm.Settings
	newGenerator GeneratorFactory

	gmail         *ingestion.GmailHandler
	sheets        *export.SheetsExporter
	spreadsheetID string

	now func() time.Time

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// NewServer creates a new API server
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Files == nil {
		d.Files = ingestion.NewFileHandler(ingestion.DefaultMaxFileSize, d.Logger)
	}
	if d.NewGenerator == nil {
		d.NewGenerator = llm.New
	}
	return &Server{
		repo:          d.Repo,
		agent:         d.Agent,
		auth:          d.Auth,
		files:         d.Files,
		logger:        d.Logger,
		llmSettings:   d.LLMSettings,
		newGenerator:  d.NewGenerator,
		gmail:         d.Gmail,
		sheets:        d.Sheets,
		spreadsheetID: d.SpreadsheetID,
		now:           time.Now,
	}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.requireAuth(s.handleLogout))
	mux.HandleFunc("GET /auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("POST /jobs", s.requireAdmin(s.handleCreateJob))
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}/applications", s.handleSubmitApplication)
	mux.HandleFunc("GET /jobs/{id}/applications", s.requireAdmin(s.handleJobApplications))
	mux.HandleFunc("POST /jobs/{id}/grade", s.requireAdmin(s.handleGradeJob))
	mux.HandleFunc("GET /jobs/{id}/ranking", s.requireAdmin(s.handleRanking))
	mux.HandleFunc("GET /jobs/{id}/ranking.xlsx", s.requireAdmin(s.handleRankingExcel))
	mux.HandleFunc("POST /jobs/{id}/ranking/sheets", s.requireAdmin(s.handleRankingSheets))
	mux.HandleFunc("POST /jobs/{id}/ingest/gmail", s.requireAdmin(s.handleIngestGmail))

	mux.HandleFunc("GET /applications/{id}", s.requireAdmin(s.handleGetApplication))
	mux.HandleFunc("GET /applications/{id}/documents/{index}", s.requireAdmin(s.handleDocument))

	mux.HandleFunc("GET /stats", s.requireAdmin(s.handleStats))

	return s.loggingMiddleware(mux)
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = hs
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.closed = true
	s.mu.Unlock()

	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}

// handleRoot provides API information and the latest jobs
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	recent, err := s.repo.RecentJobs(r.Context(), recentJobsOnIndex)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "CV Grader",
		"version":    "1.0.0",
		"recentJobs": recent,
		"endpoints": map[string]string{
			"GET /jobs":                      "List open jobs",
			"POST /jobs/{id}/applications":   "Apply to a job",
			"POST /jobs/{id}/grade":          "Grade and rank applicants (admin)",
			"GET /jobs/{id}/ranking":         "Ranked applicants (admin)",
			"GET /jobs/{id}/ranking.xlsx":    "Ranking as an Excel workbook (admin)",
			"POST /jobs/{id}/ranking/sheets": "Ranking to Google Sheets (admin)",
			"POST /jobs/{id}/ingest/gmail":   "Import applications from Gmail (admin)",
			"POST /auth/login":               "Sign in",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps err to a status; server errors are logged and hidden
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.respondError(w, status, "internal server error")
		return
	}

	if fields := validationFields(err); fields != nil {
		s.respondJSON(w, status, map[string]interface{}{
			"error":  err.Error(),
			"fields": fields,
		})
		return
	}
	s.respondError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

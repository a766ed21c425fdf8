package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/fmuoria/cv-grader/internal/agent"
	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/ingestion"
	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/models"
	"github.com/fmuoria/cv-grader/internal/repository"
)

type submitResponse struct {
	Application   models.Application `json:"application"`
	Analyzed      bool               `json:"analyzed"`
	AnalysisError string             `json:"analysisError,omitempty"`
}

// generatorFor returns the model for a request: a transient client when
// the caller supplies a key, the configured default otherwise (nil). The
// returned release func must always be called.
func (s *Server) generatorFor(ctx context.Context, apiKey string) (llm.Generator, func(), error) {
	if apiKey == "" {
		return nil, func() {}, nil
	}

	gen, err := s.newGenerator(ctx, s.llmSettings.WithAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			return nil, func() {}, err
		}
		return nil, func() {}, fmt.Errorf("%w: %v", errUpstream, err)
	}
	return gen, func() {
		if err := gen.Close(); err != nil {
			s.logger.Warn("failed to close model client", "error", err)
		}
	}, nil
}

// parseSubmission reads a JSON body or a multipart form with files under
// "documents"
func (s *Server) parseSubmission(r *http.Request) (forms.SubmitApplicationRequest, error) {
	var req forms.SubmitApplicationRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := decodeJSON(r, &req); err != nil {
			return req, err
		}
		docs, err := s.files.RebuildDocuments(req.Documents)
		if err != nil {
			return req, err
		}
		req.Documents = docs
		return req, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return req, err
		}
		return req, fmt.Errorf("%w: failed to parse form: %v", errBadRequest, err)
	}

	req.Name = r.FormValue("name")
	req.Email = r.FormValue("email")
	req.CVText = r.FormValue("cvText")
	req.APIKey = r.FormValue("apiKey")

	docs, err := s.files.DocumentsFromMultipart(r.MultipartForm, "documents")
	if err != nil {
		return req, err
	}
	req.Documents = docs

	return req, nil
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if job.DeadlinePassed(s.now()) {
		s.respondErr(w, r, errDeadlinePassed)
		return
	}

	// every file may reach the limit; leave room for the text fields
	r.Body = http.MaxBytesReader(w, r.Body, 10*s.files.MaxFileSize()+multipartMemory)

	req, err := s.parseSubmission(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondErr(w, r, err)
		return
	}

	app, err := s.repo.CreateApplication(ctx, req.Application(job.ID))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.logger.Info("application submitted", "job", job.ID, "application", app.ID, "documents", len(app.Documents))

	resp := submitResponse{Application: app}
	if job.AIGrading {
		analyzed, err := s.analyze(ctx, job, app, req.APIKey)
		if err != nil {
			s.logger.Warn("analysis failed, application kept ungraded", "application", app.ID, "error", err)
			resp.AnalysisError = err.Error()
		} else {
			resp.Application = analyzed
			resp.Analyzed = true
		}
	}

	s.respondJSON(w, http.StatusCreated, resp)
}

func (s *Server) analyze(ctx context.Context, job models.Job, app models.Application, apiKey string) (models.Application, error) {
	gen, release, err := s.generatorFor(ctx, apiKey)
	if err != nil {
		return app, err
	}
	defer release()

	if gen == nil && !s.agent.HasGenerator() {
		return app, agent.ErrNoGenerator
	}
	return s.agent.AnalyzeSubmission(ctx, job, app, gen)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, err := s.repo.GetApplication(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	resp := map[string]interface{}{"application": app}
	if job, err := s.repo.GetJob(ctx, app.JobID); err == nil {
		resp["job"] = job
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleDocument streams one decoded document of an application
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	app, err := s.repo.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 || idx >= len(app.Documents) {
		s.respondErr(w, r, fmt.Errorf("document %s: %w", r.PathValue("index"), repository.ErrNotFound))
		return
	}
	doc := app.Documents[idx]

	data, mimeType, err := ingestion.DecodeInline(doc)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	if !ingestion.IsDocumentMIME(mimeType) {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write document", "application", app.ID, "error", err)
	}
}

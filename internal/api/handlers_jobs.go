package api

import (
	"net/http"
	"strconv"

	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/models"
)

type jobDetails struct {
	models.Job
	DeadlinePassed bool                 `json:"deadlinePassed"`
	Applications   []models.Application `json:"applications,omitempty"`
	TotalApplied   *int                 `json:"totalApplications,omitempty"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.repo.JobSummaries(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req forms.CreateJobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondErr(w, r, err)
		return
	}

	job, err := s.repo.CreateJob(r.Context(), req.Job())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("job created", "job", job.ID, "title", job.Title, "aiGrading", job.AIGrading)
	s.respondJSON(w, http.StatusCreated, job)
}

// handleGetJob returns a job. Admins also get its applications, capped by
// the optional limit query parameter.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	resp := jobDetails{Job: job, DeadlinePassed: job.DeadlinePassed(s.now())}

	if sess, ok := s.session(r); ok && sess.User.IsAdmin {
		apps, err := s.repo.ApplicationsForJob(ctx, job.ID)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		total := len(apps)
		resp.TotalApplied = &total

		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(apps) {
			apps = apps[:limit]
		}
		resp.Applications = apps
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	apps, err := s.repo.ApplicationsForJob(ctx, job.ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, apps)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.repo.Stats(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

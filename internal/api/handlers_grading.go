package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fmuoria/cv-grader/internal/export"
	"github.com/fmuoria/cv-grader/internal/forms"
)

func (s *Server) handleGradeJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req forms.GradeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	gen, release, err := s.generatorFor(ctx, strings.TrimSpace(req.APIKey))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	defer release()

	report, err := s.agent.GradeJobWith(ctx, r.PathValue("id"), gen)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := s.repo.GetRanking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ranking)
}

func (s *Server) handleRankingExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ranking, err := s.repo.GetRanking(ctx, job.ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteRankingWorkbook(&buf, job, ranking, s.now()); err != nil {
		s.respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ranking_%s.xlsx"`, job.ID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write workbook", "job", job.ID, "error", err)
	}
}

func (s *Server) handleRankingSheets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.sheets == nil {
		s.respondErr(w, r, fmt.Errorf("google sheets: %w", errIntegrationDisabled))
		return
	}

	var req forms.SheetsExportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	spreadsheetID := strings.TrimSpace(req.SpreadsheetID)
	if spreadsheetID == "" {
		spreadsheetID = s.spreadsheetID
	}
	if spreadsheetID == "" {
		s.respondErr(w, r, &forms.ValidationError{Fields: map[string]string{"spreadsheetId": "is required"}})
		return
	}

	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	ranking, err := s.repo.GetRanking(ctx, job.ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	rows, err := s.sheets.ExportRanking(ctx, spreadsheetID, job, ranking)
	if err != nil {
		s.respondErr(w, r, fmt.Errorf("%w: %v", errUpstream, err))
		return
	}

	s.logger.Info("ranking exported to sheets", "job", job.ID, "spreadsheet", spreadsheetID, "rows", rows)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"spreadsheetId": spreadsheetID,
		"rows":          rows,
	})
}

// handleIngestGmail imports one application per sender of the messages
// matching the subject
func (s *Server) handleIngestGmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.gmail == nil {
		s.respondErr(w, r, fmt.Errorf("gmail: %w", errIntegrationDisabled))
		return
	}

	var req forms.GmailIngestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.respondErr(w, r, err)
		return
	}

	job, err := s.repo.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	imported, err := s.gmail.Import(ctx, s.repo, req.Subject, job.ID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("applications imported from gmail", "job", job.ID, "count", len(imported))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported":     len(imported),
		"applications": imported,
	})
}

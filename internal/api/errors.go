package api

import (
	"errors"
	"net/http"

	"github.com/fmuoria/cv-grader/internal/agent"
	"github.com/fmuoria/cv-grader/internal/auth"
	"github.com/fmuoria/cv-grader/internal/forms"
	"github.com/fmuoria/cv-grader/internal/ingestion"
	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/repository"
)

var (
	errBadRequest          = errors.New("invalid request body")
	errForbidden           = errors.New("admin access required")
	errDeadlinePassed      = errors.New("the application deadline for this job has passed")
	errUpstream            = errors.New("AI service error")
	errIntegrationDisabled = errors.New("integration not configured")
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		verr   *forms.ValidationError
		maxErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr),
		errors.Is(err, errBadRequest),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, ingestion.ErrUnsupportedFile),
		errors.Is(err, ingestion.ErrInvalidDocument),
		errors.Is(err, agent.ErrNoGenerator),
		errors.Is(err, llm.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyExists),
		errors.Is(err, auth.ErrEmailExists),
		errors.Is(err, agent.ErrGradingDisabled),
		errors.Is(err, agent.ErrNoApplications),
		errors.Is(err, errDeadlinePassed):
		return http.StatusConflict
	case errors.Is(err, ingestion.ErrFileTooLarge),
		errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUpstream):
		return http.StatusBadGateway
	case errors.Is(err, errIntegrationDisabled),
		errors.Is(err, ingestion.ErrGmailNotAuthorized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationFields(err error) map[string]string {
	var verr *forms.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}

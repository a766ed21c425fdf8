// Package forms holds the request payloads accepted by the portal and
// their validation rules.
package forms

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fmuoria/cv-grader/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError lists the invalid fields of a request
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// check runs the struct tag rules and collects the failures
func check(v any) *ValidationError {
	verr := &ValidationError{}

	err := validate.Struct(v)
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), message(fe))
		}
	} else if err != nil {
		verr.add("request", err.Error())
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// CreateJobRequest is the admin form for posting a job
type CreateJobRequest struct {
	Title               string `json:"title" validate:"required,max=200"`
	Company             string `json:"company" validate:"required,max=200"`
	Description         string `json:"description" validate:"required"`
	Requirements        string `json:"requirements" validate:"required"`
	Skills              string `json:"skills"`
	ExperienceLevel     string `json:"experienceLevel" validate:"oneof=Entry-level Mid-level Senior-level Lead Executive"`
	AIGrading           bool   `json:"aiGrading"`
	ApplicationDeadline string `json:"applicationDeadline"`
}

// Normalize trims the text fields and applies the defaults
func (r *CreateJobRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Company = strings.TrimSpace(r.Company)
	r.Description = strings.TrimSpace(r.Description)
	r.Requirements = strings.TrimSpace(r.Requirements)
	r.ApplicationDeadline = strings.TrimSpace(r.ApplicationDeadline)
	r.ExperienceLevel = strings.TrimSpace(r.ExperienceLevel)
	if r.ExperienceLevel == "" {
		r.ExperienceLevel = models.LevelMid
	}
}

// Validate normalizes and validates the request
func (r *CreateJobRequest) Validate() error {
	r.Normalize()
	verr := check(r)
	if _, err := ParseDeadline(r.ApplicationDeadline); err != nil {
		verr.add("applicationDeadline", "must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	return verr.orNil()
}

// Job converts a validated request into a job; id and creation time are
// assigned by the repository
func (r *CreateJobRequest) Job() models.Job {
	deadline, _ := ParseDeadline(r.ApplicationDeadline)
	return models.Job{
		Title:               r.Title,
		Company:             r.Company,
		Description:         r.Description,
		Requirements:        r.Requirements,
		Skills:              ParseSkills(r.Skills),
		ExperienceLevel:     r.ExperienceLevel,
		AIGrading:           r.AIGrading,
		ApplicationDeadline: deadline,
	}
}

// ParseSkills splits a comma separated list, dropping blank entries
func ParseSkills(s string) []string {
	skills := make([]string, 0)
	for _, skill := range strings.Split(s, ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}

// ParseDeadline accepts an RFC 3339 timestamp or a calendar date. A date
// closes at the end of that day (UTC). Empty means no deadline.
func ParseDeadline(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline %q", s)
	}
	end := d.Add(24*time.Hour - time.Second)
	return &end, nil
}

// SubmitApplicationRequest is the candidate form for applying to a job
type SubmitApplicationRequest struct {
	Name      string            `json:"name" validate:"required,max=200"`
	Email     string            `json:"email" validate:"required,email"`
	CVText    string            `json:"cvText"`
	Documents []models.Document `json:"documents"`
	// APIKey optionally supplies a Gemini key for this submission only
	APIKey string `json:"apiKey"`
}

// Validate requires a name, a valid email and some CV content
func (r *SubmitApplicationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.APIKey = strings.TrimSpace(r.APIKey)

	verr := check(r)
	if strings.TrimSpace(r.CVText) == "" && len(r.Documents) == 0 {
		verr.add("cvText", "or at least one document is required")
	}
	return verr.orNil()
}

// Application converts a validated request; the job id is taken from the URL
func (r *SubmitApplicationRequest) Application(jobID string) models.Application {
	docs := r.Documents
	if docs == nil {
		docs = []models.Document{}
	}
	return models.Application{
		JobID:          jobID,
		ApplicantName:  r.Name,
		ApplicantEmail: r.Email,
		CVText:         r.CVText,
		Documents:      docs,
	}
}

// RegisterRequest is the sign-up form
type RegisterRequest struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	return check(r).orNil()
}

// LoginRequest is the sign-in form
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(r.Email)
	return check(r).orNil()
}

// GradeRequest optionally carries a Gemini key for one grading run
type GradeRequest struct {
	APIKey string `json:"apiKey"`
}

// GmailIngestRequest selects the messages imported for a job
type GmailIngestRequest struct {
	Subject string `json:"subject" validate:"required"`
}

func (r *GmailIngestRequest) Validate() error {
	r.Subject = strings.TrimSpace(r.Subject)
	return check(r).orNil()
}

// SheetsExportRequest overrides the configured spreadsheet
type SheetsExportRequest struct {
	SpreadsheetID string `json:"spreadsheetId"`
}

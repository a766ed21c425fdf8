package models

import (
	"time"
)

// Experience levels offered when posting a job
const (
	LevelEntry     = "Entry-level"
	LevelMid       = "Mid-level"
	LevelSenior    = "Senior-level"
	LevelLead      = "Lead"
	LevelExecutive = "Executive"
)

// ExperienceLevels lists the accepted experience levels in display order
var ExperienceLevels = []string{LevelEntry, LevelMid, LevelSenior, LevelLead, LevelExecutive}

// Score categories, highest first
const (
	CategoryExcellent = "Excellent"
	CategoryGood      = "Good"
	CategoryAverage   = "Average"
	CategoryPoor      = "Poor"
)

// Recommended application statuses produced by grading
const (
	StatusShortlisted = "Shortlisted"
	StatusReview      = "Under Review"
	StatusRejected    = "Rejected"
)

// Job represents a posted role
type Job struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Company             string     `json:"company"`
	Description         string     `json:"description"`
	Requirements        string     `json:"requirements"`
	Skills              []string   `json:"skills"`
	ExperienceLevel     string     `json:"experienceLevel"`
	CreatedAt           time.Time  `json:"createdAt"`
	AIGrading           bool       `json:"aiGrading"`
	ApplicationDeadline *time.Time `json:"applicationDeadline,omitempty"`
}

// DeadlinePassed reports whether applications are closed at now.
// A job without a deadline never closes.
func (j Job) DeadlinePassed(now time.Time) bool {
	if j.ApplicationDeadline == nil {
		return false
	}
	return now.After(*j.ApplicationDeadline)
}

// JobSummary is a job together with the number of applications it received
type JobSummary struct {
	Job
	Applications int `json:"applications"`
}

// Document is an uploaded file embedded as a data URL
type Document struct {
	FileName   string `json:"fileName"`
	InlineData string `json:"inlineData"` // data:<mime>;base64,<payload>
	Size       int64  `json:"size"`
}

// Analysis is the structured assessment returned by the grading model
type Analysis struct {
	Score           int      `json:"score"`
	Category        string   `json:"category,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Analysis        string   `json:"analysis,omitempty"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	MissingSkills   []string `json:"missingSkills"`
	SkillsMatch     []string `json:"skillsMatch"`
	ExperienceYears float64  `json:"experienceYears"`
	Recommendations []string `json:"recommendations"`
	Recommendation  string   `json:"recommendation,omitempty"`
	Status          string   `json:"status,omitempty"`
}

// Application is a candidate's submission against a job.
// Score and the fields after it are only set once the application is graded.
type Application struct {
	ID             string     `json:"id"`
	JobID          string     `json:"jobId"`
	ApplicantName  string     `json:"applicantName"`
	ApplicantEmail string     `json:"applicantEmail"`
	CVText         string     `json:"cvText"`
	Documents      []Document `json:"documents"`
	SubmittedAt    time.Time  `json:"submittedAt"`

	Score           *int       `json:"score,omitempty"`
	Analysis        *Analysis  `json:"analysis,omitempty"`
	SkillsMatch     []string   `json:"skillsMatch,omitempty"`
	ExperienceYears *float64   `json:"experienceYears,omitempty"`
	Status          string     `json:"status,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	GradedAt        *time.Time `json:"gradedAt,omitempty"`
}

// Graded reports whether the application carries a score
func (a Application) Graded() bool {
	return a.Score != nil
}

// ApplyAnalysis augments the application with the fields produced by grading
func (a *Application) ApplyAnalysis(an Analysis, at time.Time) {
	score := an.Score
	years := an.ExperienceYears
	analysis := an

	a.Score = &score
	a.Analysis = &analysis
	a.SkillsMatch = an.SkillsMatch
	a.ExperienceYears = &years
	a.Status = an.Status
	a.Summary = an.Summary
	a.GradedAt = &at
}

// User is a portal account. Admins manage jobs and see applications.
type User struct {
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"passwordHash"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Stats holds the admin dashboard counters
type Stats struct {
	TotalJobs                 int `json:"totalJobs"`
	TotalApplications         int `json:"totalApplications"`
	AverageApplicationsPerJob int `json:"averageApplicationsPerJob"`
}

// GradingFailure records an application that could not be graded
type GradingFailure struct {
	ApplicationID string `json:"applicationId"`
	ApplicantName string `json:"applicantName"`
	Error         string `json:"error"`
}

// GradingReport is the outcome of grading every application of a job
type GradingReport struct {
	JobID     string           `json:"jobId"`
	JobTitle  string           `json:"jobTitle"`
	Graded    int              `json:"graded"`
	Failures  []GradingFailure `json:"failures"`
	Ranking   []Application    `json:"ranking"`
	Timestamp string           `json:"timestamp"`
}

// CategoryForScore maps a 0-100 score to its category
func CategoryForScore(score int) string {
	switch {
	case score >= 90:
		return CategoryExcellent
	case score >= 70:
		return CategoryGood
	case score >= 50:
		return CategoryAverage
	default:
		return CategoryPoor
	}
}

// StatusForScore maps a 0-100 score to the recommended application status
func StatusForScore(score int) string {
	switch {
	case score >= 70:
		return StatusShortlisted
	case score >= 50:
		return StatusReview
	default:
		return StatusRejected
	}
}

// IsExperienceLevel reports whether level is one of ExperienceLevels
func IsExperienceLevel(level string) bool {
	for _, l := range ExperienceLevels {
		if l == level {
			return true
		}
	}
	return false
}

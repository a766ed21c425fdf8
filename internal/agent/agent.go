package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fmuoria/cv-grader/internal/ingestion"
	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/logging"
	"github.com/fmuoria/cv-grader/internal/models"
	"github.com/fmuoria/cv-grader/internal/repository"
	"github.com/fmuoria/cv-grader/internal/scoring"
)

// Rate limiting defaults for the model endpoint
const (
	requestDelay = 4 * time.Second
	maxRetries   = 3
	retryBackoff = 10 * time.Second
)

var (
	// ErrGradingDisabled is returned for jobs posted without AI grading
	ErrGradingDisabled = errors.New("AI grading is disabled for this job")
	// ErrNoApplications is returned when a job has nothing to grade
	ErrNoApplications = errors.New("no applications to grade")
	// ErrNoGenerator is returned when no model is configured or supplied
	ErrNoGenerator = errors.New("no AI model configured, supply an API key")
)

// ProgressCallback is called to report progress during grading
type ProgressCallback func(current, total int, message string)

// GradingAgent grades the applications of a job and caches the ranking
type GradingAgent struct {
	repo      *repository.Repository
	generator llm.Generator
	logger    *logging.Logger

	requestDelay time.Duration
	retryBackoff time.Duration
	maxRetries   int
	now          func() time.Time

	mu         sync.RWMutex
	progressCb ProgressCallback
}

// NewGradingAgent creates an agent. generator may be nil, in which case
// every call must supply one.
func NewGradingAgent(repo *repository.Repository, generator llm.Generator, logger *logging.Logger) *GradingAgent {
	if logger == nil {
		logger = logging.Nop()
	}
	return &GradingAgent{
		repo:         repo,
		generator:    generator,
		logger:       logger,
		requestDelay: requestDelay,
		retryBackoff: retryBackoff,
		maxRetries:   maxRetries,
		now:          time.Now,
	}
}

// SetRequestDelay sets the pause between two model calls
func (a *GradingAgent) SetRequestDelay(d time.Duration) {
	a.requestDelay = d
}

// SetRetryBackoff sets the base wait after a rate-limited call
func (a *GradingAgent) SetRetryBackoff(d time.Duration) {
	a.retryBackoff = d
}

// SetProgressCallback sets the progress callback function
func (a *GradingAgent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// HasGenerator reports whether a default model is configured
func (a *GradingAgent) HasGenerator() bool {
	return a.generator != nil
}

func (a *GradingAgent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, message)
	}
}

// GradeJob grades every application of a job with the default model
func (a *GradingAgent) GradeJob(ctx context.Context, jobID string) (models.GradingReport, error) {
	return a.GradeJobWith(ctx, jobID, nil)
}

// GradeJobWith grades every application of a job sequentially. gen
// overrides the default model when not nil. Applications that fail are
// reported and stay ungraded; the rest are written back and the ranking
// is cached for the job.
func (a *GradingAgent) GradeJobWith(ctx context.Context, jobID string, gen llm.Generator) (models.GradingReport, error) {
	job, err := a.repo.GetJob(ctx, jobID)
	if err != nil {
		return models.GradingReport{}, err
	}
	if !job.AIGrading {
		return models.GradingReport{}, ErrGradingDisabled
	}

	if gen == nil {
		gen = a.generator
	}
	if gen == nil {
		return models.GradingReport{}, ErrNoGenerator
	}

	apps, err := a.repo.ApplicationsForJob(ctx, jobID)
	if err != nil {
		return models.GradingReport{}, fmt.Errorf("failed to load applications: %w", err)
	}
	if len(apps) == 0 {
		return models.GradingReport{}, ErrNoApplications
	}

	logger := a.logger.With("job", job.ID, "model", gen.Model())
	logger.Info("grading applications", "count", len(apps))

	scorer := scoring.NewScorer(gen, ingestion.ExtractText)
	report := models.GradingReport{
		JobID:    job.ID,
		JobTitle: job.Title,
		Failures: []models.GradingFailure{},
	}
	graded := make([]models.Application, 0, len(apps))

	// keeps what was graded before an interruption
	abort := func(err error) (models.GradingReport, error) {
		if len(graded) > 0 {
			if _, serr := a.repo.UpdateApplications(context.WithoutCancel(ctx), graded); serr != nil {
				logger.Error("failed to save graded applications", "error", serr)
			} else {
				logger.Warn("grading interrupted, completed grades saved", "graded", len(graded), "total", len(apps))
			}
		}
		return models.GradingReport{}, err
	}

	for i := range apps {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		if i > 0 {
			if err := sleep(ctx, a.requestDelay); err != nil {
				return abort(err)
			}
		}

		app := &apps[i]
		a.reportProgress(i, len(apps), fmt.Sprintf("Grading %s (%d/%d)", app.ApplicantName, i+1, len(apps)))

		an, err := a.scoreWithRetry(ctx, scorer, job, *app)
		if err != nil {
			if ctx.Err() != nil {
				return abort(ctx.Err())
			}
			logger.Error("failed to grade application", "application", app.ID, "applicant", app.ApplicantName, "error", err)
			report.Failures = append(report.Failures, models.GradingFailure{
				ApplicationID: app.ID,
				ApplicantName: app.ApplicantName,
				Error:         err.Error(),
			})
			continue
		}

		app.ApplyAnalysis(an, a.now().UTC())
		graded = append(graded, *app)
	}

	if len(graded) > 0 {
		if _, err := a.repo.UpdateApplications(ctx, graded); err != nil {
			return models.GradingReport{}, fmt.Errorf("failed to save graded applications: %w", err)
		}
	}

	a.reportProgress(len(apps), len(apps), "Ranking candidates...")

	Rank(apps)
	if err := a.repo.SaveRanking(ctx, job.ID, apps); err != nil {
		return models.GradingReport{}, err
	}

	report.Graded = len(graded)
	report.Ranking = apps
	report.Timestamp = a.now().UTC().Format(time.RFC3339)

	logger.Info("grading complete", "graded", report.Graded, "failed", len(report.Failures))
	a.reportProgress(len(apps), len(apps), "Grading complete!")

	return report, nil
}

// AnalyzeSubmission grades a freshly submitted application when its job
// has AI grading enabled. The stored record is updated in place.
func (a *GradingAgent) AnalyzeSubmission(ctx context.Context, job models.Job, app models.Application, gen llm.Generator) (models.Application, error) {
	if !job.AIGrading {
		return app, ErrGradingDisabled
	}
	if gen == nil {
		gen = a.generator
	}
	if gen == nil {
		return app, ErrNoGenerator
	}

	scorer := scoring.NewScorer(gen, ingestion.ExtractText)
	an, err := a.scoreWithRetry(ctx, scorer, job, app)
	if err != nil {
		return app, err
	}

	app.ApplyAnalysis(an, a.now().UTC())
	if _, err := a.repo.UpdateApplications(ctx, []models.Application{app}); err != nil {
		return app, fmt.Errorf("failed to save analysis: %w", err)
	}
	return app, nil
}

func (a *GradingAgent) scoreWithRetry(ctx context.Context, scorer *scoring.Scorer, job models.Job, app models.Application) (models.Analysis, error) {
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.retryBackoff * time.Duration(attempt)
			a.logger.Warn("rate limited, retrying", "application", app.ID, "attempt", attempt, "backoff", backoff)
			if err := sleep(ctx, backoff); err != nil {
				return models.Analysis{}, err
			}
		}

		an, err := scorer.Score(ctx, job, app)
		if err == nil {
			return an, nil
		}
		lastErr = err

		if !llm.IsRateLimitError(err) {
			return models.Analysis{}, err
		}
	}

	return models.Analysis{}, fmt.Errorf("giving up after %d retries: %w", a.maxRetries, lastErr)
}

// Rank sorts applications by score descending. Ungraded applications go
// last and ties keep the earliest submission first.
func Rank(apps []models.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		gi, gj := apps[i].Graded(), apps[j].Graded()
		if gi != gj {
			return gi
		}
		if gi && *apps[i].Score != *apps[j].Score {
			return *apps[i].Score > *apps[j].Score
		}
		return apps[i].SubmittedAt.Before(apps[j].SubmittedAt)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

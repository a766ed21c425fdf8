package repository

import (
	"context"
	"fmt"

	"github.com/fmuoria/cv-grader/internal/models"
)

// ListApplications returns every application in stored order
func (r *Repository) ListApplications(ctx context.Context) ([]models.Application, error) {
	var apps []models.Application
	if err := r.load(ctx, KeyApplications, &apps); err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []models.Application{}
	}
	return apps, nil
}

// ApplicationsForJob returns the applications whose jobId equals jobID
func (r *Repository) ApplicationsForJob(ctx context.Context, jobID string) ([]models.Application, error) {
	apps, err := r.ListApplications(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Application, 0)
	for _, a := range apps {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

// GetApplication returns the application with id
func (r *Repository) GetApplication(ctx context.Context, id string) (models.Application, error) {
	apps, err := r.ListApplications(ctx)
	if err != nil {
		return models.Application{}, err
	}
	for _, a := range apps {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Application{}, fmt.Errorf("application %s: %w", id, ErrNotFound)
}

// CreateApplication assigns an id and submission time to app and appends it.
// The job id is not checked against the jobs collection.
func (r *Repository) CreateApplication(ctx context.Context, app models.Application) (models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps, err := r.ListApplications(ctx)
	if err != nil {
		return models.Application{}, err
	}

	now := r.now()
	app.ID = nextID(now, func(id string) bool {
		for _, a := range apps {
			if a.ID == id {
				return true
			}
		}
		return false
	})
	app.SubmittedAt = now.UTC()
	if app.Documents == nil {
		app.Documents = []models.Document{}
	}

	apps = append(apps, app)
	if err := r.save(ctx, KeyApplications, apps); err != nil {
		return models.Application{}, fmt.Errorf("failed to save applications: %w", err)
	}
	return app, nil
}

// UpdateApplications replaces stored applications that share an id with one
// of updated. Unknown ids are ignored. It returns how many were replaced.
func (r *Repository) UpdateApplications(ctx context.Context, updated []models.Application) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apps, err := r.ListApplications(ctx)
	if err != nil {
		return 0, err
	}

	byID := make(map[string]models.Application, len(updated))
	for _, a := range updated {
		byID[a.ID] = a
	}

	replaced := 0
	for i, a := range apps {
		if u, ok := byID[a.ID]; ok {
			apps[i] = u
			replaced++
		}
	}
	if replaced == 0 {
		return 0, nil
	}

	if err := r.save(ctx, KeyApplications, apps); err != nil {
		return 0, fmt.Errorf("failed to save applications: %w", err)
	}
	return replaced, nil
}

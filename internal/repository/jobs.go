package repository

import (
	"context"
	"fmt"
	"math"

	"github.com/fmuoria/cv-grader/internal/models"
)

// ListJobs returns every job in stored order
func (r *Repository) ListJobs(ctx context.Context) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.load(ctx, KeyJobs, &jobs); err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	return jobs, nil
}

// GetJob returns the job with id
func (r *Repository) GetJob(ctx context.Context, id string) (models.Job, error) {
	jobs, err := r.ListJobs(ctx)
	if err != nil {
		return models.Job{}, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return models.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
}

// CreateJob assigns an id and creation time to job and appends it
func (r *Repository) CreateJob(ctx context.Context, job models.Job) (models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs, err := r.ListJobs(ctx)
	if err != nil {
		return models.Job{}, err
	}

	now := r.now()
	job.ID = nextID(now, func(id string) bool {
		for _, j := range jobs {
			if j.ID == id {
				return true
			}
		}
		return false
	})
	job.CreatedAt = now.UTC()
	if job.Skills == nil {
		job.Skills = []string{}
	}

	jobs = append(jobs, job)
	if err := r.save(ctx, KeyJobs, jobs); err != nil {
		return models.Job{}, fmt.Errorf("failed to save jobs: %w", err)
	}
	return job, nil
}

// RecentJobs returns the first n jobs in stored order
func (r *Repository) RecentJobs(ctx context.Context, n int) ([]models.Job, error) {
	jobs, err := r.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(jobs) > n {
		jobs = jobs[:n]
	}
	return jobs, nil
}

// JobSummaries returns every job with the number of applications matching its id
func (r *Repository) JobSummaries(ctx context.Context) ([]models.JobSummary, error) {
	jobs, err := r.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	apps, err := r.ListApplications(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(jobs))
	for _, a := range apps {
		counts[a.JobID]++
	}

	summaries := make([]models.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, models.JobSummary{Job: j, Applications: counts[j.ID]})
	}
	return summaries, nil
}

// Stats computes the dashboard counters. Only applications belonging to a
// listed job are counted, as on the dashboard.
func (r *Repository) Stats(ctx context.Context) (models.Stats, error) {
	summaries, err := r.JobSummaries(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	var stats models.Stats
	stats.TotalJobs = len(summaries)
	for _, s := range summaries {
		stats.TotalApplications += s.Applications
	}
	if stats.TotalJobs > 0 {
		avg := float64(stats.TotalApplications) / float64(stats.TotalJobs)
		stats.AverageApplicationsPerJob = int(math.Floor(avg + 0.5))
	}
	return stats, nil
}

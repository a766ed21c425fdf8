package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/cv-grader/internal/models"
	"github.com/fmuoria/cv-grader/internal/storage"
)

func newTestRepo(t *testing.T) (*Repository, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	repo := New(store)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return fixed })
	return repo, store
}

func TestCreateJob_AssignsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	first, err := repo.CreateJob(ctx, models.Job{Title: "Backend Engineer"})
	require.NoError(t, err)
	second, err := repo.CreateJob(ctx, models.Job{Title: "Data Analyst"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID, "same clock tick must still yield distinct ids")
	assert.Equal(t, []string{}, first.Skills)
	assert.False(t, first.CreatedAt.IsZero())

	jobs, err := repo.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Backend Engineer", jobs[0].Title)
	assert.Equal(t, "Data Analyst", jobs[1].Title)
}

func TestListJobs_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	jobs, err := repo.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NotNil(t, jobs)
}

func TestGetJob_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentJobs(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	for _, title := range []string{"A", "B", "C", "D"} {
		_, err := repo.CreateJob(ctx, models.Job{Title: title})
		require.NoError(t, err)
	}

	recent, err := repo.RecentJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "A", recent[0].Title)
	assert.Equal(t, "C", recent[2].Title)

	all, err := repo.RecentJobs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestApplicationsForJob(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.CreateApplication(ctx, models.Application{JobID: "1", ApplicantName: "Jane"})
	require.NoError(t, err)
	_, err = repo.CreateApplication(ctx, models.Application{JobID: "2", ApplicantName: "John"})
	require.NoError(t, err)
	_, err = repo.CreateApplication(ctx, models.Application{JobID: "1", ApplicantName: "Ada"})
	require.NoError(t, err)

	apps, err := repo.ApplicationsForJob(ctx, "1")
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "Jane", apps[0].ApplicantName)
	assert.Equal(t, "Ada", apps[1].ApplicantName)

	none, err := repo.ApplicationsForJob(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetApplication(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	created, err := repo.CreateApplication(ctx, models.Application{JobID: "1", ApplicantName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, []models.Document{}, created.Documents)

	got, err := repo.GetApplication(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.ApplicantName)

	_, err = repo.GetApplication(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateApplications(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	a, err := repo.CreateApplication(ctx, models.Application{JobID: "1", ApplicantName: "Jane"})
	require.NoError(t, err)
	b, err := repo.CreateApplication(ctx, models.Application{JobID: "1", ApplicantName: "John"})
	require.NoError(t, err)

	a.ApplyAnalysis(models.Analysis{Score: 77, Status: models.StatusShortlisted}, time.Now())
	ghost := models.Application{ID: "ghost"}

	n, err := repo.UpdateApplications(ctx, []models.Application{a, ghost})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	apps, err := repo.ListApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.True(t, apps[0].Graded())
	assert.Equal(t, 77, *apps[0].Score)
	assert.Equal(t, b.ID, apps[1].ID)
	assert.False(t, apps[1].Graded())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{}, stats)

	j1, err := repo.CreateJob(ctx, models.Job{Title: "A"})
	require.NoError(t, err)
	j2, err := repo.CreateJob(ctx, models.Job{Title: "B"})
	require.NoError(t, err)

	for _, jobID := range []string{j1.ID, j1.ID, j2.ID, "orphan"} {
		_, err := repo.CreateApplication(ctx, models.Application{JobID: jobID})
		require.NoError(t, err)
	}

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 3, stats.TotalApplications)
	assert.Equal(t, 2, stats.AverageApplicationsPerJob, "1.5 rounds half up")

	summaries, err := repo.JobSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].Applications)
	assert.Equal(t, 1, summaries[1].Applications)
}

func TestRanking(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepo(t)

	_, err := repo.GetRanking(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)

	ranking := []models.Application{{ID: "a"}, {ID: "b"}}
	require.NoError(t, repo.SaveRanking(ctx, "42", ranking))

	_, ok, err := store.Get(ctx, "gradedApplications_42")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetRanking(ctx, "42")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)

	ids, err := repo.RankedJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"42"}, ids)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.GetUser(ctx, "jane@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	created, err := repo.CreateUser(ctx, models.User{Email: " Jane@Example.com ", Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Email)

	_, err = repo.CreateUser(ctx, models.User{Email: "JANE@example.com"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	got, err := repo.GetUser(ctx, "JANE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Name)
}

func TestNextID(t *testing.T) {
	now := time.UnixMilli(1000)
	taken := map[string]bool{"1000": true, "1001": true}

	id := nextID(now, func(id string) bool { return taken[id] })
	assert.Equal(t, "1002", id)
}

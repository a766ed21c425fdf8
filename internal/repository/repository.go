// Package repository implements the portal collections (jobs, applications,
// graded rankings, users) on top of a key-value store. Each collection is a
// single JSON array that is read whole, filtered in memory and written back.
package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fmuoria/cv-grader/internal/storage"
)

// Storage keys
const (
	KeyJobs          = "jobs"
	KeyApplications  = "applications"
	KeyUsers         = "users"
	RankingKeyPrefix = "gradedApplications_"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a unique record is created twice
	ErrAlreadyExists = errors.New("already exists")
)

// RankingKey returns the key holding the graded ranking of a job
func RankingKey(jobID string) string {
	return RankingKeyPrefix + jobID
}

// Repository serializes read-modify-write cycles on the collections
type Repository struct {
	store storage.Store
	mu    sync.Mutex
	now   func() time.Time
}

// New creates a repository backed by store
func New(store storage.Store) *Repository {
	return &Repository{
		store: store,
		now:   time.Now,
	}
}

// SetClock replaces the time source used for ids and timestamps
func (r *Repository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Repository) load(ctx context.Context, key string, v any) error {
	_, err := storage.GetJSON(ctx, r.store, key, v)
	return err
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	return storage.SetJSON(ctx, r.store, key, v)
}

// nextID derives an id from the current millisecond timestamp and bumps it
// until it does not collide with an existing one.
func nextID(now time.Time, taken func(string) bool) string {
	n := now.UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if !taken(id) {
			return id
		}
		n++
	}
}

package repository

import (
	"context"
	"fmt"

	"github.com/fmuoria/cv-grader/internal/models"
	"github.com/fmuoria/cv-grader/internal/storage"
)

// SaveRanking overwrites the cached graded ranking of a job
func (r *Repository) SaveRanking(ctx context.Context, jobID string, ranking []models.Application) error {
	if ranking == nil {
		ranking = []models.Application{}
	}
	if err := r.save(ctx, RankingKey(jobID), ranking); err != nil {
		return fmt.Errorf("failed to save ranking for job %s: %w", jobID, err)
	}
	return nil
}

// GetRanking returns the cached graded ranking of a job
func (r *Repository) GetRanking(ctx context.Context, jobID string) ([]models.Application, error) {
	var ranking []models.Application
	ok, err := storage.GetJSON(ctx, r.store, RankingKey(jobID), &ranking)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("ranking for job %s: %w", jobID, ErrNotFound)
	}
	if ranking == nil {
		ranking = []models.Application{}
	}
	return ranking, nil
}

// RankedJobIDs lists the jobs that have a cached ranking
func (r *Repository) RankedJobIDs(ctx context.Context) ([]string, error) {
	keys, err := r.store.Keys(ctx, RankingKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(RankingKeyPrefix):])
	}
	return ids, nil
}

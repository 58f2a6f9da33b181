package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	"ShadowTrade/pkg/cache"
)

// CacheJobStore keeps job statuses in a cache.Service (Redis or memory).
type CacheJobStore struct {
	cache cache.Service
	ttl   time.Duration
}

func NewCacheJobStore(c cache.Service, ttl time.Duration) *CacheJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CacheJobStore{cache: c, ttl: ttl}
}

var _ domrepo.JobStore = (*CacheJobStore)(nil)

func (s *CacheJobStore) SetJob(ctx context.Context, st models.JobStatus) error {
	return s.cache.Set(ctx, cache.GenerateKey("job", st.ID), st, s.ttl)
}

func (s *CacheJobStore) GetJob(ctx context.Context, id string) (models.JobStatus, error) {
	var st models.JobStatus
	err := s.cache.Get(ctx, cache.GenerateKey("job", id), &st)
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.JobStatus{}, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("get job: %w", err)
	}
	return st, nil
}

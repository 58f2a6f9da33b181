package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
)

// MemoryRecordStore keeps public records in process. Used when ClickHouse
// is disabled and in tests.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]models.PublicRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]models.PublicRecord)}
}

var _ domrepo.RecordStore = (*MemoryRecordStore)(nil)

func (s *MemoryRecordStore) Init(context.Context) error { return nil }

func (s *MemoryRecordStore) Save(_ context.Context, r models.PublicRecord) error {
	s.mu.Lock()
	s.records[r.SessionID] = r
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecordStore) Get(_ context.Context, sessionID string) (models.PublicRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[sessionID]
	if !ok {
		return models.PublicRecord{}, fmt.Errorf("record %s: %w", sessionID, models.ErrNotFound)
	}
	return r, nil
}

func (s *MemoryRecordStore) Top(_ context.Context, symbol string, limit int) ([]models.PublicRecord, error) {
	s.mu.RLock()
	out := make([]models.PublicRecord, 0, len(s.records))
	for _, r := range s.records {
		if symbol == "" || r.Symbol == symbol {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalReturn != out[j].TotalReturn {
			return out[i].TotalReturn > out[j].TotalReturn
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryRecordStore) Close() error { return nil }

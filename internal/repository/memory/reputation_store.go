package memory

import (
	"context"
	"sync"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// ReputationStore keeps reputation records in memory.
type ReputationStore struct {
	mu      sync.RWMutex
	records map[string]*models.ReputationRecord
}

func NewReputationStore() *ReputationStore {
	return &ReputationStore{records: make(map[string]*models.ReputationRecord)}
}

func (s *ReputationStore) Get(ctx context.Context, ip string) (*models.ReputationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ip]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (s *ReputationStore) Upsert(ctx context.Context, rec *models.ReputationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rec
	s.records[rec.IP] = &r
	return nil
}

package memory

import (
	"context"
	"sync"
)

// BatchStore tracks admitted batch keys in memory.
type BatchStore struct {
	mu   sync.Mutex
	seen map[batchKey]struct{}
}

type batchKey struct {
	tenantID string
	agentID  string
	batchID  string
}

func NewBatchStore() *BatchStore {
	return &BatchStore{seen: make(map[batchKey]struct{})}
}

func (s *BatchStore) Record(ctx context.Context, tenantID, agentID, batchID string) (bool, error) {
	key := batchKey{tenantID, agentID, batchID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

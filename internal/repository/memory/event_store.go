package memory

import (
	"context"
	"sync"
	"time"

	"telemetry-service/internal/models"
)

// EventStore is the in-process event log. Suitable for single-process
// deployments and tests; production uses the ClickHouse repository.
type EventStore struct {
	mu     sync.RWMutex
	events map[string][]models.Event // tenant_id -> append order
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string][]models.Event)}
}

func (s *EventStore) AppendEvents(ctx context.Context, events []models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.events[e.TenantID] = append(s.events[e.TenantID], e)
	}
	return nil
}

func (s *EventStore) QueryWindow(ctx context.Context, tenantID string, since time.Time) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events[tenantID] {
		if !e.TS.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len reports the number of stored events for a tenant.
func (s *EventStore) Len(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[tenantID])
}

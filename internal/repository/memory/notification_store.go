package memory

import (
	"context"
	"sync"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// NotificationStore keeps notification records in memory.
type NotificationStore struct {
	mu      sync.RWMutex
	records map[string][]*models.Notification // tenant_id -> records
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{records: make(map[string][]*models.Notification)}
}

func (s *NotificationStore) Insert(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *n
	s.records[n.TenantID] = append(s.records[n.TenantID], &rec)
	return nil
}

func (s *NotificationStore) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records[tenantID] {
		if rec.ID == id {
			rec.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

// List returns the recorded notifications for a tenant.
func (s *NotificationStore) List(tenantID string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, 0, len(s.records[tenantID]))
	for _, rec := range s.records[tenantID] {
		out = append(out, *rec)
	}
	return out
}

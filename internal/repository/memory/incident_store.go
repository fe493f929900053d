package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// IncidentStore keeps incident aggregates in memory.
type IncidentStore struct {
	mu        sync.RWMutex
	incidents map[string][]*models.Incident // tenant_id -> incidents
}

func NewIncidentStore() *IncidentStore {
	return &IncidentStore{incidents: make(map[string][]*models.Incident)}
}

func (s *IncidentStore) GetOpen(ctx context.Context, tenantID, kind string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents[tenantID] {
		if inc.Kind == kind && inc.Status == models.StatusOpen {
			return cloneIncident(inc), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *IncidentStore) Insert(ctx context.Context, inc *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.TenantID] = append(s.incidents[inc.TenantID], cloneIncident(inc))
	return nil
}

func (s *IncidentStore) Update(ctx context.Context, inc *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.incidents[inc.TenantID] {
		if existing.ID == inc.ID {
			s.incidents[inc.TenantID][i] = cloneIncident(inc)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *IncidentStore) GetByID(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inc := range s.incidents[tenantID] {
		if inc.ID == id {
			return cloneIncident(inc), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *IncidentStore) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Incident, 0, len(s.incidents[tenantID]))
	for _, inc := range s.incidents[tenantID] {
		out = append(out, *cloneIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *IncidentStore) ListSince(ctx context.Context, tenantID string, since time.Time) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Incident
	for _, inc := range s.incidents[tenantID] {
		if !inc.LastSeen.Before(since) {
			out = append(out, *cloneIncident(inc))
		}
	}
	return out, nil
}

func (s *IncidentStore) Search(ctx context.Context, tenantID string, filter repository.IncidentFilter) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Incident
	for _, inc := range s.incidents[tenantID] {
		if !matchIncident(inc, filter) {
			continue
		}
		out = append(out, *cloneIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *IncidentStore) Acknowledge(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.incidents[tenantID] {
		if inc.ID == id {
			inc.Status = models.StatusAcknowledged
			return nil
		}
	}
	return repository.ErrNotFound
}

func matchIncident(inc *models.Incident, f repository.IncidentFilter) bool {
	if f.Severity != "" && inc.Severity != f.Severity {
		return false
	}
	if f.Status != "" && inc.Status != f.Status {
		return false
	}
	if f.Host != "" {
		host, _ := inc.Context["host"].(string)
		if host != f.Host {
			return false
		}
	}
	if !f.Since.IsZero() && inc.LastSeen.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && inc.LastSeen.After(f.Until) {
		return false
	}
	return true
}

func cloneIncident(inc *models.Incident) *models.Incident {
	out := *inc
	if inc.Context != nil {
		out.Context = make(map[string]interface{}, len(inc.Context))
		for k, v := range inc.Context {
			out.Context[k] = v
		}
	}
	return &out
}

package memory

import (
	"context"
	"sort"
	"sync"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// TenantStore keeps tenant accounts in memory.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*models.Tenant
}

func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[string]*models.Tenant)}
}

func (s *TenantStore) Get(ctx context.Context, id string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *t
	return &out, nil
}

func (s *TenantStore) Create(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *tenant
	s.tenants[tenant.ID] = &t
	return nil
}

// AgentStore keeps agents and assets in memory.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]*models.Agent // agent id -> agent
	assets map[string]*models.Asset // tenant_id + "/" + host -> asset
}

func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents: make(map[string]*models.Agent),
		assets: make(map[string]*models.Asset),
	}
}

func (s *AgentStore) UpsertAgent(ctx context.Context, agent *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *agent
	s.agents[agent.ID] = &a
	return nil
}

func (s *AgentStore) UpsertAsset(ctx context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *asset
	s.assets[asset.TenantID+"/"+asset.Host] = &a
	return nil
}

func (s *AgentStore) ListAssets(ctx context.Context, tenantID string) ([]models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Asset
	for _, a := range s.assets {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeenAt.After(out[j].LastSeenAt) })
	return out, nil
}

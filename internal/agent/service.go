// Package agent handles collector registration and check-in.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// UploadIntervalSec is how often registered agents should submit batches.
const UploadIntervalSec = 60

// RegisterRequest identifies the collector. The agent chooses its own
// id and keeps it across restarts; host is optional because some
// collectors register before they know their hostname.
type RegisterRequest struct {
	AgentID string `json:"agent_id" validate:"required"`
	Host    string `json:"host,omitempty"`
	OS      string `json:"os,omitempty"`
	Version string `json:"version,omitempty"`
}

// RegisterResult carries the agent's id and its effective settings.
// Feature flags depend on the tenant's plan.
type RegisterResult struct {
	AgentID           string          `json:"agent_id"`
	UploadIntervalSec int             `json:"upload_interval_sec"`
	FeatureFlags      map[string]bool `json:"feature_flags"`
}

type Service struct {
	agents repository.AgentRepository
	logger *zap.Logger
}

func NewService(agents repository.AgentRepository, logger *zap.Logger) *Service {
	return &Service{
		agents: agents,
		logger: logger,
	}
}

// Register upserts the agent and the asset it reports from. Calling it
// again with the same agent id is a check-in that refreshes last_seen.
func (s *Service) Register(ctx context.Context, tenant *models.Tenant, req *RegisterRequest) (*RegisterResult, error) {
	now := time.Now().UTC()

	if err := s.agents.UpsertAgent(ctx, &models.Agent{
		ID:         req.AgentID,
		TenantID:   tenant.ID,
		OS:         req.OS,
		Version:    req.Version,
		LastSeenAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	if req.Host != "" {
		if err := s.agents.UpsertAsset(ctx, &models.Asset{
			TenantID:   tenant.ID,
			Host:       req.Host,
			OS:         req.OS,
			AgentID:    req.AgentID,
			LastSeenAt: now,
		}); err != nil {
			return nil, fmt.Errorf("failed to register asset: %w", err)
		}
	}

	s.logger.Info("agent registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("agent_id", req.AgentID),
		zap.String("host", req.Host))

	return &RegisterResult{
		AgentID:           req.AgentID,
		UploadIntervalSec: UploadIntervalSec,
		FeatureFlags: map[string]bool{
			"ip_reputation": tenant.Plan != models.PlanStarter,
		},
	}, nil
}

// ListAssets returns the tenant's known hosts.
func (s *Service) ListAssets(ctx context.Context, tenantID string) ([]models.Asset, error) {
	return s.agents.ListAssets(ctx, tenantID)
}

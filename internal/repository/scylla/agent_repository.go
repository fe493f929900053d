package scylla

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/util"
)

// AgentRepository upserts agents and assets. Both tables use plain
// inserts; the last registration wins, which is the desired behavior
// for a heartbeat-style upsert.
type AgentRepository struct {
	client *ScyllaClient
}

func NewAgentRepository(client *ScyllaClient, logger *zap.Logger) *AgentRepository {
	return &AgentRepository{
		client: client,
	}
}

func (r *AgentRepository) UpsertAgent(ctx context.Context, agent *models.Agent) error {
	query := r.client.Prepared.UpsertAgent.Bind(
		agent.TenantID, agent.ID, agent.OS, agent.Version, agent.LastSeenAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to upsert agent",
			zap.String("tenant_id", agent.TenantID),
			zap.String("agent_id", agent.ID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert agent: %w", err)
	}
	return nil
}

func (r *AgentRepository) UpsertAsset(ctx context.Context, asset *models.Asset) error {
	query := r.client.Prepared.UpsertAsset.Bind(
		asset.TenantID, asset.Host, asset.OS, asset.AgentID, asset.LastSeenAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to upsert asset",
			zap.String("tenant_id", asset.TenantID),
			zap.String("host", asset.Host),
			zap.Error(err))
		return fmt.Errorf("failed to upsert asset: %w", err)
	}
	return nil
}

func (r *AgentRepository) ListAssets(ctx context.Context, tenantID string) ([]models.Asset, error) {
	iter := r.client.Prepared.ListAssets.Bind(tenantID).WithContext(ctx).Iter()

	var assets []models.Asset
	var asset models.Asset
	for iter.Scan(&asset.TenantID, &asset.Host, &asset.OS, &asset.AgentID, &asset.LastSeenAt) {
		assets = append(assets, asset)
		asset = models.Asset{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list assets for tenant %s: %w", tenantID, err)
	}
	return assets, nil
}

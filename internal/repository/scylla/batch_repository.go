package scylla

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/util"
)

// BatchRepository stores admitted batch keys with a lightweight
// transaction, so exactly one submission of a batch id wins even across
// concurrent replicas.
type BatchRepository struct {
	client *ScyllaClient
}

func NewBatchRepository(client *ScyllaClient, logger *zap.Logger) *BatchRepository {
	return &BatchRepository{
		client: client,
	}
}

func (r *BatchRepository) Record(ctx context.Context, tenantID, agentID, batchID string) (bool, error) {
	query := r.client.Prepared.RecordBatch.
		Bind(tenantID, agentID, batchID, time.Now().UTC()).
		WithContext(ctx)

	applied, err := query.MapScanCAS(map[string]interface{}{})
	if err != nil {
		util.Error("Failed to record ingest batch",
			zap.String("tenant_id", tenantID),
			zap.String("batch_id", batchID),
			zap.Error(err))
		return false, fmt.Errorf("failed to record batch: %w", err)
	}

	return applied, nil
}

package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
	"telemetry-service/internal/util"
)

type TenantRepository struct {
	client *ScyllaClient
}

func NewTenantRepository(client *ScyllaClient, logger *zap.Logger) *TenantRepository {
	return &TenantRepository{
		client: client,
	}
}

func (r *TenantRepository) Get(ctx context.Context, id string) (*models.Tenant, error) {
	tenant := &models.Tenant{}

	query := r.client.Prepared.GetTenant.Bind(id).WithContext(ctx)
	err := r.client.ScanWithRetry(query,
		&tenant.ID, &tenant.Name, &tenant.Plan, &tenant.Status,
		&tenant.IngestKeyHash, &tenant.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant %s: %w", id, err)
	}

	return tenant, nil
}

func (r *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	query := r.client.Prepared.CreateTenant.Bind(
		tenant.ID, tenant.Name, tenant.Plan, tenant.Status,
		tenant.IngestKeyHash, tenant.CreatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to create tenant",
			zap.String("tenant_id", tenant.ID),
			zap.Error(err))
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	util.Info("Tenant created",
		zap.String("tenant_id", tenant.ID),
		zap.String("plan", tenant.Plan))
	return nil
}

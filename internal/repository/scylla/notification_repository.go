package scylla

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/util"
)

// NotificationRepository records delivery hand-offs. Payloads are
// stored as JSON text next to the status so failed deliveries can be
// replayed by an operator.
type NotificationRepository struct {
	client *ScyllaClient
}

func NewNotificationRepository(client *ScyllaClient, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		client: client,
	}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	query := r.client.Prepared.InsertNotification.Bind(
		n.TenantID, n.ID, n.Kind, n.Severity, n.Channel,
		string(payload), n.Status, n.CreatedAt,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to insert notification",
			zap.String("tenant_id", n.TenantID),
			zap.String("notification_id", n.ID),
			zap.Error(err))
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) UpdateStatus(ctx context.Context, tenantID, id, status string) error {
	query := r.client.Prepared.SetNotificationStatus.
		Bind(status, tenantID, id).
		WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		return fmt.Errorf("failed to update notification %s: %w", id, err)
	}
	return nil
}

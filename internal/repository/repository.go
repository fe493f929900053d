package repository

import (
	"context"
	"errors"
	"time"

	"telemetry-service/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// EventRepository is the append-only, tenant-scoped event log.
// There is no update or delete; retention is an external concern.
type EventRepository interface {
	AppendEvents(ctx context.Context, events []models.Event) error
	QueryWindow(ctx context.Context, tenantID string, since time.Time) ([]models.Event, error)
}

// IncidentFilter narrows incident searches. Zero values mean "any".
type IncidentFilter struct {
	Severity string
	Status   string
	Host     string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// IncidentRepository stores incident aggregates keyed by (tenant, kind).
type IncidentRepository interface {
	// GetOpen returns the open aggregate for (tenant, kind) or ErrNotFound.
	GetOpen(ctx context.Context, tenantID, kind string) (*models.Incident, error)
	Insert(ctx context.Context, inc *models.Incident) error
	Update(ctx context.Context, inc *models.Incident) error
	GetByID(ctx context.Context, tenantID, id string) (*models.Incident, error)
	ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Incident, error)
	// ListSince returns incidents with last_seen >= since.
	ListSince(ctx context.Context, tenantID string, since time.Time) ([]models.Incident, error)
	Search(ctx context.Context, tenantID string, filter IncidentFilter) ([]models.Incident, error)
	Acknowledge(ctx context.Context, tenantID, id string) error
}

// BatchRepository records admitted batch keys.
type BatchRepository interface {
	// Record registers (tenant, agent, batch) and reports whether the
	// triple was newly created. false means the batch was seen before.
	Record(ctx context.Context, tenantID, agentID, batchID string) (bool, error)
}

// TenantRepository resolves and manages tenant accounts.
type TenantRepository interface {
	Get(ctx context.Context, id string) (*models.Tenant, error)
	Create(ctx context.Context, tenant *models.Tenant) error
}

// AgentRepository upserts agents and the assets they report from.
type AgentRepository interface {
	UpsertAgent(ctx context.Context, agent *models.Agent) error
	UpsertAsset(ctx context.Context, asset *models.Asset) error
	ListAssets(ctx context.Context, tenantID string) ([]models.Asset, error)
}

// NotificationRepository records hand-offs to the notification collaborator.
type NotificationRepository interface {
	Insert(ctx context.Context, n *models.Notification) error
	UpdateStatus(ctx context.Context, tenantID, id, status string) error
}

// ReputationRepository stores cached IP reputation records.
type ReputationRepository interface {
	Get(ctx context.Context, ip string) (*models.ReputationRecord, error)
	Upsert(ctx context.Context, rec *models.ReputationRecord) error
}

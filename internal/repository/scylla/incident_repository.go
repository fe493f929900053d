package scylla

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
	"telemetry-service/internal/util"
)

// IncidentRepository stores incident aggregates in the tenant partition
// plus a small (tenant, kind) -> open incident lookup table that backs
// the at-most-one-open invariant. Context maps are stored as JSON text.
type IncidentRepository struct {
	client *ScyllaClient
}

func NewIncidentRepository(client *ScyllaClient, logger *zap.Logger) *IncidentRepository {
	return &IncidentRepository{
		client: client,
	}
}

func (r *IncidentRepository) GetOpen(ctx context.Context, tenantID, kind string) (*models.Incident, error) {
	var incidentID string
	query := r.client.Prepared.GetOpenIncident.Bind(tenantID, kind).WithContext(ctx)
	if err := r.client.ScanWithRetry(query, &incidentID); err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up open incident: %w", err)
	}

	inc, err := r.GetByID(ctx, tenantID, incidentID)
	if err == repository.ErrNotFound {
		// Dangling pointer row; treat as no open incident.
		return nil, repository.ErrNotFound
	}
	return inc, err
}

func (r *IncidentRepository) Insert(ctx context.Context, inc *models.Incident) error {
	contextJSON, err := marshalContext(inc.Context)
	if err != nil {
		return err
	}

	query := r.client.Prepared.InsertIncident.Bind(
		inc.TenantID, inc.ID, inc.Kind, inc.Severity,
		inc.FirstSeen, inc.LastSeen, inc.Count, contextJSON, inc.Status,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to insert incident",
			zap.String("tenant_id", inc.TenantID),
			zap.String("kind", inc.Kind),
			zap.Error(err))
		return fmt.Errorf("failed to insert incident: %w", err)
	}

	if inc.Status == models.StatusOpen {
		open := r.client.Prepared.SetOpenIncident.
			Bind(inc.TenantID, inc.Kind, inc.ID).
			WithContext(ctx)
		if err := r.client.ExecuteWithRetry(open, 2); err != nil {
			return fmt.Errorf("failed to register open incident: %w", err)
		}
	}

	return nil
}

func (r *IncidentRepository) Update(ctx context.Context, inc *models.Incident) error {
	contextJSON, err := marshalContext(inc.Context)
	if err != nil {
		return err
	}

	query := r.client.Prepared.UpdateIncident.Bind(
		inc.Severity, inc.LastSeen, inc.Count, contextJSON, inc.Status,
		inc.TenantID, inc.ID,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to update incident",
			zap.String("tenant_id", inc.TenantID),
			zap.String("incident_id", inc.ID),
			zap.Error(err))
		return fmt.Errorf("failed to update incident: %w", err)
	}

	return nil
}

func (r *IncidentRepository) GetByID(ctx context.Context, tenantID, id string) (*models.Incident, error) {
	query := r.client.Prepared.GetIncidentByID.Bind(tenantID, id).WithContext(ctx)

	inc, err := scanIncident(query)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident %s: %w", id, err)
	}
	return inc, nil
}

func (r *IncidentRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Incident, error) {
	incidents, err := r.listPartition(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}
	return incidents, nil
}

func (r *IncidentRepository) ListSince(ctx context.Context, tenantID string, since time.Time) ([]models.Incident, error) {
	incidents, err := r.listPartition(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	filtered := incidents[:0]
	for _, inc := range incidents {
		if !inc.LastSeen.Before(since) {
			filtered = append(filtered, inc)
		}
	}
	return filtered, nil
}

func (r *IncidentRepository) Search(ctx context.Context, tenantID string, filter repository.IncidentFilter) ([]models.Incident, error) {
	incidents, err := r.listPartition(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	matched := incidents[:0]
	for _, inc := range incidents {
		if matchIncident(&inc, filter) {
			matched = append(matched, inc)
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r *IncidentRepository) Acknowledge(ctx context.Context, tenantID, id string) error {
	inc, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	query := r.client.Prepared.AcknowledgeIncident.
		Bind(models.StatusAcknowledged, tenantID, id).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		return fmt.Errorf("failed to acknowledge incident %s: %w", id, err)
	}

	// Free the (tenant, kind) slot so the next rule match opens fresh.
	open := r.client.Prepared.DeleteOpenIncident.
		Bind(tenantID, inc.Kind).
		WithContext(ctx)
	if err := r.client.ExecuteWithRetry(open, 2); err != nil {
		return fmt.Errorf("failed to clear open incident slot: %w", err)
	}

	return nil
}

// listPartition reads the full tenant partition sorted by last_seen
// descending. Tenant partitions stay small because aggregates collapse
// per (tenant, kind).
func (r *IncidentRepository) listPartition(ctx context.Context, tenantID string) ([]models.Incident, error) {
	iter := r.client.Prepared.ListIncidents.Bind(tenantID).WithContext(ctx).Iter()

	var incidents []models.Incident
	var (
		inc         models.Incident
		contextJSON string
	)
	for iter.Scan(&inc.TenantID, &inc.ID, &inc.Kind, &inc.Severity,
		&inc.FirstSeen, &inc.LastSeen, &inc.Count, &contextJSON, &inc.Status) {
		if err := unmarshalContext(contextJSON, &inc); err != nil {
			iter.Close()
			return nil, err
		}
		incidents = append(incidents, inc)
		inc = models.Incident{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to list incidents for tenant %s: %w", tenantID, err)
	}

	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].LastSeen.After(incidents[j].LastSeen)
	})
	return incidents, nil
}

func matchIncident(inc *models.Incident, filter repository.IncidentFilter) bool {
	if filter.Severity != "" && inc.Severity != filter.Severity {
		return false
	}
	if filter.Status != "" && inc.Status != filter.Status {
		return false
	}
	if filter.Host != "" {
		host, _ := inc.Context["host"].(string)
		if host != filter.Host {
			return false
		}
	}
	if !filter.Since.IsZero() && inc.LastSeen.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && inc.LastSeen.After(filter.Until) {
		return false
	}
	return true
}

func marshalContext(ctx map[string]interface{}) (string, error) {
	if ctx == nil {
		return "{}", nil
	}
	data, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to encode incident context: %w", err)
	}
	return string(data), nil
}

func unmarshalContext(data string, inc *models.Incident) error {
	if data == "" {
		inc.Context = map[string]interface{}{}
		return nil
	}
	if err := json.Unmarshal([]byte(data), &inc.Context); err != nil {
		return fmt.Errorf("failed to decode incident context: %w", err)
	}
	return nil
}

func scanIncident(query *gocql.Query) (*models.Incident, error) {
	var (
		inc         models.Incident
		contextJSON string
	)
	if err := query.Scan(&inc.TenantID, &inc.ID, &inc.Kind, &inc.Severity,
		&inc.FirstSeen, &inc.LastSeen, &inc.Count, &contextJSON, &inc.Status); err != nil {
		return nil, err
	}
	if err := unmarshalContext(contextJSON, &inc); err != nil {
		return nil, err
	}
	return &inc, nil
}

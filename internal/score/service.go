// Package score computes the tenant risk score from recent incident
// aggregates.
package score

import (
	"context"
	"fmt"
	"time"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// DefaultWindowDays is the lookback when no window is configured.
const DefaultWindowDays = 7

// Result is the computed risk score for one tenant.
type Result struct {
	TenantID   string `json:"tenant_id"`
	Score      int    `json:"score"`
	WindowDays int    `json:"window_days"`
}

// Service derives a 0-100 score where 100 means no recent incident
// activity. Each incident whose aggregate was last seen inside the
// window subtracts weight(severity) * count, floored at zero.
type Service struct {
	incidents  repository.IncidentRepository
	windowDays int
	now        func() time.Time
}

func NewService(incidents repository.IncidentRepository, windowDays int) *Service {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Service{
		incidents:  incidents,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// Compute returns the tenant's current risk score.
func (s *Service) Compute(ctx context.Context, tenantID string) (*Result, error) {
	since := s.now().UTC().AddDate(0, 0, -s.windowDays)

	incidents, err := s.incidents.ListSince(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents for tenant %s: %w", tenantID, err)
	}

	total := 0
	for _, inc := range incidents {
		weight, ok := models.SeverityWeight[inc.Severity]
		if !ok {
			weight = models.SeverityWeight[models.SeverityLow]
		}
		total += weight * inc.Count
	}
	if total > 100 {
		total = 100
	}

	return &Result{
		TenantID:   tenantID,
		Score:      100 - total,
		WindowDays: s.windowDays,
	}, nil
}

package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// IndexingRepository decorates an IncidentRepository so that every
// write is mirrored into the search index. The primary store stays
// authoritative: index failures are logged, never propagated, and
// Search degrades to the primary store's scan.
type IndexingRepository struct {
	repository.IncidentRepository
	indexer *Indexer
	logger  *zap.Logger
}

func NewIndexingRepository(primary repository.IncidentRepository, indexer *Indexer, logger *zap.Logger) *IndexingRepository {
	return &IndexingRepository{
		IncidentRepository: primary,
		indexer:            indexer,
		logger:             logger,
	}
}

func (r *IndexingRepository) Insert(ctx context.Context, inc *models.Incident) error {
	if err := r.IncidentRepository.Insert(ctx, inc); err != nil {
		return err
	}
	r.mirror(ctx, inc)
	return nil
}

func (r *IndexingRepository) Update(ctx context.Context, inc *models.Incident) error {
	if err := r.IncidentRepository.Update(ctx, inc); err != nil {
		return err
	}
	r.mirror(ctx, inc)
	return nil
}

func (r *IndexingRepository) Acknowledge(ctx context.Context, tenantID, id string) error {
	if err := r.IncidentRepository.Acknowledge(ctx, tenantID, id); err != nil {
		return err
	}
	if inc, err := r.IncidentRepository.GetByID(ctx, tenantID, id); err == nil {
		r.mirror(ctx, inc)
	}
	return nil
}

func (r *IndexingRepository) Search(ctx context.Context, tenantID string, filter repository.IncidentFilter) ([]models.Incident, error) {
	incidents, err := r.indexer.Search(ctx, tenantID, filter)
	if err != nil {
		r.logger.Warn("search index query failed, falling back to primary store",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		return r.IncidentRepository.Search(ctx, tenantID, filter)
	}
	return incidents, nil
}

func (r *IndexingRepository) mirror(ctx context.Context, inc *models.Incident) {
	indexCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.indexer.Index(indexCtx, inc); err != nil {
		r.logger.Warn("failed to mirror incident to search index",
			zap.String("incident_id", inc.ID),
			zap.Error(err))
	}
}

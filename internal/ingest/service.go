// Package ingest implements the ingestion gate: admission control,
// batch idempotency, event persistence and the follow-on enrichment and
// correlation steps.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"telemetry-service/internal/correlation"
	"telemetry-service/internal/metrics"
	"telemetry-service/internal/models"
	"telemetry-service/internal/notify"
	"telemetry-service/internal/ratelimit"
	"telemetry-service/internal/reputation"
	"telemetry-service/internal/repository"
)

// ErrInvalidBatch rejects a batch that failed validation. Nothing from
// such a batch is persisted and the batch id is not recorded, so the
// agent may resubmit a corrected batch under the same id.
var ErrInvalidBatch = errors.New("invalid batch")

const (
	// StatusAccepted and StatusDuplicate are the two terminal results
	// of a successful submission.
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"

	enrichConcurrency = 8
)

// IngestResult reports the outcome of one batch submission.
type IngestResult struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

// Service runs the ingestion pipeline: rate limit, validate, record the
// batch id, append events, warm the reputation cache for source IPs,
// correlate and hand notifiable payloads to the dispatcher.
type Service struct {
	limiter    ratelimit.Limiter
	batches    repository.BatchRepository
	events     repository.EventRepository
	engine     *correlation.Engine
	resolver   *reputation.Resolver
	dispatcher *notify.Dispatcher
	quota      int
	maxEvents  int
	logger     *zap.Logger
}

func NewService(
	limiter ratelimit.Limiter,
	batches repository.BatchRepository,
	events repository.EventRepository,
	engine *correlation.Engine,
	resolver *reputation.Resolver,
	dispatcher *notify.Dispatcher,
	quota int,
	maxEvents int,
	logger *zap.Logger,
) *Service {
	return &Service{
		limiter:    limiter,
		batches:    batches,
		events:     events,
		engine:     engine,
		resolver:   resolver,
		dispatcher: dispatcher,
		quota:      quota,
		maxEvents:  maxEvents,
		logger:     logger,
	}
}

// Ingest admits one batch for a tenant. It returns
// ratelimit.ErrRateLimitExceeded before any validation or persistence,
// ErrInvalidBatch when the batch is malformed, a duplicate result with
// zero accepted events for a replayed batch id, and otherwise the
// number of events appended. Correlation and enrichment failures are
// logged but never fail an already-persisted batch.
func (s *Service) Ingest(ctx context.Context, tenant *models.Tenant, req *BatchRequest) (*IngestResult, error) {
	if err := s.limiter.Allow(ctx, tenant.ID, s.quota); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			metrics.RateLimitDenials.Inc()
		}
		return nil, err
	}

	timestamps, err := validateBatch(req, s.maxEvents)
	if err != nil {
		metrics.BatchesRejected.Inc()
		return nil, err
	}

	created, err := s.batches.Record(ctx, tenant.ID, req.AgentID, req.BatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to record batch %s: %w", req.BatchID, err)
	}
	if !created {
		metrics.BatchesDuplicate.Inc()
		s.logger.Info("duplicate batch ignored",
			zap.String("tenant_id", tenant.ID),
			zap.String("agent_id", req.AgentID),
			zap.String("batch_id", req.BatchID))
		return &IngestResult{Status: StatusDuplicate, Accepted: 0}, nil
	}

	events := make([]models.Event, len(req.Events))
	for i, in := range req.Events {
		events[i] = models.Event{
			ID:        uuid.New().String(),
			TenantID:  tenant.ID,
			AgentID:   req.AgentID,
			TS:        timestamps[i],
			Host:      in.Host,
			App:       in.App,
			EventType: in.EventType,
			SrcIP:     in.SrcIP,
			DstIP:     in.DstIP,
			Username:  in.Username,
			Severity:  in.Severity,
			Raw:       in.Raw,
		}
	}

	if err := s.events.AppendEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("failed to append events for batch %s: %w", req.BatchID, err)
	}

	metrics.BatchesAccepted.Inc()
	metrics.EventsIngested.Add(float64(len(events)))

	s.enrich(ctx, tenant, events)

	if payloads, err := s.engine.Evaluate(ctx, tenant.ID); err != nil {
		s.logger.Error("correlation failed after batch ingest",
			zap.String("tenant_id", tenant.ID),
			zap.String("batch_id", req.BatchID),
			zap.Error(err))
	} else if s.dispatcher != nil {
		notifiable := payloads[:0]
		for _, p := range payloads {
			if correlation.Notifiable(p.Kind) {
				notifiable = append(notifiable, p)
			}
		}
		s.dispatcher.DispatchAsync(notifiable)
	}

	s.logger.Info("batch accepted",
		zap.String("tenant_id", tenant.ID),
		zap.String("agent_id", req.AgentID),
		zap.String("batch_id", req.BatchID),
		zap.Int("events", len(events)))

	return &IngestResult{Status: StatusAccepted, Accepted: len(events)}, nil
}

// enrich warms the reputation cache for the batch's distinct source
// IPs. Starter-plan tenants skip enrichment entirely.
func (s *Service) enrich(ctx context.Context, tenant *models.Tenant, events []models.Event) {
	if s.resolver == nil || tenant.Plan == models.PlanStarter {
		return
	}

	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.SrcIP != "" {
			seen[ev.SrcIP] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for ip := range seen {
		ip := ip
		g.Go(func() error {
			s.resolver.Resolve(gctx, ip)
			return nil
		})
	}
	_ = g.Wait()
}

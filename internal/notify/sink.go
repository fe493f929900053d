// Package notify hands newly-relevant incident payloads to the
// external notification collaborator. Delivery is out-of-band and must
// never block or fail an ingestion response.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/metrics"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// Sink delivers one incident payload to a channel.
type Sink interface {
	Channel() string
	Deliver(ctx context.Context, payload models.IncidentPayload) error
}

// LogSink is the single-process fallback: payloads are logged only.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Channel() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, payload models.IncidentPayload) error {
	s.logger.Info("incident notification",
		zap.String("tenant_id", payload.TenantID),
		zap.String("kind", payload.Kind),
		zap.String("severity", payload.Severity),
		zap.Any("context", payload.Context))
	return nil
}

const dispatchTimeout = 10 * time.Second

// Dispatcher records every hand-off (pending, then sent or failed) and
// forwards it to the sink. A failed delivery degrades to a failed
// notification record; it is never surfaced to the ingest caller.
type Dispatcher struct {
	sink    Sink
	records repository.NotificationRepository
	logger  *zap.Logger
}

func NewDispatcher(sink Sink, records repository.NotificationRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sink:    sink,
		records: records,
		logger:  logger,
	}
}

// DispatchAsync delivers the payloads on a background goroutine so the
// ingestion response never waits on a notification channel.
func (d *Dispatcher) DispatchAsync(payloads []models.IncidentPayload) {
	if len(payloads) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		for _, p := range payloads {
			d.Dispatch(ctx, p)
		}
	}()
}

// Dispatch records and delivers a single payload.
func (d *Dispatcher) Dispatch(ctx context.Context, payload models.IncidentPayload) {
	rec := &models.Notification{
		ID:        uuid.New().String(),
		TenantID:  payload.TenantID,
		Kind:      "incident",
		Severity:  payload.Severity,
		Channel:   d.sink.Channel(),
		Payload:   payload,
		Status:    models.NotificationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.records.Insert(ctx, rec); err != nil {
		d.logger.Warn("failed to record notification",
			zap.String("tenant_id", payload.TenantID),
			zap.Error(err))
	}

	status := models.NotificationSent
	if err := d.sink.Deliver(ctx, payload); err != nil {
		status = models.NotificationFailed
		d.logger.Warn("notification delivery failed",
			zap.String("tenant_id", payload.TenantID),
			zap.String("kind", payload.Kind),
			zap.String("channel", d.sink.Channel()),
			zap.Error(err))
	}

	metrics.NotificationsDispatched.WithLabelValues(status).Inc()
	if err := d.records.UpdateStatus(ctx, payload.TenantID, rec.ID, status); err != nil {
		d.logger.Warn("failed to update notification status",
			zap.String("tenant_id", payload.TenantID),
			zap.String("notification_id", rec.ID),
			zap.Error(err))
	}
}

// Package correlation re-evaluates a tenant's recent event window
// against a fixed rule set and maintains the per-(tenant, kind)
// incident aggregates.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/metrics"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

// DefaultWindow is the lookback over which rules are evaluated.
const DefaultWindow = 30 * time.Minute

// bruteForceThreshold is the per-(src_ip, username) failure count that
// opens a brute-force incident.
const bruteForceThreshold = 5

var bruteForceEventTypes = map[string]struct{}{
	"auth_failed":     {},
	"ssh_auth_failed": {},
	"rdp_auth_failed": {},
}

var criticalChangeEventTypes = map[string]struct{}{
	"sudoers_changed":               {},
	"user_group_modified":           {},
	"administrators_group_modified": {},
}

var suspiciousIndicators = []string{
	"powershell",
	"base64",
	"certutil",
	"wmic",
	"rundll32",
}

// notifiableKinds are handed to the notification collaborator. A
// suspicious-execution upsert is recorded and scored but not alerted.
var notifiableKinds = map[string]struct{}{
	models.KindBruteForce:     {},
	models.KindCriticalChange: {},
}

// Engine scans the full recent window on every invocation rather than
// an incremental delta, which keeps results correct under out-of-order
// batch delivery. Aggregates are keyed (tenant, kind): all brute-force
// sources against one tenant collapse into a single incident whose
// context reflects the most recently processed group.
type Engine struct {
	events    repository.EventRepository
	incidents repository.IncidentRepository
	window    time.Duration
	locks     *tenantLocks
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(events repository.EventRepository, incidents repository.IncidentRepository, window time.Duration, logger *zap.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		events:    events,
		incidents: incidents,
		window:    window,
		locks:     newTenantLocks(),
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate runs every rule over the tenant's recent window and returns
// the payloads of notifiable kinds that matched. An already-open
// aggregate that matches again is updated in place and its payload is
// still returned, so callers may re-notify for a persisting condition.
func (e *Engine) Evaluate(ctx context.Context, tenantID string) ([]models.IncidentPayload, error) {
	mu := e.locks.lock(tenantID)
	mu.Lock()
	defer mu.Unlock()

	now := e.now().UTC()
	since := now.Add(-e.window)

	events, err := e.events.QueryWindow(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load event window for tenant %s: %w", tenantID, err)
	}

	type bruteKey struct {
		srcIP    string
		username string
	}
	bruteGroups := make(map[bruteKey]int)
	suspicious := 0
	var critical []models.Event

	for _, ev := range events {
		if _, ok := bruteForceEventTypes[ev.EventType]; ok && ev.SrcIP != "" {
			username := ev.Username
			if username == "" {
				username = "?"
			}
			bruteGroups[bruteKey{ev.SrcIP, username}]++
		}

		combined := strings.ToLower(ev.RawMessage() + " " + ev.App + " " + ev.EventType)
		for _, indicator := range suspiciousIndicators {
			if strings.Contains(combined, indicator) {
				suspicious++
				break
			}
		}

		if _, ok := criticalChangeEventTypes[ev.EventType]; ok {
			critical = append(critical, ev)
		}
	}

	var payloads []models.IncidentPayload

	for key, count := range bruteGroups {
		if count < bruteForceThreshold {
			continue
		}
		ruleCtx := map[string]interface{}{
			"src_ip":    key.srcIP,
			"username":  key.username,
			"threshold": bruteForceThreshold,
		}
		if err := e.upsert(ctx, tenantID, models.KindBruteForce, models.SeverityHigh, ruleCtx, now); err != nil {
			return payloads, err
		}
		payloads = append(payloads, models.IncidentPayload{
			TenantID: tenantID,
			Kind:     models.KindBruteForce,
			Severity: models.SeverityHigh,
			Context:  ruleCtx,
		})
	}

	if suspicious > 0 {
		ruleCtx := map[string]interface{}{"count": suspicious}
		if err := e.upsert(ctx, tenantID, models.KindSuspiciousExecution, models.SeverityMedium, ruleCtx, now); err != nil {
			return payloads, err
		}
	}

	for _, ev := range critical {
		ruleCtx := map[string]interface{}{
			"host":       ev.Host,
			"event_type": ev.EventType,
		}
		if err := e.upsert(ctx, tenantID, models.KindCriticalChange, models.SeverityHigh, ruleCtx, now); err != nil {
			return payloads, err
		}
		payloads = append(payloads, models.IncidentPayload{
			TenantID: tenantID,
			Kind:     models.KindCriticalChange,
			Severity: models.SeverityHigh,
			Context:  ruleCtx,
		})
	}

	return payloads, nil
}

// Notifiable reports whether a payload kind is handed to the sink.
func Notifiable(kind string) bool {
	_, ok := notifiableKinds[kind]
	return ok
}

// upsert applies a rule match to the open aggregate for (tenant, kind):
// update last_seen/count/severity and merge context with new values
// winning, or open a fresh aggregate when none exists.
func (e *Engine) upsert(ctx context.Context, tenantID, kind, severity string, ruleCtx map[string]interface{}, now time.Time) error {
	existing, err := e.incidents.GetOpen(ctx, tenantID, kind)
	switch {
	case err == nil:
		existing.LastSeen = now
		existing.Count++
		existing.Severity = severity
		if existing.Context == nil {
			existing.Context = make(map[string]interface{}, len(ruleCtx))
		}
		for k, v := range ruleCtx {
			existing.Context[k] = v
		}
		if err := e.incidents.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to update %s incident for tenant %s: %w", kind, tenantID, err)
		}
	case errors.Is(err, repository.ErrNotFound):
		inc := &models.Incident{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			Kind:      kind,
			Severity:  severity,
			FirstSeen: now,
			LastSeen:  now,
			Count:     1,
			Context:   ruleCtx,
			Status:    models.StatusOpen,
		}
		if err := e.incidents.Insert(ctx, inc); err != nil {
			return fmt.Errorf("failed to open %s incident for tenant %s: %w", kind, tenantID, err)
		}
	default:
		return fmt.Errorf("failed to look up open %s incident for tenant %s: %w", kind, tenantID, err)
	}

	metrics.IncidentsUpserted.WithLabelValues(kind).Inc()
	e.logger.Debug("incident upserted",
		zap.String("tenant_id", tenantID),
		zap.String("kind", kind),
		zap.String("severity", severity))
	return nil
}

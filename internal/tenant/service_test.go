package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telemetry-service/internal/hashing"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository/memory"
)

func newTestService(t *testing.T) (*Service, *memory.TenantStore) {
	t.Helper()
	store := memory.NewTenantStore()
	return NewService(store, hashing.NewHasher(hashing.DefaultParams()), zaptest.NewLogger(t)), store
}

func TestProvisionAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	provisioned, err := svc.Provision(ctx, "acme", models.PlanBusiness)
	require.NoError(t, err)
	require.NotEmpty(t, provisioned.Token)
	require.Equal(t, models.TenantActive, provisioned.Tenant.Status)

	authed, err := svc.Authenticate(ctx, provisioned.Tenant.ID, provisioned.Token)
	require.NoError(t, err)
	require.Equal(t, provisioned.Tenant.ID, authed.ID)
}

func TestProvision_DefaultsToStarterPlan(t *testing.T) {
	svc, _ := newTestService(t)

	provisioned, err := svc.Provision(context.Background(), "acme", "")
	require.NoError(t, err)
	require.Equal(t, models.PlanStarter, provisioned.Tenant.Plan)
}

func TestAuthenticate_WrongToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	provisioned, err := svc.Provision(ctx, "acme", models.PlanBusiness)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, provisioned.Tenant.ID, "not-the-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_UnknownTenant(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nope", "token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticate_SuspendedTenant(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	provisioned, err := svc.Provision(ctx, "acme", models.PlanBusiness)
	require.NoError(t, err)

	stored, err := store.Get(ctx, provisioned.Tenant.ID)
	require.NoError(t, err)
	stored.Status = models.TenantSuspended
	require.NoError(t, store.Create(ctx, stored))

	_, err = svc.Authenticate(ctx, provisioned.Tenant.ID, provisioned.Token)
	require.ErrorIs(t, err, ErrTenantSuspended)
}

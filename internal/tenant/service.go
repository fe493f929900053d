// Package tenant provisions accounts and authenticates ingest tokens.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/hashing"
	"telemetry-service/internal/models"
	"telemetry-service/internal/repository"
)

var (
	ErrInvalidToken    = errors.New("invalid ingest token")
	ErrTenantSuspended = errors.New("tenant is suspended")
)

type Service struct {
	tenants repository.TenantRepository
	hasher  *hashing.Hasher
	logger  *zap.Logger
}

func NewService(tenants repository.TenantRepository, hasher *hashing.Hasher, logger *zap.Logger) *Service {
	return &Service{
		tenants: tenants,
		hasher:  hasher,
		logger:  logger,
	}
}

// Provisioned is returned once at creation time; the token is never
// recoverable afterwards.
type Provisioned struct {
	Tenant *models.Tenant `json:"tenant"`
	Token  string         `json:"ingest_token"`
}

// Provision creates a tenant and issues its ingest token.
func (s *Service) Provision(ctx context.Context, name, plan string) (*Provisioned, error) {
	if plan == "" {
		plan = models.PlanStarter
	}

	token := uuid.New().String()
	hash, err := s.hasher.HashToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to hash ingest token: %w", err)
	}

	t := &models.Tenant{
		ID:            uuid.New().String(),
		Name:          name,
		Plan:          plan,
		Status:        models.TenantActive,
		IngestKeyHash: hash,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.Info("tenant provisioned",
		zap.String("tenant_id", t.ID),
		zap.String("plan", t.Plan))

	return &Provisioned{Tenant: t, Token: token}, nil
}

// Authenticate resolves a tenant and verifies its ingest token.
// Unknown tenants and bad tokens both come back as ErrInvalidToken so
// callers cannot probe for tenant ids.
func (s *Service) Authenticate(ctx context.Context, tenantID, token string) (*models.Tenant, error) {
	if tenantID == "" || token == "" {
		return nil, ErrInvalidToken
	}

	t, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	ok, err := s.hasher.VerifyToken(token, t.IngestKeyHash)
	if err != nil || !ok {
		return nil, ErrInvalidToken
	}

	if t.Status == models.TenantSuspended {
		return nil, ErrTenantSuspended
	}

	return t, nil
}

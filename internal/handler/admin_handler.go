package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"telemetry-service/internal/tenant"
	"telemetry-service/internal/util"
)

// AdminHandler handles operator provisioning. Routes are guarded by a
// static admin key; when no key is configured the routes are disabled.
type AdminHandler struct {
	tenantService *tenant.Service
	adminKey      string
	logger        *zap.Logger
}

func NewAdminHandler(tenantService *tenant.Service, adminKey string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		tenantService: tenantService,
		adminKey:      adminKey,
		logger:        logger,
	}
}

// RegisterRoutes registers admin routes
func (h *AdminHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(h.requireAdminKey)
		r.Post("/admin/tenants", h.CreateTenant)
	})
}

func (h *AdminHandler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminKey == "" {
			respondWithError(w, http.StatusForbidden, errors.New("admin API disabled"), "Admin API disabled")
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) != 1 {
			respondWithError(w, http.StatusUnauthorized, errors.New("invalid admin key"), "Authentication failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createTenantRequest struct {
	Name string `json:"name"`
	Plan string `json:"plan,omitempty"`
}

// CreateTenant provisions a tenant and returns its one-time ingest token
func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("name is required"), "Invalid request")
		return
	}

	provisioned, err := h.tenantService.Provision(ctx, req.Name, req.Plan)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to provision tenant")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(provisioned, "Tenant provisioned"))
	h.logger.Info("Tenant provisioned via HTTP",
		util.String("tenant_id", provisioned.Tenant.ID),
		util.String("plan", provisioned.Tenant.Plan),
	)
}

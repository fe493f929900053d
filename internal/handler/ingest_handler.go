package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"telemetry-service/internal/agent"
	"telemetry-service/internal/ingest"
	"telemetry-service/internal/models"
	"telemetry-service/internal/ratelimit"
	"telemetry-service/internal/util"
)

// IngestHandler handles agent-facing endpoints: batch submission,
// registration and effective configuration.
type IngestHandler struct {
	ingestService *ingest.Service
	agentService  *agent.Service
	logger        *zap.Logger
}

func NewIngestHandler(ingestService *ingest.Service, agentService *agent.Service, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		agentService:  agentService,
		logger:        logger,
	}
}

// RegisterRoutes registers all agent-facing routes
func (h *IngestHandler) RegisterRoutes(router chi.Router) {
	router.Post("/ingest/batch", h.IngestBatch)
	router.Post("/agents/register", h.RegisterAgent)
	router.Get("/config", h.GetConfig)
	router.Get("/assets", h.ListAssets)
}

// IngestBatch handles one event batch submission
func (h *IngestHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	var req ingest.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.ingestService.Ingest(ctx, t, &req)
	if err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrRateLimitExceeded):
			respondWithError(w, http.StatusTooManyRequests, err, "Rate limit exceeded")
		case errors.Is(err, ingest.ErrInvalidBatch):
			respondWithError(w, http.StatusBadRequest, err, "Batch validation failed")
		default:
			respondWithError(w, http.StatusInternalServerError, err, "Failed to ingest batch")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(result, "Batch processed"))
	h.logger.Debug("Batch ingested via HTTP",
		util.String("tenant_id", t.ID),
		util.String("batch_id", req.BatchID),
		util.String("status", result.Status),
		util.Duration("duration", time.Since(startTime)),
	)
}

// RegisterAgent handles agent registration and check-in
func (h *IngestHandler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	var req agent.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if req.AgentID == "" {
		respondWithError(w, http.StatusBadRequest, errors.New("agent_id is required"), "Invalid registration")
		return
	}

	result, err := h.agentService.Register(ctx, t, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to register agent")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(result, "Agent registered"))
}

// GetConfig returns the effective settings for the authenticated tenant
func (h *IngestHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	t, ok := TenantFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(map[string]interface{}{
		"upload_interval_sec": agent.UploadIntervalSec,
		"feature_flags": map[string]bool{
			"ip_reputation": t.Plan != models.PlanStarter,
		},
	}, "Configuration"))
}

// ListAssets returns the tenant's known hosts
func (h *IngestHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	assets, err := h.agentService.ListAssets(ctx, t.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to list assets")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(assets, "Assets retrieved"))
}

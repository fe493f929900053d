package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"telemetry-service/internal/repository"
	"telemetry-service/internal/score"
	"telemetry-service/internal/util"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

// IncidentHandler handles the operator-facing read side: incident
// listing, search, acknowledgement and the tenant risk score.
type IncidentHandler struct {
	incidents    repository.IncidentRepository
	scoreService *score.Service
	logger       *zap.Logger
}

func NewIncidentHandler(incidents repository.IncidentRepository, scoreService *score.Service, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{
		incidents:    incidents,
		scoreService: scoreService,
		logger:       logger,
	}
}

// RegisterRoutes registers all operator-facing routes
func (h *IncidentHandler) RegisterRoutes(router chi.Router) {
	router.Get("/incidents", h.ListIncidents)
	router.Get("/incidents/search", h.SearchIncidents)
	router.Get("/incidents/{incidentID}", h.GetIncident)
	router.Post("/incidents/{incidentID}/ack", h.AcknowledgeIncident)
	router.Get("/score", h.GetScore)
}

// ListIncidents returns the tenant's incidents, most recent first
func (h *IncidentHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"), "Invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	incidents, err := h.incidents.ListRecent(ctx, t.ID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to list incidents")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(incidents, "Incidents retrieved"))
}

// SearchIncidents returns incidents matching the query filters
func (h *IncidentHandler) SearchIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	filter, err := parseIncidentFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid search filter")
		return
	}

	incidents, err := h.incidents.Search(ctx, t.ID, filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to search incidents")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(incidents, "Incidents retrieved"))
}

// GetIncident returns one incident by id
func (h *IncidentHandler) GetIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	inc, err := h.incidents.GetByID(ctx, t.ID, incidentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, err, "Incident not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err, "Failed to get incident")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(inc, "Incident retrieved"))
}

// AcknowledgeIncident marks an incident as handled by an operator
func (h *IncidentHandler) AcknowledgeIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	incidentID := chi.URLParam(r, "incidentID")
	if err := h.incidents.Acknowledge(ctx, t.ID, incidentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, err, "Incident not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err, "Failed to acknowledge incident")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Incident acknowledged"))
	h.logger.Info("Incident acknowledged via HTTP",
		util.String("tenant_id", t.ID),
		util.String("incident_id", incidentID),
	)
}

// GetScore returns the tenant's current risk score
func (h *IncidentHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t, ok := TenantFromContext(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, errors.New("no tenant in context"), "Authentication required")
		return
	}

	result, err := h.scoreService.Compute(ctx, t.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err, "Failed to compute score")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(result, "Score computed"))
}

func parseIncidentFilter(r *http.Request) (repository.IncidentFilter, error) {
	q := r.URL.Query()
	filter := repository.IncidentFilter{
		Severity: q.Get("severity"),
		Status:   q.Get("status"),
		Host:     q.Get("host"),
	}

	if raw := q.Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("since must be RFC3339")
		}
		filter.Since = ts
	}
	if raw := q.Get("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("until must be RFC3339")
		}
		filter.Until = ts
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, errors.New("limit must be a positive integer")
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}

	return filter, nil
}

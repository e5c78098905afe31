package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// EntityService is the subset of the entity service used by HTTP handlers.
type EntityService interface {
	Create(ctx context.Context, name string, ownerID uuid.UUID) (*models.BusinessEntity, error)
	List(ctx context.Context) ([]*models.BusinessEntity, error)
}

// EntityHandler handles business entity endpoints.
type EntityHandler struct {
	service EntityService
	logger  *zap.Logger
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(service EntityService, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{service: service, logger: logger}
}

// RegisterRoutes registers the entity handler's routes on the given mux.
func (h *EntityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/entities", h.Create)
	mux.HandleFunc("GET /api/entities", h.List)
}

// CreateEntityRequest is the POST /api/entities payload.
type CreateEntityRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/entities.
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	callerID, ok := callerFromRequest(h.logger, w, r)
	if !ok {
		return
	}

	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	entity, err := h.service.Create(r.Context(), req.Name, callerID)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to create entity")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, entity); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/entities.
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entities, err := h.service.List(r.Context())
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to list entities")
		return
	}
	if entities == nil {
		entities = []*models.BusinessEntity{}
	}

	if err := WriteJSON(w, http.StatusOK, entities); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// callerFromRequest resolves the calling user from the X-User-ID header.
// Authentication proper lives in front of this service; the header carries
// the already-verified identity.
func callerFromRequest(logger *zap.Logger, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		writeError(logger, w, http.StatusUnauthorized, "missing_user", "X-User-ID header is required")
		return uuid.Nil, false
	}
	callerID, err := uuid.Parse(raw)
	if err != nil {
		writeError(logger, w, http.StatusBadRequest, "invalid_user", "X-User-ID must be a UUID")
		return uuid.Nil, false
	}
	return callerID, true
}

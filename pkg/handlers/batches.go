package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/services"
)

// BatchQuerier is the subset of the batch service used by the batch
// endpoints.
type BatchQuerier interface {
	GetBatch(ctx context.Context, id uuid.UUID) (*services.BatchView, error)
	ListBatches(ctx context.Context, entityID uuid.UUID) ([]*services.BatchView, error)
	DeleteBatch(ctx context.Context, id, callerID uuid.UUID) error
}

// BatchHandler handles batch status and deletion endpoints.
type BatchHandler struct {
	service BatchQuerier
	logger  *zap.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(service BatchQuerier, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{service: service, logger: logger}
}

// RegisterRoutes registers the batch handler's routes on the given mux.
func (h *BatchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/batches/{id}", h.Get)
	mux.HandleFunc("GET /api/batches", h.List)
	mux.HandleFunc("DELETE /api/batches/{id}", h.Delete)
}

// Get handles GET /api/batches/{id}. Clients poll this for progress.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_batch_id", "Invalid batch ID format")
		return
	}

	view, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to get batch")
		return
	}

	if err := WriteJSON(w, http.StatusOK, view); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/batches?entity_id=.
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(r.URL.Query().Get("entity_id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_entity_id", "entity_id query parameter must be a UUID")
		return
	}

	views, err := h.service.ListBatches(r.Context(), entityID)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to list batches")
		return
	}
	if views == nil {
		views = []*services.BatchView{}
	}

	if err := WriteJSON(w, http.StatusOK, views); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/batches/{id}. The caller must own the batch's
// entity; deletion cascades to rows, analysis results and pending tasks.
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	batchID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_batch_id", "Invalid batch ID format")
		return
	}

	callerID, ok := callerFromRequest(h.logger, w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBatch(r.Context(), batchID, callerID); err != nil {
		writeDomainError(h.logger, w, err, "Failed to delete batch")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

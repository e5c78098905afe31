package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/ingest"
	"github.com/crowdpulse/feedback-engine/pkg/services"
)

// maxUploadBytes caps the multipart form held in memory before spilling to
// disk.
const maxUploadBytes = 32 << 20

// BatchCreator is the subset of the batch service used by the upload
// handler.
type BatchCreator interface {
	CreateBatch(ctx context.Context, entityID uuid.UUID, fileName string, rows []ingest.Row) (*services.BatchView, error)
}

// UploadHandler handles feedback file uploads.
type UploadHandler struct {
	service BatchCreator
	logger  *zap.Logger
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(service BatchCreator, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{service: service, logger: logger}
}

// RegisterRoutes registers the upload handler's routes on the given mux.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads", h.Upload)
}

// UploadResponse is the POST /api/uploads payload.
type UploadResponse struct {
	BatchID   uuid.UUID `json:"batch_id"`
	TotalRows int       `json:"total_rows"`
	Status    string    `json:"status"`
}

// Upload handles POST /api/uploads. Expects a multipart form with an
// entity_id field and a file part; the upload is accepted once the batch and
// its rows are durable, analysis happens asynchronously.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Expected multipart form data")
		return
	}

	entityID, err := uuid.Parse(r.FormValue("entity_id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_entity_id", "entity_id must be a UUID")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "missing_file", "file part is required")
		return
	}
	defer file.Close()

	rows, err := ingest.Extract(header.Filename, file)
	if errors.Is(err, apperrors.ErrNoTextColumn) {
		writeDomainError(h.logger, w, err, "Failed to parse uploaded file")
		return
	}
	if err != nil {
		// Malformed CSV/JSON is a client problem, not a server one.
		writeError(h.logger, w, http.StatusBadRequest, "invalid_file", "Uploaded file could not be parsed")
		return
	}

	view, err := h.service.CreateBatch(r.Context(), entityID, header.Filename, rows)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to create batch")
		return
	}

	h.logger.Info("upload accepted",
		zap.String("batch_id", view.ID.String()),
		zap.String("file_name", header.Filename),
		zap.Int("total_rows", view.TotalRows))

	response := UploadResponse{
		BatchID:   view.ID,
		TotalRows: view.TotalRows,
		Status:    string(view.Status),
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

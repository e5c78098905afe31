package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// FeedbackQuerier is the subset of the query service used by the feedback
// endpoints.
type FeedbackQuerier interface {
	ListFeedback(ctx context.Context, filter models.FeedbackFilter) ([]*models.FeedbackRow, error)
	Stats(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, error)
}

// FeedbackHandler handles the analyzed-feedback query surface.
type FeedbackHandler struct {
	service FeedbackQuerier
	logger  *zap.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(service FeedbackQuerier, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{service: service, logger: logger}
}

// RegisterRoutes registers the feedback handler's routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/feedback", h.List)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// List handles GET /api/feedback with entity/batch/sentiment/urgency/time
// filters and limit/offset pagination.
func (h *FeedbackHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, msg := parseFeedbackFilter(r)
	if msg != "" {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_filter", msg)
		return
	}

	rows, err := h.service.ListFeedback(r.Context(), filter)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to list feedback")
		return
	}
	if rows == nil {
		rows = []*models.FeedbackRow{}
	}

	if err := WriteJSON(w, http.StatusOK, rows); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/stats?entity_id=.
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(r.URL.Query().Get("entity_id"))
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_entity_id", "entity_id query parameter must be a UUID")
		return
	}

	stats, err := h.service.Stats(r.Context(), entityID)
	if err != nil {
		writeDomainError(h.logger, w, err, "Failed to compute stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// parseFeedbackFilter builds a FeedbackFilter from query parameters,
// returning a non-empty message on the first invalid one.
func parseFeedbackFilter(r *http.Request) (models.FeedbackFilter, string) {
	var filter models.FeedbackFilter
	q := r.URL.Query()

	if raw := q.Get("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, "entity_id must be a UUID"
		}
		filter.EntityID = &id
	}
	if raw := q.Get("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, "batch_id must be a UUID"
		}
		filter.BatchID = &id
	}

	if s := q.Get("sentiment"); s != "" {
		if !models.ValidSentiment(s) {
			return filter, "sentiment must be positive, neutral or negative"
		}
		filter.Sentiment = s
	}
	if u := q.Get("urgency"); u != "" {
		if !models.ValidUrgency(u) {
			return filter, "urgency must be low, high or critical"
		}
		filter.Urgency = u
	}

	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, "from must be an RFC3339 timestamp"
		}
		filter.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, "to must be an RFC3339 timestamp"
		}
		filter.To = &ts
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, "limit must be a positive integer"
		}
		filter.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return filter, "offset must be a non-negative integer"
		}
		filter.Offset = n
	}

	return filter, ""
}

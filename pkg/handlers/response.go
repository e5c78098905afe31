package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeError writes an error response, logging the encoding failure if any.
func writeError(logger *zap.Logger, w http.ResponseWriter, statusCode int, errorCode, message string) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeDomainError maps the error taxonomy to HTTP at the handler edge.
// Unrecognized errors become a 500 with the fallback message.
func writeDomainError(logger *zap.Logger, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrEmptyUpload):
		writeError(logger, w, http.StatusBadRequest, "empty_upload", "Uploaded file contains no feedback rows")
	case errors.Is(err, apperrors.ErrNoTextColumn):
		writeError(logger, w, http.StatusBadRequest, "no_text_column", "No text, review or comment column found")
	case errors.Is(err, apperrors.ErrEntityNotFound):
		writeError(logger, w, http.StatusNotFound, "entity_not_found", "Entity not found")
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(logger, w, http.StatusNotFound, "not_found", "Resource not found")
	case errors.Is(err, apperrors.ErrForbidden):
		writeError(logger, w, http.StatusForbidden, "forbidden", "Caller does not own this resource")
	case errors.Is(err, apperrors.ErrConflict):
		writeError(logger, w, http.StatusConflict, "conflict", "Resource already exists")
	default:
		logger.Error(fallback, zap.Error(err))
		writeError(logger, w, http.StatusInternalServerError, "internal_error", fallback)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/services"
)

// mockBatchQuerier is a mock for BatchQuerier.
type mockBatchQuerier struct {
	view      *services.BatchView
	views     []*services.BatchView
	getErr    error
	deleteErr error
	deletedBy uuid.UUID
}

func (m *mockBatchQuerier) GetBatch(_ context.Context, id uuid.UUID) (*services.BatchView, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.view, nil
}

func (m *mockBatchQuerier) ListBatches(_ context.Context, entityID uuid.UUID) ([]*services.BatchView, error) {
	return m.views, nil
}

func (m *mockBatchQuerier) DeleteBatch(_ context.Context, id, callerID uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedBy = callerID
	return nil
}

func TestBatchHandler_Get_Progress(t *testing.T) {
	batchID := uuid.New()
	mockService := &mockBatchQuerier{view: &services.BatchView{
		ID:             batchID,
		Status:         models.BatchStatusProcessing,
		TotalRows:      10,
		ProcessedCount: 6,
		FailedRows:     1,
		Percentage:     70,
	}}
	handler := NewBatchHandler(mockService, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/batches/"+batchID.String(), nil)
	req.SetPathValue("id", batchID.String())
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var view services.BatchView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, models.BatchStatusProcessing, view.Status)
	assert.Equal(t, 70, view.Percentage)
	assert.Equal(t, 6, view.ProcessedCount)
}

func TestBatchHandler_Get_NotFound(t *testing.T) {
	mockService := &mockBatchQuerier{getErr: apperrors.ErrNotFound}
	handler := NewBatchHandler(mockService, zap.NewNop())

	batchID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/batches/"+batchID.String(), nil)
	req.SetPathValue("id", batchID.String())
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchHandler_Get_InvalidID(t *testing.T) {
	handler := NewBatchHandler(&mockBatchQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/batches/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchHandler_List_RequiresEntityID(t *testing.T) {
	handler := NewBatchHandler(&mockBatchQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/batches", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchHandler_List_EmptyResultIsArray(t *testing.T) {
	handler := NewBatchHandler(&mockBatchQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/batches?entity_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestBatchHandler_Delete_OK(t *testing.T) {
	mockService := &mockBatchQuerier{}
	handler := NewBatchHandler(mockService, zap.NewNop())

	batchID := uuid.New()
	callerID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/batches/"+batchID.String(), nil)
	req.SetPathValue("id", batchID.String())
	req.Header.Set("X-User-ID", callerID.String())
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, callerID, mockService.deletedBy)
}

func TestBatchHandler_Delete_Forbidden(t *testing.T) {
	mockService := &mockBatchQuerier{deleteErr: apperrors.ErrForbidden}
	handler := NewBatchHandler(mockService, zap.NewNop())

	batchID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/batches/"+batchID.String(), nil)
	req.SetPathValue("id", batchID.String())
	req.Header.Set("X-User-ID", uuid.New().String())
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBatchHandler_Delete_MissingCaller(t *testing.T) {
	handler := NewBatchHandler(&mockBatchQuerier{}, zap.NewNop())

	batchID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/batches/"+batchID.String(), nil)
	req.SetPathValue("id", batchID.String())
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/ingest"
	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/services"
)

// mockBatchCreator is a mock for BatchCreator.
type mockBatchCreator struct {
	createErr error
	entityID  uuid.UUID
	fileName  string
	rows      []ingest.Row
}

func (m *mockBatchCreator) CreateBatch(_ context.Context, entityID uuid.UUID, fileName string, rows []ingest.Row) (*services.BatchView, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.entityID = entityID
	m.fileName = fileName
	m.rows = rows
	return &services.BatchView{
		ID:        uuid.New(),
		EntityID:  entityID,
		FileName:  fileName,
		Status:    models.BatchStatusProcessing,
		TotalRows: len(rows),
	}, nil
}

func multipartUpload(t *testing.T, entityID, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if entityID != "" {
		require.NoError(t, mw.WriteField("entity_id", entityID))
	}
	if fileName != "" {
		part, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadHandler_Upload_Accepted(t *testing.T) {
	mockService := &mockBatchCreator{}
	handler := NewUploadHandler(mockService, zap.NewNop())

	entityID := uuid.New()
	body, contentType := multipartUpload(t, entityID.String(), "feedback.csv",
		"text,product\ngreat app,mobile\nterrible support,web\n")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalRows)
	assert.Equal(t, "processing", resp.Status)
	assert.NotEqual(t, uuid.Nil, resp.BatchID)

	assert.Equal(t, entityID, mockService.entityID)
	assert.Equal(t, "feedback.csv", mockService.fileName)
	require.Len(t, mockService.rows, 2)
	assert.Equal(t, "great app", mockService.rows[0].Text)
	assert.Equal(t, "mobile", mockService.rows[0].Product)
}

func TestUploadHandler_Upload_NoTextColumn(t *testing.T) {
	handler := NewUploadHandler(&mockBatchCreator{}, zap.NewNop())

	body, contentType := multipartUpload(t, uuid.New().String(), "feedback.csv",
		"name,score\nalice,5\n")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no_text_column")
}

func TestUploadHandler_Upload_EmptyFile(t *testing.T) {
	mockService := &mockBatchCreator{createErr: apperrors.ErrEmptyUpload}
	handler := NewUploadHandler(mockService, zap.NewNop())

	body, contentType := multipartUpload(t, uuid.New().String(), "feedback.csv", "text\n")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty_upload")
}

func TestUploadHandler_Upload_UnknownEntity(t *testing.T) {
	mockService := &mockBatchCreator{createErr: apperrors.ErrEntityNotFound}
	handler := NewUploadHandler(mockService, zap.NewNop())

	body, contentType := multipartUpload(t, uuid.New().String(), "feedback.csv",
		"text\nsome feedback\n")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "entity_not_found")
}

func TestUploadHandler_Upload_BadEntityID(t *testing.T) {
	handler := NewUploadHandler(&mockBatchCreator{}, zap.NewNop())

	body, contentType := multipartUpload(t, "not-a-uuid", "feedback.csv", "text\nhello\n")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_entity_id")
}

func TestUploadHandler_Upload_MissingFile(t *testing.T) {
	handler := NewUploadHandler(&mockBatchCreator{}, zap.NewNop())

	body, contentType := multipartUpload(t, uuid.New().String(), "", "")

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_file")
}

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

	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// mockFeedbackQuerier is a mock for FeedbackQuerier.
type mockFeedbackQuerier struct {
	rows   []*models.FeedbackRow
	stats  *models.FeedbackStats
	filter models.FeedbackFilter
}

func (m *mockFeedbackQuerier) ListFeedback(_ context.Context, filter models.FeedbackFilter) ([]*models.FeedbackRow, error) {
	m.filter = filter
	return m.rows, nil
}

func (m *mockFeedbackQuerier) Stats(_ context.Context, _ uuid.UUID) (*models.FeedbackStats, error) {
	return m.stats, nil
}

func TestFeedbackHandler_List_ParsesFilter(t *testing.T) {
	mockService := &mockFeedbackQuerier{}
	handler := NewFeedbackHandler(mockService, zap.NewNop())

	entityID := uuid.New()
	url := "/api/feedback?entity_id=" + entityID.String() +
		"&sentiment=negative&urgency=critical&limit=25&offset=50" +
		"&from=2026-08-01T00:00:00Z&to=2026-08-31T00:00:00Z"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	filter := mockService.filter
	require.NotNil(t, filter.EntityID)
	assert.Equal(t, entityID, *filter.EntityID)
	assert.Equal(t, "negative", filter.Sentiment)
	assert.Equal(t, "critical", filter.Urgency)
	assert.Equal(t, 25, filter.Limit)
	assert.Equal(t, 50, filter.Offset)
	require.NotNil(t, filter.From)
	require.NotNil(t, filter.To)
	assert.Equal(t, "2026-08-01", filter.From.Format("2006-01-02"))
}

func TestFeedbackHandler_List_RejectsBadSentiment(t *testing.T) {
	handler := NewFeedbackHandler(&mockFeedbackQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/feedback?sentiment=angry", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_filter")
}

func TestFeedbackHandler_List_RejectsBadTimestamp(t *testing.T) {
	handler := NewFeedbackHandler(&mockFeedbackQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/feedback?from=yesterday", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackHandler_List_EmptyResultIsArray(t *testing.T) {
	handler := NewFeedbackHandler(&mockFeedbackQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/feedback", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestFeedbackHandler_Stats_OK(t *testing.T) {
	mockService := &mockFeedbackQuerier{stats: &models.FeedbackStats{
		TotalRows:    100,
		AnalyzedRows: 90,
		FailedRows:   10,
		SentimentCounts: map[string]int{
			"positive": 40, "neutral": 30, "negative": 20,
		},
	}}
	handler := NewFeedbackHandler(mockService, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/stats?entity_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var stats models.FeedbackStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 100, stats.TotalRows)
	assert.Equal(t, 40, stats.SentimentCounts["positive"])
}

func TestFeedbackHandler_Stats_RequiresEntityID(t *testing.T) {
	handler := NewFeedbackHandler(&mockFeedbackQuerier{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	handler.Stats(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

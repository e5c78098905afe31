package models

import (
	"time"

	"github.com/google/uuid"
)

// Sentiment values
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Urgency values
const (
	UrgencyLow      = "low"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// ValidSentiment reports whether s is a recognized sentiment label.
func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// ValidUrgency reports whether u is a recognized urgency label.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// TextPreviewLen caps the stored preview of the original row text.
const TextPreviewLen = 120

// ProcessedFeedback is the analysis result for one RawFeed. Created exactly
// once by the worker that successfully classifies the row, immutable after.
type ProcessedFeedback struct {
	ID             uuid.UUID `json:"id"`
	RawFeedID      uuid.UUID `json:"raw_feed_id"`
	BatchID        uuid.UUID `json:"batch_id"`
	Sentiment      string    `json:"sentiment"`
	SentimentScore float64   `json:"sentiment_score"` // [-1.0, 1.0]
	Urgency        string    `json:"urgency"`
	Topics         []string  `json:"topics"`
	TextPreview    string    `json:"text_preview"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// Preview truncates raw text for storage alongside the analysis result.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= TextPreviewLen {
		return text
	}
	return string(runes[:TextPreviewLen])
}

// FeedbackRow is the query-surface projection joining a raw row with its
// analysis result, if any.
type FeedbackRow struct {
	RawFeed   RawFeed            `json:"raw_feed"`
	Processed *ProcessedFeedback `json:"processed,omitempty"`
}

// FeedbackFilter narrows query-surface listings.
type FeedbackFilter struct {
	EntityID  *uuid.UUID
	BatchID   *uuid.UUID
	Sentiment string
	Urgency   string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// FeedbackStats is the aggregate view for dashboards.
type FeedbackStats struct {
	TotalRows         int            `json:"total_rows"`
	PendingRows       int            `json:"pending_rows"`
	AnalyzedRows      int            `json:"analyzed_rows"`
	FailedRows        int            `json:"failed_rows"`
	SentimentCounts   map[string]int `json:"sentiment_counts"`
	UrgencyCounts     map[string]int `json:"urgency_counts"`
	AvgSentimentScore float64        `json:"avg_sentiment_score"`
	DailyTrend        []DailyCount   `json:"daily_trend"`
}

// DailyCount is one day of the 7-day ingestion trend.
type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// Package classifier provides the text classification capability used by the
// analysis pipeline: sentiment, urgency and topic extraction for one row of
// free-text feedback.
package classifier

import (
	"context"
)

// Result is the outcome of classifying one piece of feedback text.
type Result struct {
	Sentiment      string   `json:"sentiment"`       // positive | neutral | negative
	SentimentScore float64  `json:"sentiment_score"` // [-1.0, 1.0]
	Urgency        string   `json:"urgency"`         // low | high | critical
	Topics         []string `json:"topics"`
}

// Classifier classifies feedback text. Implementations may call out to a
// remote model and can fail transiently; callers distinguish retryable from
// permanent failures via IsRetryable.
type Classifier interface {
	// Classify analyzes text and returns the structured result.
	Classify(ctx context.Context, text string) (*Result, error)

	// Name returns the provider name for logging.
	Name() string
}

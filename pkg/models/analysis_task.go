package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisTask is the durable queue message instructing a worker to analyze
// one RawFeed. Delivery is at-least-once: a claimed task whose worker dies
// is released after a visibility timeout, and the row-status idempotency
// guard absorbs the redelivery.
type AnalysisTask struct {
	ID           uuid.UUID  `json:"id"`
	BatchID      uuid.UUID  `json:"batch_id"`
	RawFeedID    uuid.UUID  `json:"raw_feed_id"`
	AttemptCount int        `json:"attempt_count"`
	AvailableAt  time.Time  `json:"available_at"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

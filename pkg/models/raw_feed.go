package models

import (
	"time"

	"github.com/google/uuid"
)

// RowStatus is the per-row analysis state.
type RowStatus string

const (
	RowStatusPending  RowStatus = "pending"
	RowStatusAnalyzed RowStatus = "analyzed"
	RowStatusFailed   RowStatus = "failed"
)

// IsTerminal reports whether the row's outcome is already durable.
func (s RowStatus) IsTerminal() bool {
	return s == RowStatusAnalyzed || s == RowStatusFailed
}

// RawFeed is one extracted input row awaiting or having undergone analysis.
// Rows are created in bulk at batch creation and mutated exactly once by the
// worker that finishes (or permanently fails) them.
type RawFeed struct {
	ID        uuid.UUID `json:"id"`
	BatchID   uuid.UUID `json:"batch_id"`
	RowIndex  int       `json:"row_index"`
	RawText   string    `json:"raw_text"`
	Product   string    `json:"product,omitempty"`
	RowStatus RowStatus `json:"row_status"`
	CreatedAt time.Time `json:"created_at"`
}

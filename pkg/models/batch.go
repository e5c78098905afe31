package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle state of an upload batch.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"     // persisted, tasks not yet enqueued
	BatchStatusProcessing BatchStatus = "processing" // tasks enqueued, workers draining
	BatchStatusCompleted  BatchStatus = "completed"  // all rows accounted, at least one success
	BatchStatusFailed     BatchStatus = "failed"     // all rows accounted, zero successes
)

// IsTerminal reports whether the status admits no further transitions.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// Batch is one uploaded file's unit of work. TotalRows is fixed at creation;
// ProcessedCount and FailedRows only ever advance through transaction-scoped
// conditional updates, so 0 <= ProcessedCount+FailedRows <= TotalRows holds
// at all times.
type Batch struct {
	ID             uuid.UUID   `json:"id"`
	EntityID       uuid.UUID   `json:"entity_id"`
	FileName       string      `json:"file_name"`
	TotalRows      int         `json:"total_rows"`
	ProcessedCount int         `json:"processed_count"`
	FailedRows     int         `json:"failed_rows"`
	Status         BatchStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Percentage returns the advisory progress metric, rounded and clamped to
// [0, 100]. It is derived from the counters and monotonically non-decreasing
// for the lifetime of a batch.
func (b *Batch) Percentage() int {
	if b.TotalRows <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(b.ProcessedCount+b.FailedRows) / float64(b.TotalRows)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// BatchProgress is the committed counter state returned by an atomic row
// outcome update.
type BatchProgress struct {
	ProcessedCount int
	FailedRows     int
	TotalRows      int
}

// AllAccounted reports whether every row has reached a terminal outcome.
func (p BatchProgress) AllAccounted() bool {
	return p.ProcessedCount+p.FailedRows == p.TotalRows
}

// TerminalStatus resolves the batch status once all rows are accounted for:
// completed when at least one row succeeded, failed otherwise.
func (p BatchProgress) TerminalStatus() BatchStatus {
	if p.ProcessedCount > 0 {
		return BatchStatusCompleted
	}
	return BatchStatusFailed
}

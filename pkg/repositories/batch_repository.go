package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/database"
	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// BatchRepository provides data access for upload batches, including the
// atomic counter advancement the pipeline depends on. Counter mutations are
// never exposed as plain setters: every increment is fused with the
// corresponding row-status transition in a single transaction, so the
// invariant processed_count + failed_rows <= total_rows cannot be broken by
// concurrent workers or redelivered tasks.
type BatchRepository interface {
	// CreateWithRows persists the batch and all of its raw feed rows in one
	// transaction. A partially persisted batch is never visible.
	CreateWithRows(ctx context.Context, batch *models.Batch, rows []*models.RawFeed) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Batch, error)

	// MarkProcessing transitions queued -> processing. A no-op if the batch
	// already left queued.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// RecordRowAnalyzed atomically marks the raw feed analyzed, stores the
	// analysis result and increments processed_count. Returns applied=false
	// without side effects when the row is already terminal or has been
	// deleted; the caller acknowledges the task and drops it.
	RecordRowAnalyzed(ctx context.Context, result *models.ProcessedFeedback) (models.BatchProgress, bool, error)

	// RecordRowFailed atomically marks the raw feed failed and increments
	// failed_rows. Same applied semantics as RecordRowAnalyzed.
	RecordRowFailed(ctx context.Context, batchID, rawFeedID uuid.UUID) (models.BatchProgress, bool, error)

	// ClaimCompletion transitions a non-terminal batch to status, guarded so
	// that only one of several concurrent finishers wins and only once all
	// rows are accounted for. Returns whether this caller performed the
	// transition.
	ClaimCompletion(ctx context.Context, id uuid.UUID, status models.BatchStatus) (bool, error)

	// ListQueuedWithoutTasks finds batches stuck in queued with no pending
	// tasks, created before cutoff. These are batches whose initial enqueue
	// failed and are eligible for the re-enqueue sweep.
	ListQueuedWithoutTasks(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// Delete removes the batch; raw feeds, analysis results and queued tasks
	// go with it via FK cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}

type batchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *database.DB) BatchRepository {
	return &batchRepository{db: db}
}

var _ BatchRepository = (*batchRepository)(nil)

func (r *batchRepository) CreateWithRows(ctx context.Context, batch *models.Batch, rows []*models.RawFeed) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	batch.TotalRows = len(rows)
	batch.Status = models.BatchStatusQueued
	batch.CreatedAt = time.Now()

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO batches (id, entity_id, file_name, total_rows, processed_count, failed_rows, status, created_at)
			VALUES ($1, $2, $3, $4, 0, 0, $5, $6)`

		if _, err := tx.Exec(ctx, query,
			batch.ID, batch.EntityID, batch.FileName, batch.TotalRows, batch.Status, batch.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}

		src := make([][]any, len(rows))
		for i, row := range rows {
			if row.ID == uuid.Nil {
				row.ID = uuid.New()
			}
			row.BatchID = batch.ID
			row.RowStatus = models.RowStatusPending
			src[i] = []any{row.ID, row.BatchID, row.RowIndex, row.RawText, nullString(row.Product), row.RowStatus}
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"raw_feeds"},
			[]string{"id", "batch_id", "row_index", "raw_text", "product", "row_status"},
			pgx.CopyFromRows(src))
		if err != nil {
			return fmt.Errorf("failed to bulk insert raw feeds: %w", err)
		}
		return nil
	})
}

const batchColumns = `id, entity_id, file_name, total_rows, processed_count, failed_rows, status, created_at`

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var b models.Batch
	err := row.Scan(&b.ID, &b.EntityID, &b.FileName, &b.TotalRows,
		&b.ProcessedCount, &b.FailedRows, &b.Status, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	b, err := scanBatch(r.db.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

func (r *batchRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*models.Batch, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE entity_id = $1 ORDER BY created_at DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (r *batchRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE batches SET status = $1 WHERE id = $2 AND status = $3`,
		models.BatchStatusProcessing, id, models.BatchStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	return nil
}

func (r *batchRepository) RecordRowAnalyzed(ctx context.Context, result *models.ProcessedFeedback) (models.BatchProgress, bool, error) {
	var progress models.BatchProgress
	applied := false

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		// Idempotency gate: only the first terminal outcome for a row gets
		// through. Redeliveries and late duplicates see zero rows affected.
		tag, err := tx.Exec(ctx,
			`UPDATE raw_feeds SET row_status = $1 WHERE id = $2 AND row_status = $3`,
			models.RowStatusAnalyzed, result.RawFeedID, models.RowStatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark row analyzed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if result.ID == uuid.Nil {
			result.ID = uuid.New()
		}
		result.ProcessedAt = time.Now()

		topics, err := json.Marshal(result.Topics)
		if err != nil {
			return fmt.Errorf("failed to marshal topics: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO processed_feedback (id, raw_feed_id, batch_id, sentiment, sentiment_score, urgency, topics, text_preview, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			result.ID, result.RawFeedID, result.BatchID, result.Sentiment,
			result.SentimentScore, result.Urgency, topics, result.TextPreview, result.ProcessedAt)
		if err != nil {
			return fmt.Errorf("failed to insert processed feedback: %w", err)
		}

		err = tx.QueryRow(ctx, `
			UPDATE batches SET processed_count = processed_count + 1
			WHERE id = $1
			RETURNING processed_count, failed_rows, total_rows`,
			result.BatchID,
		).Scan(&progress.ProcessedCount, &progress.FailedRows, &progress.TotalRows)
		if err != nil {
			return fmt.Errorf("failed to advance processed count: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return models.BatchProgress{}, false, err
	}
	return progress, applied, nil
}

func (r *batchRepository) RecordRowFailed(ctx context.Context, batchID, rawFeedID uuid.UUID) (models.BatchProgress, bool, error) {
	var progress models.BatchProgress
	applied := false

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE raw_feeds SET row_status = $1 WHERE id = $2 AND row_status = $3`,
			models.RowStatusFailed, rawFeedID, models.RowStatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark row failed: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		err = tx.QueryRow(ctx, `
			UPDATE batches SET failed_rows = failed_rows + 1
			WHERE id = $1
			RETURNING processed_count, failed_rows, total_rows`,
			batchID,
		).Scan(&progress.ProcessedCount, &progress.FailedRows, &progress.TotalRows)
		if err != nil {
			return fmt.Errorf("failed to advance failed count: %w", err)
		}

		applied = true
		return nil
	})
	if err != nil {
		return models.BatchProgress{}, false, err
	}
	return progress, applied, nil
}

func (r *batchRepository) ClaimCompletion(ctx context.Context, id uuid.UUID, status models.BatchStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("cannot claim non-terminal status %q", status)
	}

	// Matches queued as well as processing: the last row outcome can land
	// before the post-enqueue flip to processing commits, and the batch must
	// still resolve.
	tag, err := r.db.Exec(ctx, `
		UPDATE batches SET status = $1
		WHERE id = $2 AND status IN ($3, $4) AND processed_count + failed_rows = total_rows`,
		status, id, models.BatchStatusQueued, models.BatchStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to claim batch completion: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *batchRepository) ListQueuedWithoutTasks(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT b.id FROM batches b
		WHERE b.status = $1
		  AND b.created_at < $2
		  AND NOT EXISTS (SELECT 1 FROM analysis_tasks t WHERE t.batch_id = b.id)`,
		models.BatchStatusQueued, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued batches: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan batch id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *batchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

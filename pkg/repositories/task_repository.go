package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crowdpulse/feedback-engine/pkg/database"
	"github.com/crowdpulse/feedback-engine/pkg/models"
)

// TaskRepository is the durable analysis task queue, backed by the
// analysis_tasks table. Claiming uses FOR UPDATE SKIP LOCKED so concurrent
// workers never hand the same task to two consumers, while a crashed
// worker's claim expires via the stalled-release sweep. Delivery is
// therefore at-least-once; consumers must be idempotent.
type TaskRepository interface {
	// Enqueue inserts one task per raw feed in a single transaction.
	Enqueue(ctx context.Context, tasks []*models.AnalysisTask) error

	// Claim leases the oldest ready task to the caller, or returns nil when
	// the queue has nothing ready.
	Claim(ctx context.Context) (*models.AnalysisTask, error)

	// Ack removes a task after its outcome has been durably recorded.
	Ack(ctx context.Context, id uuid.UUID) error

	// Release returns a claimed task to the queue for redelivery no earlier
	// than availableAt, recording the consumed attempt.
	Release(ctx context.Context, id uuid.UUID, attemptCount int, availableAt time.Time) error

	// ReleaseStalled unlocks tasks claimed more than visibility ago,
	// making them deliverable again. Returns the number released.
	ReleaseStalled(ctx context.Context, visibility time.Duration) (int64, error)
}

type taskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *database.DB) TaskRepository {
	return &taskRepository{db: db}
}

var _ TaskRepository = (*taskRepository)(nil)

func (r *taskRepository) Enqueue(ctx context.Context, tasks []*models.AnalysisTask) error {
	if len(tasks) == 0 {
		return nil
	}

	now := time.Now()
	src := make([][]any, len(tasks))
	for i, task := range tasks {
		if task.ID == uuid.Nil {
			task.ID = uuid.New()
		}
		if task.AvailableAt.IsZero() {
			task.AvailableAt = now
		}
		task.CreatedAt = now
		src[i] = []any{task.ID, task.BatchID, task.RawFeedID, task.AttemptCount, task.AvailableAt, task.CreatedAt}
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"analysis_tasks"},
			[]string{"id", "batch_id", "raw_feed_id", "attempt_count", "available_at", "created_at"},
			pgx.CopyFromRows(src))
		if err != nil {
			return fmt.Errorf("failed to enqueue analysis tasks: %w", err)
		}
		return nil
	})
}

func (r *taskRepository) Claim(ctx context.Context) (*models.AnalysisTask, error) {
	var task models.AnalysisTask

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, batch_id, raw_feed_id, attempt_count, available_at, created_at
			FROM analysis_tasks
			WHERE locked_at IS NULL AND available_at <= now()
			ORDER BY available_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1`,
		).Scan(&task.ID, &task.BatchID, &task.RawFeedID, &task.AttemptCount, &task.AvailableAt, &task.CreatedAt)
		if err != nil {
			return err
		}

		now := time.Now()
		task.LockedAt = &now
		_, err = tx.Exec(ctx,
			`UPDATE analysis_tasks SET locked_at = $1 WHERE id = $2`, now, task.ID)
		if err != nil {
			return fmt.Errorf("failed to lock task: %w", err)
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	return &task, nil
}

func (r *taskRepository) Ack(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM analysis_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

func (r *taskRepository) Release(ctx context.Context, id uuid.UUID, attemptCount int, availableAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE analysis_tasks
		SET locked_at = NULL, attempt_count = $1, available_at = $2
		WHERE id = $3`,
		attemptCount, availableAt, id)
	if err != nil {
		return fmt.Errorf("failed to release task: %w", err)
	}
	return nil
}

func (r *taskRepository) ReleaseStalled(ctx context.Context, visibility time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE analysis_tasks
		SET locked_at = NULL
		WHERE locked_at IS NOT NULL AND locked_at < $1`,
		time.Now().Add(-visibility))
	if err != nil {
		return 0, fmt.Errorf("failed to release stalled tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/ingest"
	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
)

// BatchView is the pollable batch status payload.
type BatchView struct {
	ID             uuid.UUID          `json:"id"`
	EntityID       uuid.UUID          `json:"entity_id"`
	FileName       string             `json:"file_name"`
	Status         models.BatchStatus `json:"status"`
	TotalRows      int                `json:"total_rows"`
	ProcessedCount int                `json:"processed_count"`
	FailedRows     int                `json:"failed_rows"`
	Percentage     int                `json:"percentage"`
	CreatedAt      time.Time          `json:"created_at"`
}

func newBatchView(b *models.Batch) *BatchView {
	return &BatchView{
		ID:             b.ID,
		EntityID:       b.EntityID,
		FileName:       b.FileName,
		Status:         b.Status,
		TotalRows:      b.TotalRows,
		ProcessedCount: b.ProcessedCount,
		FailedRows:     b.FailedRows,
		Percentage:     b.Percentage(),
		CreatedAt:      b.CreatedAt,
	}
}

// BatchService owns the batch lifecycle: creation with durable rows, task
// enqueue, the queued-batch recovery sweep, status reads and cascade delete.
type BatchService struct {
	batches  repositories.BatchRepository
	feeds    repositories.FeedRepository
	tasks    repositories.TaskRepository
	entities repositories.EntityRepository
	cache    StatsCache
	logger   *zap.Logger
}

// NewBatchService creates a new BatchService. cache may be nil when Redis is
// not configured.
func NewBatchService(
	batches repositories.BatchRepository,
	feeds repositories.FeedRepository,
	tasks repositories.TaskRepository,
	entities repositories.EntityRepository,
	cache StatsCache,
	logger *zap.Logger,
) *BatchService {
	return &BatchService{
		batches:  batches,
		feeds:    feeds,
		tasks:    tasks,
		entities: entities,
		cache:    cache,
		logger:   logger.Named("batch_service"),
	}
}

// CreateBatch persists the batch with all of its rows, enqueues one analysis
// task per row and moves the batch to processing. The batch and its rows
// commit in one transaction before any task exists, so an enqueue failure
// leaves a consistent queued batch that SweepQueued later repairs.
func (s *BatchService) CreateBatch(ctx context.Context, entityID uuid.UUID, fileName string, rows []ingest.Row) (*BatchView, error) {
	if len(rows) == 0 {
		return nil, apperrors.ErrEmptyUpload
	}
	if _, err := s.entities.GetByID(ctx, entityID); err != nil {
		return nil, err
	}

	batch := &models.Batch{
		ID:        uuid.New(),
		EntityID:  entityID,
		FileName:  fileName,
		TotalRows: len(rows),
		Status:    models.BatchStatusQueued,
	}
	feeds := make([]*models.RawFeed, len(rows))
	for i, row := range rows {
		feeds[i] = &models.RawFeed{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			RowIndex:  row.Index,
			RawText:   row.Text,
			Product:   row.Product,
			RowStatus: models.RowStatusPending,
		}
	}

	if err := s.batches.CreateWithRows(ctx, batch, feeds); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	feedIDs := make([]uuid.UUID, len(feeds))
	for i, feed := range feeds {
		feedIDs[i] = feed.ID
	}
	if err := s.enqueue(ctx, batch.ID, feedIDs); err != nil {
		// Batch stays queued with zero tasks; the sweep re-enqueues it.
		s.logger.Error("failed to enqueue analysis tasks, batch left queued",
			zap.String("batch_id", batch.ID.String()),
			zap.Error(err))
		return newBatchView(batch), nil
	}

	batch.Status = models.BatchStatusProcessing
	return newBatchView(batch), nil
}

func (s *BatchService) enqueue(ctx context.Context, batchID uuid.UUID, feedIDs []uuid.UUID) error {
	tasks := make([]*models.AnalysisTask, len(feedIDs))
	now := time.Now()
	for i, feedID := range feedIDs {
		tasks[i] = &models.AnalysisTask{
			ID:          uuid.New(),
			BatchID:     batchID,
			RawFeedID:   feedID,
			AvailableAt: now,
		}
	}
	if err := s.tasks.Enqueue(ctx, tasks); err != nil {
		return err
	}
	if err := s.batches.MarkProcessing(ctx, batchID); err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	return nil
}

// GetBatch returns the pollable status view.
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*BatchView, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return newBatchView(batch), nil
}

// ListBatches returns all batches of an entity, newest first.
func (s *BatchService) ListBatches(ctx context.Context, entityID uuid.UUID) ([]*BatchView, error) {
	batches, err := s.batches.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	views := make([]*BatchView, len(batches))
	for i, b := range batches {
		views[i] = newBatchView(b)
	}
	return views, nil
}

// DeleteBatch removes a batch and, via FK cascade, its rows, analysis
// results and pending tasks. Only the owner of the batch's entity may
// delete it.
func (s *BatchService) DeleteBatch(ctx context.Context, id, callerID uuid.UUID) error {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	entity, err := s.entities.GetByID(ctx, batch.EntityID)
	if err != nil {
		return err
	}
	if entity.OwnerID != callerID {
		return apperrors.ErrForbidden
	}

	if err := s.batches.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, batch.EntityID)
	}

	s.logger.Info("batch deleted",
		zap.String("batch_id", id.String()),
		zap.String("entity_id", batch.EntityID.String()))
	return nil
}

// SweepQueued re-enqueues batches stuck in queued with no tasks, repairing
// enqueue failures from CreateBatch. cutoffAge keeps the sweep from racing a
// CreateBatch that is still between its two transactions.
func (s *BatchService) SweepQueued(ctx context.Context, cutoffAge time.Duration) error {
	ids, err := s.batches.ListQueuedWithoutTasks(ctx, time.Now().Add(-cutoffAge))
	if err != nil {
		return fmt.Errorf("failed to list stuck batches: %w", err)
	}

	for _, batchID := range ids {
		feedIDs, err := s.feeds.PendingIDs(ctx, batchID)
		if err != nil {
			s.logger.Error("sweep: failed to list pending rows",
				zap.String("batch_id", batchID.String()), zap.Error(err))
			continue
		}
		if err := s.enqueue(ctx, batchID, feedIDs); err != nil {
			s.logger.Error("sweep: failed to re-enqueue batch",
				zap.String("batch_id", batchID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("sweep: re-enqueued stuck batch",
			zap.String("batch_id", batchID.String()),
			zap.Int("tasks", len(feedIDs)))
	}
	return nil
}

// RunSweeper runs SweepQueued on a ticker until ctx is cancelled.
func (s *BatchService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepQueued(ctx, interval); err != nil {
				s.logger.Error("queued-batch sweep failed", zap.Error(err))
			}
		}
	}
}

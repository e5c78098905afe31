package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/ingest"
	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
)

type stubEntityRepo struct {
	repositories.EntityRepository
	entities map[uuid.UUID]*models.BusinessEntity
}

func (r *stubEntityRepo) GetByID(_ context.Context, id uuid.UUID) (*models.BusinessEntity, error) {
	entity, ok := r.entities[id]
	if !ok {
		return nil, apperrors.ErrEntityNotFound
	}
	return entity, nil
}

type stubBatchRepo struct {
	repositories.BatchRepository
	batches        map[uuid.UUID]*models.Batch
	rows           map[uuid.UUID][]*models.RawFeed
	deleted        []uuid.UUID
	stuck          []uuid.UUID
	createErr      error
	markProcessing []uuid.UUID
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{
		batches: make(map[uuid.UUID]*models.Batch),
		rows:    make(map[uuid.UUID][]*models.RawFeed),
	}
}

func (r *stubBatchRepo) CreateWithRows(_ context.Context, batch *models.Batch, rows []*models.RawFeed) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.batches[batch.ID] = batch
	r.rows[batch.ID] = rows
	return nil
}

func (r *stubBatchRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Batch, error) {
	batch, ok := r.batches[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return batch, nil
}

func (r *stubBatchRepo) ListByEntity(_ context.Context, entityID uuid.UUID) ([]*models.Batch, error) {
	var out []*models.Batch
	for _, b := range r.batches {
		if b.EntityID == entityID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *stubBatchRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	r.markProcessing = append(r.markProcessing, id)
	if batch, ok := r.batches[id]; ok && batch.Status == models.BatchStatusQueued {
		batch.Status = models.BatchStatusProcessing
	}
	return nil
}

func (r *stubBatchRepo) ListQueuedWithoutTasks(_ context.Context, _ time.Time) ([]uuid.UUID, error) {
	return r.stuck, nil
}

func (r *stubBatchRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.batches[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.batches, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type stubTaskRepo struct {
	repositories.TaskRepository
	enqueued   []*models.AnalysisTask
	enqueueErr error
}

func (r *stubTaskRepo) Enqueue(_ context.Context, tasks []*models.AnalysisTask) error {
	if r.enqueueErr != nil {
		return r.enqueueErr
	}
	r.enqueued = append(r.enqueued, tasks...)
	return nil
}

type stubFeedRepo struct {
	repositories.FeedRepository
	pending map[uuid.UUID][]uuid.UUID
}

func (r *stubFeedRepo) PendingIDs(_ context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	return r.pending[batchID], nil
}

type spyCache struct {
	invalidated []uuid.UUID
}

func (c *spyCache) Get(_ context.Context, _ uuid.UUID) (*models.FeedbackStats, bool) {
	return nil, false
}
func (c *spyCache) Set(_ context.Context, _ uuid.UUID, _ *models.FeedbackStats) {}
func (c *spyCache) Invalidate(_ context.Context, entityID uuid.UUID) {
	c.invalidated = append(c.invalidated, entityID)
}

type batchServiceFixture struct {
	svc      *BatchService
	entities *stubEntityRepo
	batches  *stubBatchRepo
	tasks    *stubTaskRepo
	feeds    *stubFeedRepo
	cache    *spyCache
	entityID uuid.UUID
	ownerID  uuid.UUID
}

func newBatchServiceFixture() *batchServiceFixture {
	entityID := uuid.New()
	ownerID := uuid.New()

	f := &batchServiceFixture{
		entities: &stubEntityRepo{entities: map[uuid.UUID]*models.BusinessEntity{
			entityID: {ID: entityID, Name: "acme", OwnerID: ownerID},
		}},
		batches:  newStubBatchRepo(),
		tasks:    &stubTaskRepo{},
		feeds:    &stubFeedRepo{pending: make(map[uuid.UUID][]uuid.UUID)},
		cache:    &spyCache{},
		entityID: entityID,
		ownerID:  ownerID,
	}
	f.svc = NewBatchService(f.batches, f.feeds, f.tasks, f.entities, f.cache, zap.NewNop())
	return f
}

func sampleRows(n int) []ingest.Row {
	rows := make([]ingest.Row, n)
	for i := range rows {
		rows[i] = ingest.Row{Index: i, Text: "feedback text"}
	}
	return rows
}

func TestCreateBatchRejectsEmptyUpload(t *testing.T) {
	f := newBatchServiceFixture()

	_, err := f.svc.CreateBatch(context.Background(), f.entityID, "empty.csv", nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyUpload)
}

func TestCreateBatchRejectsUnknownEntity(t *testing.T) {
	f := newBatchServiceFixture()

	_, err := f.svc.CreateBatch(context.Background(), uuid.New(), "f.csv", sampleRows(3))
	assert.ErrorIs(t, err, apperrors.ErrEntityNotFound)
}

func TestCreateBatchEnqueuesOneTaskPerRow(t *testing.T) {
	f := newBatchServiceFixture()

	view, err := f.svc.CreateBatch(context.Background(), f.entityID, "feedback.csv", sampleRows(5))
	require.NoError(t, err)

	assert.Equal(t, models.BatchStatusProcessing, view.Status)
	assert.Equal(t, 5, view.TotalRows)
	assert.Equal(t, 0, view.ProcessedCount)
	assert.Equal(t, 0, view.Percentage)
	assert.Len(t, f.tasks.enqueued, 5)
	require.Len(t, f.batches.rows[view.ID], 5)
	assert.Equal(t, models.RowStatusPending, f.batches.rows[view.ID][0].RowStatus)

	for _, task := range f.tasks.enqueued {
		assert.Equal(t, view.ID, task.BatchID)
	}
}

func TestCreateBatchSurvivesEnqueueFailure(t *testing.T) {
	f := newBatchServiceFixture()
	f.tasks.enqueueErr = errors.New("queue unavailable")

	view, err := f.svc.CreateBatch(context.Background(), f.entityID, "feedback.csv", sampleRows(3))
	require.NoError(t, err)

	// Batch and rows are durable, status stays queued for the sweep.
	assert.Equal(t, models.BatchStatusQueued, view.Status)
	assert.Empty(t, f.batches.markProcessing)
	assert.Len(t, f.batches.rows[view.ID], 3)
}

func TestSweepQueuedReEnqueuesStuckBatch(t *testing.T) {
	f := newBatchServiceFixture()

	batchID := uuid.New()
	f.batches.batches[batchID] = &models.Batch{
		ID: batchID, EntityID: f.entityID, TotalRows: 2,
		Status: models.BatchStatusQueued,
	}
	f.batches.stuck = []uuid.UUID{batchID}
	f.feeds.pending[batchID] = []uuid.UUID{uuid.New(), uuid.New()}

	require.NoError(t, f.svc.SweepQueued(context.Background(), time.Minute))

	assert.Len(t, f.tasks.enqueued, 2)
	assert.Equal(t, models.BatchStatusProcessing, f.batches.batches[batchID].Status)
}

func TestGetBatchReportsPercentage(t *testing.T) {
	f := newBatchServiceFixture()

	batchID := uuid.New()
	f.batches.batches[batchID] = &models.Batch{
		ID: batchID, EntityID: f.entityID,
		TotalRows: 10, ProcessedCount: 6, FailedRows: 1,
		Status: models.BatchStatusProcessing,
	}

	view, err := f.svc.GetBatch(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 70, view.Percentage)
}

func TestDeleteBatchRequiresOwnership(t *testing.T) {
	f := newBatchServiceFixture()

	batchID := uuid.New()
	f.batches.batches[batchID] = &models.Batch{ID: batchID, EntityID: f.entityID}

	err := f.svc.DeleteBatch(context.Background(), batchID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Empty(t, f.batches.deleted)
}

func TestDeleteBatchByOwnerInvalidatesCache(t *testing.T) {
	f := newBatchServiceFixture()

	batchID := uuid.New()
	f.batches.batches[batchID] = &models.Batch{ID: batchID, EntityID: f.entityID}

	require.NoError(t, f.svc.DeleteBatch(context.Background(), batchID, f.ownerID))
	assert.Equal(t, []uuid.UUID{batchID}, f.batches.deleted)
	assert.Equal(t, []uuid.UUID{f.entityID}, f.cache.invalidated)
}

func TestDeleteBatchNotFound(t *testing.T) {
	f := newBatchServiceFixture()

	err := f.svc.DeleteBatch(context.Background(), uuid.New(), f.ownerID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

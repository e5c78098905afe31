// Package pipeline drains the durable analysis task queue with a bounded
// worker pool, classifies each row, records outcomes atomically and resolves
// terminal batch status exactly once.
package pipeline

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/apperrors"
	"github.com/crowdpulse/feedback-engine/pkg/classifier"
	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
)

// Config configures the worker pool and its retry policy.
type Config struct {
	Workers         int           // simultaneous in-flight Classify calls
	PollInterval    time.Duration // idle wait between queue checks
	ClassifyTimeout time.Duration // per-call bound, distinct from retry policy
	MaxAttempts     int           // delivery attempts before a row fails permanently
	InitialBackoff  time.Duration // first redelivery delay
	MaxBackoff      time.Duration // redelivery delay cap
	StalledAfter    time.Duration // visibility timeout for crashed workers
	SweepInterval   time.Duration // cadence of the stalled-task release
}

// DefaultConfig returns sensible defaults.
// Backoff schedule: 2s, 4s, 8s... capped at 30s.
func DefaultConfig() Config {
	return Config{
		Workers:         16,
		PollInterval:    time.Second,
		ClassifyTimeout: 30 * time.Second,
		MaxAttempts:     3,
		InitialBackoff:  2 * time.Second,
		MaxBackoff:      30 * time.Second,
		StalledAfter:    5 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

// Pool is the analysis worker pool. All shared mutable state (batch
// counters, row status) lives in storage behind transaction-scoped
// conditional updates; the pool itself holds nothing that would be lost in
// a crash.
type Pool struct {
	cfg     Config
	tasks   repositories.TaskRepository
	batches repositories.BatchRepository
	feeds   repositories.FeedRepository
	clf     classifier.Classifier
	logger  *zap.Logger
}

// New creates a worker pool. Zero-valued config fields fall back to defaults.
func New(
	cfg Config,
	tasks repositories.TaskRepository,
	batches repositories.BatchRepository,
	feeds repositories.FeedRepository,
	clf classifier.Classifier,
	logger *zap.Logger,
) *Pool {
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = def.ClassifyTimeout
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.StalledAfter <= 0 {
		cfg.StalledAfter = def.StalledAfter
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}

	return &Pool{
		cfg:     cfg,
		tasks:   tasks,
		batches: batches,
		feeds:   feeds,
		clf:     clf,
		logger:  logger.Named("pipeline"),
	}
}

// Run starts the workers and the stalled-task sweep, blocking until ctx is
// cancelled and all workers have drained their current task.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("starting worker pool",
		zap.Int("workers", p.cfg.Workers),
		zap.String("classifier", p.clf.Name()),
		zap.Int("max_attempts", p.cfg.MaxAttempts))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		p.stalledSweep(ctx)
	}()

	wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker claims and handles one task at a time, idling on the poll interval
// when the queue has nothing ready.
func (p *Pool) worker(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker", id))

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := p.tasks.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to claim task", zap.Error(err))
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}
		if task == nil {
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}

		p.handleTask(ctx, logger, task)
	}
}

// handleTask executes the per-task algorithm. The row-status check and the
// conditional outcome updates make the whole path idempotent under
// at-least-once delivery: a redelivered task whose row is already terminal
// is acknowledged without touching any counter.
func (p *Pool) handleTask(ctx context.Context, logger *zap.Logger, task *models.AnalysisTask) {
	feed, err := p.feeds.GetByID(ctx, task.RawFeedID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Batch deleted while the task was in flight. Drop without error.
		logger.Debug("raw feed gone, dropping task", zap.String("task_id", task.ID.String()))
		p.ack(ctx, logger, task)
		return
	}
	if err != nil {
		logger.Error("failed to load raw feed", zap.Error(err))
		p.release(ctx, logger, task, task.AttemptCount, p.cfg.PollInterval)
		return
	}

	if feed.RowStatus.IsTerminal() {
		// Redelivery of an already-recorded outcome.
		logger.Debug("row already terminal, dropping task",
			zap.String("raw_feed_id", feed.ID.String()),
			zap.String("row_status", string(feed.RowStatus)))
		p.ack(ctx, logger, task)
		return
	}

	result, err := p.classify(ctx, feed.RawText)
	if err == nil {
		p.recordSuccess(ctx, logger, task, feed, result)
		return
	}

	attempt := task.AttemptCount + 1
	if classifier.IsRetryable(err) && attempt < p.cfg.MaxAttempts {
		backoff := p.backoff(attempt)
		logger.Warn("transient classify failure, scheduling redelivery",
			zap.String("raw_feed_id", feed.ID.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.cfg.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		p.release(ctx, logger, task, attempt, backoff)
		return
	}

	logger.Warn("permanent classify failure, marking row failed",
		zap.String("raw_feed_id", feed.ID.String()),
		zap.Int("attempt", attempt),
		zap.Error(err))
	p.recordFailure(ctx, logger, task)
}

func (p *Pool) classify(ctx context.Context, text string) (*classifier.Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.ClassifyTimeout)
	defer cancel()
	return p.clf.Classify(callCtx, text)
}

func (p *Pool) recordSuccess(ctx context.Context, logger *zap.Logger, task *models.AnalysisTask, feed *models.RawFeed, result *classifier.Result) {
	pf := &models.ProcessedFeedback{
		RawFeedID:      feed.ID,
		BatchID:        feed.BatchID,
		Sentiment:      result.Sentiment,
		SentimentScore: result.SentimentScore,
		Urgency:        result.Urgency,
		Topics:         result.Topics,
		TextPreview:    models.Preview(feed.RawText),
	}

	progress, applied, err := p.batches.RecordRowAnalyzed(ctx, pf)
	if err != nil {
		logger.Error("failed to record row outcome", zap.Error(err))
		p.release(ctx, logger, task, task.AttemptCount, p.cfg.PollInterval)
		return
	}
	if applied {
		p.maybeResolve(ctx, logger, feed.BatchID, progress)
	}
	p.ack(ctx, logger, task)
}

func (p *Pool) recordFailure(ctx context.Context, logger *zap.Logger, task *models.AnalysisTask) {
	progress, applied, err := p.batches.RecordRowFailed(ctx, task.BatchID, task.RawFeedID)
	if err != nil {
		logger.Error("failed to record row failure", zap.Error(err))
		p.release(ctx, logger, task, task.AttemptCount, p.cfg.PollInterval)
		return
	}
	if applied {
		p.maybeResolve(ctx, logger, task.BatchID, progress)
	}
	p.ack(ctx, logger, task)
}

// maybeResolve claims the terminal batch transition once every row is
// accounted for. The conditional update in ClaimCompletion guarantees a
// single winner when several workers finish the last rows simultaneously.
func (p *Pool) maybeResolve(ctx context.Context, logger *zap.Logger, batchID uuid.UUID, progress models.BatchProgress) {
	if !progress.AllAccounted() {
		return
	}

	status := progress.TerminalStatus()
	won, err := p.batches.ClaimCompletion(ctx, batchID, status)
	if err != nil {
		logger.Error("failed to claim batch completion",
			zap.String("batch_id", batchID.String()),
			zap.Error(err))
		return
	}
	if won {
		logger.Info("batch resolved",
			zap.String("batch_id", batchID.String()),
			zap.String("status", string(status)),
			zap.Int("processed", progress.ProcessedCount),
			zap.Int("failed", progress.FailedRows),
			zap.Int("total", progress.TotalRows))
	}
}

func (p *Pool) ack(ctx context.Context, logger *zap.Logger, task *models.AnalysisTask) {
	// Ack failure leaves the task for redelivery; the idempotency guard
	// turns that redelivery into a no-op.
	if err := p.tasks.Ack(ctx, task.ID); err != nil {
		logger.Error("failed to ack task", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

func (p *Pool) release(ctx context.Context, logger *zap.Logger, task *models.AnalysisTask, attemptCount int, delay time.Duration) {
	if err := p.tasks.Release(ctx, task.ID, attemptCount, time.Now().Add(delay)); err != nil {
		logger.Error("failed to release task", zap.String("task_id", task.ID.String()), zap.Error(err))
	}
}

// backoff computes the redelivery delay for a retry attempt: initial backoff
// doubling per attempt, capped, with +/-10% jitter to prevent thundering herd.
func (p *Pool) backoff(attempt int) time.Duration {
	d := float64(p.cfg.InitialBackoff) * math.Pow(2, float64(attempt-1))
	if d > float64(p.cfg.MaxBackoff) {
		d = float64(p.cfg.MaxBackoff)
	}
	jitter := d * 0.1 * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

func (p *Pool) stalledSweep(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := p.tasks.ReleaseStalled(ctx, p.cfg.StalledAfter)
			if err != nil {
				p.logger.Error("failed to release stalled tasks", zap.Error(err))
				continue
			}
			if released > 0 {
				p.logger.Warn("released stalled tasks", zap.Int64("count", released))
			}
		}
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

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

// FeedRepository provides read access to raw feed rows and their analysis
// results for the worker pool and the query surface.
type FeedRepository interface {
	// GetByID fetches a raw feed row. Workers use this both to load the text
	// to classify and as the idempotency guard (row_status check).
	GetByID(ctx context.Context, id uuid.UUID) (*models.RawFeed, error)

	// PendingIDs lists raw feeds of a batch that still await analysis,
	// ordered by row index. Used by the re-enqueue sweep.
	PendingIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error)

	// ListFeedback returns the joined raw/processed projection under filter.
	ListFeedback(ctx context.Context, filter models.FeedbackFilter) ([]*models.FeedbackRow, error)

	// Stats aggregates row statuses, sentiment/urgency breakdowns and the
	// 7-day ingestion trend for an entity.
	Stats(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, error)
}

type feedRepository struct {
	db *database.DB
}

// NewFeedRepository creates a new FeedRepository.
func NewFeedRepository(db *database.DB) FeedRepository {
	return &feedRepository{db: db}
}

var _ FeedRepository = (*feedRepository)(nil)

func (r *feedRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RawFeed, error) {
	var f models.RawFeed
	var product *string

	err := r.db.QueryRow(ctx, `
		SELECT id, batch_id, row_index, raw_text, product, row_status, created_at
		FROM raw_feeds WHERE id = $1`, id,
	).Scan(&f.ID, &f.BatchID, &f.RowIndex, &f.RawText, &product, &f.RowStatus, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw feed: %w", err)
	}
	if product != nil {
		f.Product = *product
	}
	return &f, nil
}

func (r *feedRepository) PendingIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM raw_feeds
		WHERE batch_id = $1 AND row_status = $2
		ORDER BY row_index`, batchID, models.RowStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending rows: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan raw feed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *feedRepository) ListFeedback(ctx context.Context, filter models.FeedbackFilter) ([]*models.FeedbackRow, error) {
	query := `
		SELECT rf.id, rf.batch_id, rf.row_index, rf.raw_text, rf.product, rf.row_status, rf.created_at,
		       pf.id, pf.sentiment, pf.sentiment_score, pf.urgency, pf.topics, pf.text_preview, pf.processed_at
		FROM raw_feeds rf
		JOIN batches b ON b.id = rf.batch_id
		LEFT JOIN processed_feedback pf ON pf.raw_feed_id = rf.id
		WHERE 1=1`

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EntityID != nil {
		query += ` AND b.entity_id = ` + arg(*filter.EntityID)
	}
	if filter.BatchID != nil {
		query += ` AND rf.batch_id = ` + arg(*filter.BatchID)
	}
	if filter.Sentiment != "" {
		query += ` AND pf.sentiment = ` + arg(filter.Sentiment)
	}
	if filter.Urgency != "" {
		query += ` AND pf.urgency = ` + arg(filter.Urgency)
	}
	if filter.From != nil {
		query += ` AND rf.created_at >= ` + arg(*filter.From)
	}
	if filter.To != nil {
		query += ` AND rf.created_at <= ` + arg(*filter.To)
	}

	query += ` ORDER BY rf.created_at DESC, rf.row_index`

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var out []*models.FeedbackRow
	for rows.Next() {
		var fr models.FeedbackRow
		var product *string
		var pfID *uuid.UUID
		var sentiment, urgency, preview *string
		var score *float64
		var topics []byte
		var processedAt *time.Time

		err := rows.Scan(
			&fr.RawFeed.ID, &fr.RawFeed.BatchID, &fr.RawFeed.RowIndex, &fr.RawFeed.RawText,
			&product, &fr.RawFeed.RowStatus, &fr.RawFeed.CreatedAt,
			&pfID, &sentiment, &score, &urgency, &topics, &preview, &processedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}

		if product != nil {
			fr.RawFeed.Product = *product
		}
		if pfID != nil {
			pf := &models.ProcessedFeedback{
				ID:             *pfID,
				RawFeedID:      fr.RawFeed.ID,
				BatchID:        fr.RawFeed.BatchID,
				Sentiment:      *sentiment,
				SentimentScore: *score,
				Urgency:        *urgency,
				TextPreview:    *preview,
				ProcessedAt:    *processedAt,
			}
			if len(topics) > 0 {
				if err := json.Unmarshal(topics, &pf.Topics); err != nil {
					return nil, fmt.Errorf("failed to unmarshal topics: %w", err)
				}
			}
			fr.Processed = pf
		}
		out = append(out, &fr)
	}
	return out, rows.Err()
}

func (r *feedRepository) Stats(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, error) {
	stats := &models.FeedbackStats{
		SentimentCounts: make(map[string]int),
		UrgencyCounts:   make(map[string]int),
	}

	err := r.db.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE rf.row_status = 'pending'),
		       count(*) FILTER (WHERE rf.row_status = 'analyzed'),
		       count(*) FILTER (WHERE rf.row_status = 'failed')
		FROM raw_feeds rf
		JOIN batches b ON b.id = rf.batch_id
		WHERE b.entity_id = $1`, entityID,
	).Scan(&stats.TotalRows, &stats.PendingRows, &stats.AnalyzedRows, &stats.FailedRows)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate row statuses: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT pf.sentiment, pf.urgency, count(*), avg(pf.sentiment_score)
		FROM processed_feedback pf
		JOIN batches b ON b.id = pf.batch_id
		WHERE b.entity_id = $1
		GROUP BY pf.sentiment, pf.urgency`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate classifications: %w", err)
	}
	defer rows.Close()

	var weightedScore float64
	var scored int
	for rows.Next() {
		var sentiment, urgency string
		var count int
		var avgScore float64
		if err := rows.Scan(&sentiment, &urgency, &count, &avgScore); err != nil {
			return nil, fmt.Errorf("failed to scan classification bucket: %w", err)
		}
		stats.SentimentCounts[sentiment] += count
		stats.UrgencyCounts[urgency] += count
		weightedScore += avgScore * float64(count)
		scored += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if scored > 0 {
		stats.AvgSentimentScore = weightedScore / float64(scored)
	}

	trend, err := r.dailyTrend(ctx, entityID)
	if err != nil {
		return nil, err
	}
	stats.DailyTrend = trend

	return stats, nil
}

// dailyTrend counts ingested rows per day over the last 7 days, zero-filling
// days with no uploads.
func (r *feedRepository) dailyTrend(ctx context.Context, entityID uuid.UUID) ([]models.DailyCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', rf.created_at)::date AS day, count(*)
		FROM raw_feeds rf
		JOIN batches b ON b.id = rf.batch_id
		WHERE b.entity_id = $1 AND rf.created_at >= now() - interval '7 days'
		GROUP BY day`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily trend: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan trend bucket: %w", err)
		}
		counts[day.Format("2006-01-02")] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	trend := make([]models.DailyCount, 0, 7)
	for i := 6; i >= 0; i-- {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		trend = append(trend, models.DailyCount{Date: date, Count: counts[date]})
	}
	return trend, nil
}

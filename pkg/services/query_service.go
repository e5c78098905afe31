package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crowdpulse/feedback-engine/pkg/models"
	"github.com/crowdpulse/feedback-engine/pkg/repositories"
)

// StatsCache caches per-entity aggregate stats. Implementations must treat
// cache failures as misses; the cache is an optimization, never a source of
// truth.
type StatsCache interface {
	Get(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, bool)
	Set(ctx context.Context, entityID uuid.UUID, stats *models.FeedbackStats)
	Invalidate(ctx context.Context, entityID uuid.UUID)
}

// RedisStatsCache is a Redis-backed StatsCache with a fixed TTL.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStatsCache creates a Redis stats cache.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStatsCache {
	return &RedisStatsCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("stats_cache"),
	}
}

var _ StatsCache = (*RedisStatsCache)(nil)

func statsKey(entityID uuid.UUID) string {
	return fmt.Sprintf("stats:%s", entityID)
}

func (c *RedisStatsCache) Get(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, bool) {
	raw, err := c.client.Get(ctx, statsKey(entityID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var stats models.FeedbackStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn("stats cache entry corrupt, dropping", zap.Error(err))
		c.client.Del(ctx, statsKey(entityID))
		return nil, false
	}
	return &stats, true
}

func (c *RedisStatsCache) Set(ctx context.Context, entityID uuid.UUID, stats *models.FeedbackStats) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(entityID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

func (c *RedisStatsCache) Invalidate(ctx context.Context, entityID uuid.UUID) {
	if err := c.client.Del(ctx, statsKey(entityID)).Err(); err != nil {
		c.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// QueryService is the read-only query surface over analyzed feedback.
type QueryService struct {
	feeds  repositories.FeedRepository
	cache  StatsCache
	logger *zap.Logger
}

// NewQueryService creates a new QueryService. cache may be nil when Redis is
// not configured, in which case every Stats call hits storage.
func NewQueryService(feeds repositories.FeedRepository, cache StatsCache, logger *zap.Logger) *QueryService {
	return &QueryService{
		feeds:  feeds,
		cache:  cache,
		logger: logger.Named("query_service"),
	}
}

// ListFeedback returns raw rows joined with their analysis results under the
// given filter.
func (s *QueryService) ListFeedback(ctx context.Context, filter models.FeedbackFilter) ([]*models.FeedbackRow, error) {
	return s.feeds.ListFeedback(ctx, filter)
}

// Stats returns per-entity aggregates, served from cache when possible.
func (s *QueryService) Stats(ctx context.Context, entityID uuid.UUID) (*models.FeedbackStats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.Get(ctx, entityID); ok {
			return stats, nil
		}
	}

	stats, err := s.feeds.Stats(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, entityID, stats)
	}
	return stats, nil
}

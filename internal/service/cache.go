package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/tutorlink-api/internal/dto"
	"github.com/noah-isme/tutorlink-api/internal/observability"
)

const latestTuitionsKey = "tutorlink:tuitions:latest"

func dashboardKey(studentID uint) string {
	return fmt.Sprintf("tutorlink:dashboard:student:%d", studentID)
}

// MarketplaceCache stores read-mostly responses in Redis. A nil cache or a nil
// client turns every method into a miss or a no-op.
type MarketplaceCache struct {
	client       *redis.Client
	latestTTL    time.Duration
	dashboardTTL time.Duration
	logger       zerolog.Logger
}

// NewMarketplaceCache builds the cache over an optional Redis client.
func NewMarketplaceCache(client *redis.Client, latestTTL, dashboardTTL time.Duration, logger zerolog.Logger) *MarketplaceCache {
	return &MarketplaceCache{
		client:       client,
		latestTTL:    latestTTL,
		dashboardTTL: dashboardTTL,
		logger:       logger.With().Str("component", "marketplace_cache").Logger(),
	}
}

func (c *MarketplaceCache) enabled() bool {
	return c != nil && c.client != nil
}

// Latest returns the cached latest tuitions.
func (c *MarketplaceCache) Latest(ctx context.Context) ([]dto.TuitionResponse, bool) {
	var items []dto.TuitionResponse
	if !c.load(ctx, "latest", latestTuitionsKey, &items) {
		return nil, false
	}
	return items, true
}

// StoreLatest caches the latest tuitions.
func (c *MarketplaceCache) StoreLatest(ctx context.Context, items []dto.TuitionResponse) {
	if !c.enabled() {
		return
	}
	c.store(ctx, latestTuitionsKey, items, c.latestTTL)
}

// Dashboard returns a cached student dashboard.
func (c *MarketplaceCache) Dashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, bool) {
	var response dto.StudentDashboardResponse
	if !c.load(ctx, "dashboard", dashboardKey(studentID), &response) {
		return dto.StudentDashboardResponse{}, false
	}
	return response, true
}

// StoreDashboard caches a student dashboard.
func (c *MarketplaceCache) StoreDashboard(ctx context.Context, studentID uint, response dto.StudentDashboardResponse) {
	if !c.enabled() {
		return
	}
	c.store(ctx, dashboardKey(studentID), response, c.dashboardTTL)
}

// Invalidate drops the latest tuitions and the dashboards of the given students.
func (c *MarketplaceCache) Invalidate(ctx context.Context, studentIDs ...uint) {
	if !c.enabled() {
		return
	}

	keys := []string{latestTuitionsKey}
	for _, id := range studentIDs {
		if id != 0 {
			keys = append(keys, dashboardKey(id))
		}
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate cache")
	}
}

func (c *MarketplaceCache) load(ctx context.Context, name, key string, target interface{}) bool {
	if !c.enabled() {
		return false
	}

	cached, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		}
		observability.CacheLookups().WithLabelValues(name, "miss").Inc()
		return false
	}

	if err := json.Unmarshal(cached, target); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("discarding unreadable cache entry")
		observability.CacheLookups().WithLabelValues(name, "miss").Inc()
		return false
	}

	observability.CacheLookups().WithLabelValues(name, "hit").Inc()
	return true
}

func (c *MarketplaceCache) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !c.enabled() {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("failed to store cache entry")
	}
}

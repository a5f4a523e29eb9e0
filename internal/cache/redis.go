// Package cache provides a Redis read-through cache for hot lookups.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/storage"
)

const summariesKey = "coins:summaries"

// DefaultTTL bounds how stale the cached summary list may get.
const DefaultTTL = 30 * time.Second

// SummaryCache caches the asset summary projection in front of the
// current-state store. Cache failures degrade to direct store reads; the
// cache is never load-bearing for correctness.
type SummaryCache struct {
	client  *redis.Client
	store   storage.CurrentRecordStore
	ttl     time.Duration
	logger  *log.Logger
	metrics *observability.Metrics
}

// SummaryCacheOptions contains configuration for creating a SummaryCache.
type SummaryCacheOptions struct {
	Client  *redis.Client
	Store   storage.CurrentRecordStore
	TTL     time.Duration
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewSummaryCache creates a new SummaryCache.
func NewSummaryCache(opts SummaryCacheOptions) *SummaryCache {
	ttl := opts.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SummaryCache{
		client:  opts.Client,
		store:   opts.Store,
		ttl:     ttl,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Ping checks the connection to the Redis server.
func (c *SummaryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetSummaries returns the asset summary list, serving from Redis when a
// fresh copy exists and reloading from the store otherwise.
func (c *SummaryCache) GetSummaries(ctx context.Context) ([]domain.AssetSummary, error) {
	cached, err := c.client.Get(ctx, summariesKey).Bytes()
	if err == nil {
		var summaries []domain.AssetSummary
		if err := json.Unmarshal(cached, &summaries); err == nil {
			if c.metrics != nil {
				c.metrics.CacheHits.Inc()
			}
			return summaries, nil
		}
		c.logger.Printf("Drop undecodable cache entry %s", summariesKey)
	} else if err != redis.Nil {
		c.logger.Printf("Cache read failed, falling back to store: %v", err)
	}

	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}

	summaries, err := c.store.GetSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	if encoded, err := json.Marshal(summaries); err == nil {
		if err := c.client.Set(ctx, summariesKey, encoded, c.ttl).Err(); err != nil {
			c.logger.Printf("Cache write failed: %v", err)
		}
	}

	return summaries, nil
}

// Invalidate drops the cached summary list.
func (c *SummaryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, summariesKey).Err()
}

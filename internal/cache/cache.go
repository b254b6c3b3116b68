// Package cache keeps successful scrape results in Redis so repeat analyses
// within the freshness window skip the network entirely. The cache is a pure
// accelerator: any Redis failure is treated as a miss and the pipeline
// scrapes live.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/profiteer/profiteer/internal/domain"
)

const defaultTTL = 30 * time.Minute

// marketplaceTTLs holds per-source freshness windows. TCGPlayer market
// prices move slowly, so they stay cached longer.
var marketplaceTTLs = map[domain.Marketplace]time.Duration{
	domain.MarketplaceEbay:      30 * time.Minute,
	domain.MarketplaceMercari:   30 * time.Minute,
	domain.MarketplaceTCGPlayer: 60 * time.Minute,
}

// ScrapeCache stores scrape results in Redis keyed by marketplace, query and
// condition. Only successful results are stored; failures always fall
// through to a live scrape on the next request.
type ScrapeCache struct {
	client *redis.Client
	log    zerolog.Logger
}

var _ domain.ScrapeCache = (*ScrapeCache)(nil)

// New creates a cache on top of an existing Redis client.
func New(client *redis.Client, log zerolog.Logger) *ScrapeCache {
	return &ScrapeCache{
		client: client,
		log:    log.With().Str("component", "scrape_cache").Logger(),
	}
}

// Get returns the cached result for the key, if present and fresh. Backend
// errors are logged and reported as a miss.
func (c *ScrapeCache) Get(ctx context.Context, mp domain.Marketplace, query, condition string) (*domain.ScrapeResult, bool) {
	key := cacheKey(mp, query, condition)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		return nil, false
	}

	var res domain.ScrapeResult
	if err := msgpack.Unmarshal(raw, &res); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache entry corrupt, treating as miss")
		return nil, false
	}

	c.log.Debug().Str("key", key).Msg("Cache hit")
	return &res, true
}

// Set stores a scrape result under the marketplace TTL. Failed results are
// never stored. Backend errors are logged and swallowed.
func (c *ScrapeCache) Set(ctx context.Context, mp domain.Marketplace, query, condition string, res domain.ScrapeResult) {
	if !res.Success {
		return
	}
	key := cacheKey(mp, query, condition)

	raw, err := msgpack.Marshal(res)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}

	ttl := defaultTTL
	if v, ok := marketplaceTTLs[mp]; ok {
		ttl = v
	}

	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		return
	}
	c.log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Cached scrape result")
}

// Invalidate removes the cached result for the key, if any.
func (c *ScrapeCache) Invalidate(ctx context.Context, mp domain.Marketplace, query, condition string) {
	key := cacheKey(mp, query, condition)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}

// cacheKey normalizes the query so "Charizard  VMAX" and "charizard vmax"
// share an entry.
func cacheKey(mp domain.Marketplace, query, condition string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), "+")
	return fmt.Sprintf("scrape:%s:%s:%s", mp, normalized, strings.ToLower(condition))
}

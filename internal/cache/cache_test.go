package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profiteer/profiteer/internal/domain"
)

func newTestCache(t *testing.T) (*ScrapeCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, zerolog.Nop()), mr
}

func successResult(mp domain.Marketplace) domain.ScrapeResult {
	return domain.ScrapeResult{
		Marketplace:  mp,
		DisplayName:  "eBay",
		Success:      true,
		AvgSoldPrice: 80.0,
		SalesVolume:  12,
		ScrapedAt:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	res := successResult(domain.MarketplaceEbay)
	c.Set(ctx, domain.MarketplaceEbay, "charizard", "used", res)

	got, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	require.True(t, ok)
	assert.Equal(t, res.Marketplace, got.Marketplace)
	assert.InDelta(t, res.AvgSoldPrice, got.AvgSoldPrice, 0.001)
	assert.Equal(t, res.SalesVolume, got.SalesVolume)
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache(t)
	_, ok := c.Get(context.Background(), domain.MarketplaceEbay, "never stored", "used")
	assert.False(t, ok)
}

func TestCacheNeverStoresFailures(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceEbay, "charizard", "used", domain.ScrapeResult{
		Marketplace:  domain.MarketplaceEbay,
		Success:      false,
		ErrorMessage: "no listings found",
	})

	_, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	assert.False(t, ok)
	assert.Empty(t, mr.Keys())
}

func TestCacheKeyNormalization(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceEbay, "Charizard  VMAX", "Used", successResult(domain.MarketplaceEbay))

	_, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard vmax", "used")
	assert.True(t, ok, "case and whitespace variants must share an entry")
}

func TestCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceEbay, "charizard", "used", successResult(domain.MarketplaceEbay))
	_, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	require.True(t, ok)

	mr.FastForward(31 * time.Minute)
	_, ok = c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	assert.False(t, ok)
}

func TestCacheTcgplayerKeepsLongerTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceTCGPlayer, "charizard", "", successResult(domain.MarketplaceTCGPlayer))

	mr.FastForward(45 * time.Minute)
	_, ok := c.Get(ctx, domain.MarketplaceTCGPlayer, "charizard", "")
	assert.True(t, ok, "tcgplayer entries stay fresh for an hour")

	mr.FastForward(20 * time.Minute)
	_, ok = c.Get(ctx, domain.MarketplaceTCGPlayer, "charizard", "")
	assert.False(t, ok)
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceEbay, "charizard", "used", successResult(domain.MarketplaceEbay))
	c.Invalidate(ctx, domain.MarketplaceEbay, "charizard", "used")

	_, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	assert.False(t, ok)
}

func TestCacheBackendDownIsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	c := New(client, zerolog.Nop())
	ctx := context.Background()

	c.Set(ctx, domain.MarketplaceEbay, "charizard", "used", successResult(domain.MarketplaceEbay))
	mr.Close()

	_, ok := c.Get(ctx, domain.MarketplaceEbay, "charizard", "used")
	assert.False(t, ok, "backend failure must degrade to a miss")

	// Writes against a dead backend must not panic or error out.
	c.Set(ctx, domain.MarketplaceEbay, "pikachu", "new", successResult(domain.MarketplaceEbay))
}

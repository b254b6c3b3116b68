package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profiteer/profiteer/internal/database"
	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/items"
	"github.com/profiteer/profiteer/internal/pricehistory"
	"github.com/profiteer/profiteer/internal/scrape"
	"github.com/profiteer/profiteer/internal/work"
)

// stubScraper returns a fixed result, or panics when told to.
type stubScraper struct {
	mp     domain.Marketplace
	name   string
	result domain.ScrapeResult
	panics bool

	mu    sync.Mutex
	calls int
}

func (s *stubScraper) Marketplace() domain.Marketplace { return s.mp }
func (s *stubScraper) DisplayName() string             { return s.name }

func (s *stubScraper) Scrape(ctx context.Context, query, condition string) domain.ScrapeResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("scraper exploded")
	}
	return s.result
}

func (s *stubScraper) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memoryCache is a map-backed domain.ScrapeCache for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.ScrapeResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]domain.ScrapeResult)}
}

func (c *memoryCache) key(mp domain.Marketplace, query, condition string) string {
	return fmt.Sprintf("%s:%s:%s", mp, query, condition)
}

func (c *memoryCache) Get(ctx context.Context, mp domain.Marketplace, query, condition string) (*domain.ScrapeResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.entries[c.key(mp, query, condition)]
	if !ok {
		return nil, false
	}
	return &res, true
}

func (c *memoryCache) Set(ctx context.Context, mp domain.Marketplace, query, condition string, res domain.ScrapeResult) {
	if !res.Success {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(mp, query, condition)] = res
}

func (c *memoryCache) Invalidate(ctx context.Context, mp domain.Marketplace, query, condition string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.key(mp, query, condition))
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	uri := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

func soldResult(mp domain.Marketplace, name string, avgSold float64, volume int) domain.ScrapeResult {
	return domain.ScrapeResult{
		Marketplace:  mp,
		DisplayName:  name,
		Success:      true,
		AvgSoldPrice: avgSold,
		SalesVolume:  volume,
		ScrapedAt:    time.Now().UTC(),
	}
}

type testEnv struct {
	service *Service
	runner  *work.Runner
	items   *items.Repository
	history *pricehistory.Repository
	cache   *memoryCache
}

func newTestEnv(t *testing.T, scrapers ...domain.Scraper) testEnv {
	t.Helper()
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	cache := newMemoryCache()
	runner := work.NewRunner(16, 5*time.Second, zerolog.Nop())
	t.Cleanup(runner.Close)

	svc := New(scrape.NewRegistry(scrapers...), cache, itemRepo, obsRepo, runner, zerolog.Nop())
	return testEnv{service: svc, runner: runner, items: itemRepo, history: obsRepo, cache: cache}
}

func TestAnalyzeRanksMarketplaces(t *testing.T) {
	ebay := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: soldResult(domain.MarketplaceEbay, "eBay", 80, 12)}
	mercari := &stubScraper{mp: domain.MarketplaceMercari, name: "Mercari",
		result: soldResult(domain.MarketplaceMercari, "Mercari", 95, 4)}
	env := newTestEnv(t, ebay, mercari)

	res, err := env.service.Analyze(context.Background(), Request{
		ItemName:      "Charizard VMAX",
		PurchasePrice: 50,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RequestID)
	require.Len(t, res.Marketplaces, 2)
	assert.Equal(t, "Mercari", res.Marketplaces[0].Marketplace, "higher net profit first")
	assert.Equal(t, "Mercari", res.BestMarketplace)
	assert.InDelta(t, res.Marketplaces[0].NetProfit, res.BestProfit, 0.001)
	assert.Greater(t, res.Marketplaces[0].NetProfit, res.Marketplaces[1].NetProfit)

	// Default weight is 16oz: cheapest option is USPS Priority at 8.80.
	assert.InDelta(t, 8.80, res.Marketplaces[0].EstimatedShipping, 0.001)
	assert.InDelta(t, 1.50, res.Marketplaces[0].PackagingCost, 0.001)
}

func TestAnalyzeExactBreakdownNumbers(t *testing.T) {
	ebay := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: soldResult(domain.MarketplaceEbay, "eBay", 80, 12)}
	env := newTestEnv(t, ebay)

	noPackaging := 0.0
	res, err := env.service.Analyze(context.Background(), Request{
		ItemName:      "Charizard VMAX",
		PurchasePrice: 50,
		WeightOz:      16,
		PackagingCost: &noPackaging,
	})
	require.NoError(t, err)

	require.Len(t, res.Marketplaces, 1)
	b := res.Marketplaces[0]
	assert.InDelta(t, 10.60, b.PlatformFee, 0.001)
	assert.InDelta(t, 2.88, b.PaymentFee, 0.001)
	assert.InDelta(t, 8.80, b.EstimatedShipping, 0.001)
	assert.InDelta(t, 7.72, b.NetProfit, 0.001)
	assert.InDelta(t, 9.65, b.ProfitMargin, 0.001)
	assert.InDelta(t, 15.44, b.ROI, 0.001)
	assert.Equal(t, "marginal", b.Profitability)
}

func TestAnalyzeIsolatesPanickingScraper(t *testing.T) {
	good := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: soldResult(domain.MarketplaceEbay, "eBay", 80, 12)}
	bad := &stubScraper{mp: domain.MarketplaceMercari, name: "Mercari", panics: true}
	alsoGood := &stubScraper{mp: domain.MarketplaceTCGPlayer, name: "TCGPlayer",
		result: soldResult(domain.MarketplaceTCGPlayer, "TCGPlayer", 60, 8)}
	env := newTestEnv(t, good, bad, alsoGood)

	res, err := env.service.Analyze(context.Background(), Request{
		ItemName:      "Charizard VMAX",
		PurchasePrice: 50,
	})
	require.NoError(t, err, "one bad marketplace must not fail the run")
	require.Len(t, res.Marketplaces, 2)
	assert.Equal(t, "eBay", res.BestMarketplace)
}

func TestAnalyzeNoDataResult(t *testing.T) {
	failing := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: domain.ScrapeResult{
			Marketplace: domain.MarketplaceEbay, DisplayName: "eBay",
			Success: false, ErrorMessage: "no listings found",
		}}
	env := newTestEnv(t, failing)

	res, err := env.service.Analyze(context.Background(), Request{
		ItemName:      "Obscure Item",
		PurchasePrice: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "N/A", res.BestMarketplace)
	assert.Zero(t, res.BestProfit)
	assert.Empty(t, res.Marketplaces)
}

func TestAnalyzeValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Analyze(context.Background(), Request{PurchasePrice: 10})
	assert.Error(t, err)

	_, err = env.service.Analyze(context.Background(), Request{ItemName: "x", PurchasePrice: -1})
	assert.Error(t, err)
}

func TestAnalyzePersistsObservationsInBackground(t *testing.T) {
	ebay := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: soldResult(domain.MarketplaceEbay, "eBay", 80, 12)}
	activeOnly := &stubScraper{mp: domain.MarketplaceTCGPlayer, name: "TCGPlayer",
		result: domain.ScrapeResult{
			Marketplace: domain.MarketplaceTCGPlayer, DisplayName: "TCGPlayer",
			Success: true, ActivePrice: 42, ScrapedAt: time.Now().UTC(),
		}}
	env := newTestEnv(t, ebay, activeOnly)
	ctx := context.Background()

	_, err := env.service.Analyze(ctx, Request{ItemName: "Charizard VMAX", PurchasePrice: 50, Condition: "used"})
	require.NoError(t, err)
	require.NoError(t, env.runner.Flush(ctx))

	item, err := env.items.FindOrCreate(ctx, "Charizard VMAX")
	require.NoError(t, err)

	observations, err := env.history.QuerySince(ctx, item.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, observations, 1, "active-only results carry no sale evidence")
	assert.Equal(t, domain.MarketplaceEbay, observations[0].Marketplace)
	assert.InDelta(t, 80.0, observations[0].Price, 0.001)
	assert.Equal(t, "used", observations[0].Condition)
}

func TestAnalyzeUsesCacheOnRepeat(t *testing.T) {
	ebay := &stubScraper{mp: domain.MarketplaceEbay, name: "eBay",
		result: soldResult(domain.MarketplaceEbay, "eBay", 80, 12)}
	env := newTestEnv(t, ebay)
	ctx := context.Background()

	req := Request{ItemName: "Charizard VMAX", PurchasePrice: 50}
	_, err := env.service.Analyze(ctx, req)
	require.NoError(t, err)
	_, err = env.service.Analyze(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, ebay.callCount(), "second run must be served from cache")
}

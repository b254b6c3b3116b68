package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profiteer/profiteer/internal/alerts"
	"github.com/profiteer/profiteer/internal/arbitrage"
	"github.com/profiteer/profiteer/internal/database"
	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/hype"
	"github.com/profiteer/profiteer/internal/items"
	"github.com/profiteer/profiteer/internal/pricehistory"
	"github.com/profiteer/profiteer/internal/scrape"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	uri := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

type fixedScraper struct {
	mp     domain.Marketplace
	name   string
	result domain.ScrapeResult
}

func (s fixedScraper) Marketplace() domain.Marketplace { return s.mp }
func (s fixedScraper) DisplayName() string             { return s.name }
func (s fixedScraper) Scrape(context.Context, string, string) domain.ScrapeResult {
	return s.result
}

type nopCache struct{}

func (nopCache) Get(context.Context, domain.Marketplace, string, string) (*domain.ScrapeResult, bool) {
	return nil, false
}
func (nopCache) Set(context.Context, domain.Marketplace, string, string, domain.ScrapeResult) {}
func (nopCache) Invalidate(context.Context, domain.Marketplace, string, string)              {}

func TestPriceRefreshJob(t *testing.T) {
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	item, err := itemRepo.FindOrCreate(ctx, "Charizard VMAX")
	require.NoError(t, err)
	require.NoError(t, obsRepo.Insert(ctx, domain.PriceObservation{
		ItemID:      item.ID,
		Marketplace: domain.MarketplaceEbay,
		Price:       70,
		RecordedAt:  now.Add(-24 * time.Hour),
	}))

	registry := scrape.NewRegistry(fixedScraper{
		mp: domain.MarketplaceEbay, name: "eBay",
		result: domain.ScrapeResult{
			Marketplace: domain.MarketplaceEbay, DisplayName: "eBay",
			Success: true, AvgSoldPrice: 82, SalesVolume: 5, ScrapedAt: now,
		},
	})

	job := NewPriceRefreshJob(registry, nopCache{}, obsRepo, 50, time.Millisecond, zerolog.Nop())
	assert.Equal(t, "price_refresh", job.Name())
	require.NoError(t, job.Run(ctx))

	observations, err := obsRepo.QuerySince(ctx, item.ID, time.Time{})
	require.NoError(t, err)
	require.Len(t, observations, 2, "refresh must append a new observation")
	assert.InDelta(t, 82.0, observations[1].Price, 0.001)
}

func TestPriceRefreshJobSkipsFailedItems(t *testing.T) {
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, name := range []string{"Item One", "Item Two"} {
		item, err := itemRepo.FindOrCreate(ctx, name)
		require.NoError(t, err)
		require.NoError(t, obsRepo.Insert(ctx, domain.PriceObservation{
			ItemID: item.ID, Marketplace: domain.MarketplaceEbay, Price: 10,
			RecordedAt: now.Add(-time.Hour),
		}))
	}

	// Scraper with no sold data: every item refresh "fails" but the job
	// itself must still succeed.
	registry := scrape.NewRegistry(fixedScraper{
		mp: domain.MarketplaceEbay, name: "eBay",
		result: domain.ScrapeResult{
			Marketplace: domain.MarketplaceEbay, DisplayName: "eBay",
			Success: false, ErrorMessage: "no listings found",
		},
	})

	job := NewPriceRefreshJob(registry, nopCache{}, obsRepo, 50, time.Millisecond, zerolog.Nop())
	assert.NoError(t, job.Run(ctx))
}

func TestHypeRecalcJob(t *testing.T) {
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	snapRepo := hype.NewRepository(db)
	engine := hype.New(itemRepo, obsRepo, snapRepo, zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()

	item, err := itemRepo.FindOrCreate(ctx, "Labubu Macaron")
	require.NoError(t, err)
	require.NoError(t, obsRepo.Insert(ctx, domain.PriceObservation{
		ItemID: item.ID, Marketplace: domain.MarketplaceEbay, Price: 40,
		RecordedAt: now.Add(-time.Hour),
	}))

	job := NewHypeRecalcJob(engine, obsRepo, zerolog.Nop())
	assert.Equal(t, "hype_recalc", job.Name())
	require.NoError(t, job.Run(ctx))

	snap, err := snapRepo.LatestForItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, snap, "recalc must persist a snapshot")
}

func TestArbitrageScanJob(t *testing.T) {
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	item, err := itemRepo.FindOrCreate(ctx, "Spread Item")
	require.NoError(t, err)
	for mp, price := range map[domain.Marketplace]float64{
		domain.MarketplaceEbay:     90,
		domain.MarketplaceFacebook: 40,
	} {
		require.NoError(t, obsRepo.Insert(ctx, domain.PriceObservation{
			ItemID: item.ID, Marketplace: mp, Price: price,
			RecordedAt: now.Add(-time.Hour),
		}))
	}

	engine := arbitrage.New(obsRepo, nil, nil, zerolog.Nop())
	job := NewArbitrageScanJob(engine, zerolog.Nop())
	assert.Equal(t, "arbitrage_scan", job.Name())
	assert.NoError(t, job.Run(ctx))
}

func TestAlertCheckJob(t *testing.T) {
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	snapRepo := hype.NewRepository(db)
	alertRepo := alerts.NewRepository(db)
	service := alerts.New(alertRepo, obsRepo, snapRepo, zerolog.Nop())
	ctx := context.Background()

	item, err := itemRepo.FindOrCreate(ctx, "Watched Item")
	require.NoError(t, err)
	require.NoError(t, obsRepo.Insert(ctx, domain.PriceObservation{
		ItemID: item.ID, Marketplace: domain.MarketplaceEbay, Price: 30,
		RecordedAt: time.Now().UTC(),
	}))
	_, err = alertRepo.Create(ctx, item.ID, domain.AlertPriceDrop, 50)
	require.NoError(t, err)

	job := NewAlertCheckJob(service, zerolog.Nop())
	assert.Equal(t, "alert_check", job.Name())
	assert.NoError(t, job.Run(ctx))
}

type stubTracker struct {
	calls int
	err   error
}

func (s *stubTracker) RefreshActive(context.Context) error {
	s.calls++
	return s.err
}

func TestShipmentRefreshJob(t *testing.T) {
	tracker := &stubTracker{}
	job := NewShipmentRefreshJob(tracker, zerolog.Nop())
	assert.Equal(t, "shipment_refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, tracker.calls)

	tracker.err = errors.New("carrier down")
	assert.Error(t, job.Run(context.Background()))
}

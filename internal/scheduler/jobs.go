package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/profiteer/profiteer/internal/alerts"
	"github.com/profiteer/profiteer/internal/analyzer"
	"github.com/profiteer/profiteer/internal/arbitrage"
	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/hype"
	"github.com/profiteer/profiteer/internal/scrape"
)

// Job cadences. Exposed so the wiring code and the tests agree on them.
const (
	PriceRefreshSchedule    = "@every 1h"
	HypeRecalcSchedule      = "@every 6h"
	ArbitrageScanSchedule   = "@every 30m"
	AlertCheckSchedule      = "@every 15m"
	ShipmentRefreshSchedule = "@every 30m"
)

const (
	priceRefreshActivityWindow = 7 * 24 * time.Hour
	hypeRecalcActivityWindow   = 90 * 24 * time.Hour
	arbitrageScanLimit         = 100
	arbitrageScanTopLog        = 5
)

// PriceRefreshJob re-scrapes the most recently active items so stored
// prices stay fresh. Items are processed one at a time with a politeness
// delay; scraped sources see a slow trickle, not a burst.
type PriceRefreshJob struct {
	registry *scrape.Registry
	cache    domain.ScrapeCache
	history  domain.ObservationStore
	limit    int
	delay    time.Duration
	log      zerolog.Logger
}

// NewPriceRefreshJob creates the hourly price refresh.
func NewPriceRefreshJob(registry *scrape.Registry, cache domain.ScrapeCache, history domain.ObservationStore, limit int, delay time.Duration, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		registry: registry,
		cache:    cache,
		history:  history,
		limit:    limit,
		delay:    delay,
		log:      log.With().Str("job", "price_refresh").Logger(),
	}
}

func (j *PriceRefreshJob) Name() string { return "price_refresh" }

func (j *PriceRefreshJob) Run(ctx context.Context) error {
	items, err := j.history.RecentlyActiveItems(ctx, time.Now().UTC().Add(-priceRefreshActivityWindow), j.limit)
	if err != nil {
		return fmt.Errorf("failed to load items to refresh: %w", err)
	}

	var refreshed, failed int
	for i, item := range items {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(j.delay):
			}
		}

		if err := j.refreshItem(ctx, item); err != nil {
			failed++
			j.log.Warn().Err(err).Str("item", item.Name).Msg("Item refresh failed")
			continue
		}
		refreshed++
	}

	j.log.Info().
		Int("refreshed", refreshed).
		Int("failed", failed).
		Msg("Price refresh complete")
	return nil
}

func (j *PriceRefreshJob) refreshItem(ctx context.Context, item domain.Item) error {
	var recorded int
	for _, scraper := range j.registry.All() {
		res := analyzer.ScrapeThroughCache(ctx, j.cache, scraper, item.Name, "new")
		if !res.Success || res.AvgSoldPrice <= 0 {
			continue
		}
		obs := domain.PriceObservation{
			ItemID:      item.ID,
			Marketplace: res.Marketplace,
			Price:       res.AvgSoldPrice,
			RecordedAt:  res.ScrapedAt,
		}
		if err := j.history.Insert(ctx, obs); err != nil {
			return err
		}
		recorded++
	}
	if recorded == 0 {
		return fmt.Errorf("no marketplace returned sold data for %q", item.Name)
	}
	return nil
}

// HypeRecalcJob recomputes hype scores for every item with recent data, so
// leaderboards and trends stay current without user traffic.
type HypeRecalcJob struct {
	engine  *hype.Engine
	history domain.ObservationStore
	log     zerolog.Logger
}

// NewHypeRecalcJob creates the 6-hourly hype recomputation.
func NewHypeRecalcJob(engine *hype.Engine, history domain.ObservationStore, log zerolog.Logger) *HypeRecalcJob {
	return &HypeRecalcJob{
		engine:  engine,
		history: history,
		log:     log.With().Str("job", "hype_recalc").Logger(),
	}
}

func (j *HypeRecalcJob) Name() string { return "hype_recalc" }

func (j *HypeRecalcJob) Run(ctx context.Context) error {
	items, err := j.history.RecentlyActiveItems(ctx, time.Now().UTC().Add(-hypeRecalcActivityWindow), 0)
	if err != nil {
		return fmt.Errorf("failed to load items for hype recalc: %w", err)
	}

	var scored, failed int
	for _, item := range items {
		if _, err := j.engine.Score(ctx, item.ID); err != nil {
			failed++
			j.log.Warn().Err(err).Str("item", item.Name).Msg("Hype recalc failed for item")
			continue
		}
		scored++
	}

	j.log.Info().Int("scored", scored).Int("failed", failed).Msg("Hype recalc complete")
	return nil
}

// ArbitrageScanJob scans stored data for cross-marketplace gaps. Its only
// side effect is logging; opportunities are recomputed on demand by
// callers.
type ArbitrageScanJob struct {
	engine *arbitrage.Engine
	log    zerolog.Logger
}

// NewArbitrageScanJob creates the half-hourly arbitrage scan.
func NewArbitrageScanJob(engine *arbitrage.Engine, log zerolog.Logger) *ArbitrageScanJob {
	return &ArbitrageScanJob{
		engine: engine,
		log:    log.With().Str("job", "arbitrage_scan").Logger(),
	}
}

func (j *ArbitrageScanJob) Name() string { return "arbitrage_scan" }

func (j *ArbitrageScanJob) Run(ctx context.Context) error {
	opportunities, err := j.engine.FindOpportunities(ctx, arbitrage.Options{Limit: arbitrageScanLimit})
	if err != nil {
		return err
	}

	j.log.Info().Int("opportunities", len(opportunities)).Msg("Arbitrage scan complete")
	for i, opp := range opportunities {
		if i >= arbitrageScanTopLog {
			break
		}
		j.log.Info().
			Str("item", opp.ItemName).
			Str("buy", opp.BuyMarketplace).
			Float64("buy_price", opp.BuyPrice).
			Str("sell", opp.SellMarketplace).
			Float64("sell_price", opp.SellPrice).
			Float64("net_profit", opp.NetProfit).
			Int("risk", opp.RiskScore).
			Msg("Arbitrage opportunity")
	}
	return nil
}

// AlertCheckJob evaluates the configured alert thresholds.
type AlertCheckJob struct {
	service *alerts.Service
	log     zerolog.Logger
}

// NewAlertCheckJob creates the 15-minute alert sweep.
func NewAlertCheckJob(service *alerts.Service, log zerolog.Logger) *AlertCheckJob {
	return &AlertCheckJob{
		service: service,
		log:     log.With().Str("job", "alert_check").Logger(),
	}
}

func (j *AlertCheckJob) Name() string { return "alert_check" }

func (j *AlertCheckJob) Run(ctx context.Context) error {
	fired, err := j.service.Evaluate(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Int("fired", len(fired)).Msg("Alert check complete")
	return nil
}

// ShipmentRefreshJob drives the external shipment tracking collaborator.
// Wiring registers it only when a tracker is configured.
type ShipmentRefreshJob struct {
	tracker domain.ShipmentTracker
	log     zerolog.Logger
}

// NewShipmentRefreshJob creates the half-hourly shipment refresh.
func NewShipmentRefreshJob(tracker domain.ShipmentTracker, log zerolog.Logger) *ShipmentRefreshJob {
	return &ShipmentRefreshJob{
		tracker: tracker,
		log:     log.With().Str("job", "shipment_refresh").Logger(),
	}
}

func (j *ShipmentRefreshJob) Name() string { return "shipment_refresh" }

func (j *ShipmentRefreshJob) Run(ctx context.Context) error {
	if err := j.tracker.RefreshActive(ctx); err != nil {
		return fmt.Errorf("failed to refresh shipments: %w", err)
	}
	j.log.Info().Msg("Shipment refresh complete")
	return nil
}

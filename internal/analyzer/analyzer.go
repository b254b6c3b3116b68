// Package analyzer answers the core question of the pipeline: given an item
// and a purchase price, where does selling it net the most? It fans out to
// every registered marketplace scraper concurrently, merges fee and shipping
// estimates into per-marketplace breakdowns and ranks them.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fees"
	"github.com/profiteer/profiteer/internal/scrape"
	"github.com/profiteer/profiteer/internal/shipping"
	"github.com/profiteer/profiteer/internal/work"
)

// Request describes one analysis. Only ItemName and PurchasePrice are
// required; nil overrides fall back to the cheapest shipping estimate and
// the default packaging cost.
type Request struct {
	ItemName      string
	PurchasePrice float64
	Condition     string   // default "new"
	WeightOz      float64  // default shipping.DefaultWeightOz
	ShippingCost  *float64 // override; nil means cheapest carrier estimate
	PackagingCost *float64 // override; nil means fees.DefaultPackagingCost
}

// Service runs profitability analyses.
type Service struct {
	registry *scrape.Registry
	cache    domain.ScrapeCache
	items    domain.ItemStore
	history  domain.ObservationStore
	runner   *work.Runner
	log      zerolog.Logger
}

// New creates the analyzer service.
func New(registry *scrape.Registry, cache domain.ScrapeCache, items domain.ItemStore, history domain.ObservationStore, runner *work.Runner, log zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    cache,
		items:    items,
		history:  history,
		runner:   runner,
		log:      log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze scrapes every registered marketplace concurrently and returns the
// ranked profitability result. A run where no marketplace yields data is a
// valid "no data" result, not an error; only an invalid request errors.
func (s *Service) Analyze(ctx context.Context, req Request) (*domain.ProfitabilityResult, error) {
	if req.ItemName == "" {
		return nil, fmt.Errorf("item name is required")
	}
	if req.PurchasePrice < 0 {
		return nil, fmt.Errorf("purchase price cannot be negative")
	}
	if req.Condition == "" {
		req.Condition = "new"
	}
	if req.WeightOz <= 0 {
		req.WeightOz = shipping.DefaultWeightOz
	}

	requestID := uuid.NewString()
	s.log.Info().
		Str("request_id", requestID).
		Str("item", req.ItemName).
		Float64("purchase_price", req.PurchasePrice).
		Int("marketplaces", s.registry.Len()).
		Msg("Starting analysis")

	results := s.scrapeAll(ctx, req.ItemName, req.Condition)

	shippingCost := shipping.Cheapest(req.WeightOz).Cost
	if req.ShippingCost != nil {
		shippingCost = *req.ShippingCost
	}
	packagingCost := fees.DefaultPackagingCost
	if req.PackagingCost != nil {
		packagingCost = *req.PackagingCost
	}

	out := &domain.ProfitabilityResult{
		RequestID:       requestID,
		ItemName:        req.ItemName,
		PurchasePrice:   req.PurchasePrice,
		BestMarketplace: "N/A",
	}

	for _, res := range results {
		price := res.BestPrice()
		if !res.Success || price <= 0 {
			continue
		}
		b := fees.NetProfit(price, req.PurchasePrice, shippingCost, packagingCost, res.Marketplace)
		out.Marketplaces = append(out.Marketplaces, domain.MarketplaceBreakdown{
			Marketplace:        res.DisplayName,
			AvgSoldPrice:       res.AvgSoldPrice,
			ActiveListingPrice: res.ActivePrice,
			PlatformFee:        b.PlatformFee,
			PaymentFee:         b.PaymentFee,
			EstimatedShipping:  shippingCost,
			PackagingCost:      packagingCost,
			NetProfit:          b.NetProfit,
			ProfitMargin:       b.ProfitMargin,
			ROI:                b.ROI,
			SalesVolume:        res.SalesVolume,
			Profitability:      b.Profitability,
		})
	}

	sort.SliceStable(out.Marketplaces, func(i, j int) bool {
		return out.Marketplaces[i].NetProfit > out.Marketplaces[j].NetProfit
	})
	if len(out.Marketplaces) > 0 {
		out.BestMarketplace = out.Marketplaces[0].Marketplace
		out.BestProfit = out.Marketplaces[0].NetProfit
	}

	s.persistObservations(req.ItemName, req.Condition, results)

	s.log.Info().
		Str("request_id", requestID).
		Str("best", out.BestMarketplace).
		Float64("best_profit", out.BestProfit).
		Int("with_data", len(out.Marketplaces)).
		Msg("Analysis complete")
	return out, nil
}

// scrapeAll fans out one goroutine per registered scraper. Panics in a
// scraper are contained to that marketplace's slot.
func (s *Service) scrapeAll(ctx context.Context, query, condition string) []domain.ScrapeResult {
	scrapers := s.registry.All()
	results := make([]domain.ScrapeResult, len(scrapers))

	var wg sync.WaitGroup
	for i, scraper := range scrapers {
		wg.Add(1)
		go func(i int, scraper domain.Scraper) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					s.log.Error().
						Str("marketplace", string(scraper.Marketplace())).
						Interface("panic", rec).
						Msg("Scraper panicked")
					results[i] = domain.ScrapeResult{
						Marketplace:  scraper.Marketplace(),
						DisplayName:  scraper.DisplayName(),
						Success:      false,
						ErrorMessage: "scraper panicked",
					}
				}
			}()
			results[i] = ScrapeThroughCache(ctx, s.cache, scraper, query, condition)
		}(i, scraper)
	}
	wg.Wait()
	return results
}

// ScrapeThroughCache consults the cache before scraping live and stores
// successful live results. Shared with the scheduled price refresh.
func ScrapeThroughCache(ctx context.Context, cache domain.ScrapeCache, scraper domain.Scraper, query, condition string) domain.ScrapeResult {
	mp := scraper.Marketplace()
	if cached, ok := cache.Get(ctx, mp, query, condition); ok {
		return *cached
	}
	res := scraper.Scrape(ctx, query, condition)
	cache.Set(ctx, mp, query, condition, res)
	return res
}

// persistObservations records each marketplace's average sold price in the
// background. Active-only results carry no sale evidence and are skipped.
func (s *Service) persistObservations(itemName, condition string, results []domain.ScrapeResult) {
	var observed []domain.ScrapeResult
	for _, res := range results {
		if res.Success && res.AvgSoldPrice > 0 {
			observed = append(observed, res)
		}
	}
	if len(observed) == 0 {
		return
	}

	s.runner.Submit(work.Task{
		Name: "persist_observations",
		Run: func(ctx context.Context) error {
			item, err := s.items.FindOrCreate(ctx, itemName)
			if err != nil {
				return fmt.Errorf("failed to resolve item for observations: %w", err)
			}
			for _, res := range observed {
				obs := domain.PriceObservation{
					ItemID:      item.ID,
					Marketplace: res.Marketplace,
					Price:       res.AvgSoldPrice,
					Condition:   condition,
					RecordedAt:  res.ScrapedAt,
				}
				if err := s.history.Insert(ctx, obs); err != nil {
					return fmt.Errorf("failed to record observation for %s: %w", res.Marketplace, err)
				}
			}
			return nil
		},
	})
}

// Package arbitrage detects buy-low/sell-high gaps between marketplaces
// from the stored observation log. Opportunities are computed on demand and
// never persisted; each scan reflects the log as it stands.
package arbitrage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/profiteer/profiteer/internal/analyzer"
	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fees"
	"github.com/profiteer/profiteer/internal/shipping"
	"github.com/profiteer/profiteer/internal/work"
)

// defaultWindow is the trailing observation window for a scan.
const defaultWindow = 30 * 24 * time.Hour

// Options tunes one opportunity scan.
type Options struct {
	Category  string        // filter by item category; empty matches all
	MinProfit float64       // drop opportunities netting less than this
	SortBy    string        // "profit" (default), "roi" or "margin"
	Limit     int           // default 50
	Window    time.Duration // default 30 days
}

// Engine computes arbitrage opportunities.
type Engine struct {
	history  domain.ObservationStore
	analyzer *analyzer.Service
	runner   *work.Runner
	log      zerolog.Logger
}

// New creates the arbitrage engine. The analyzer and runner are only needed
// for ScanAndFind; a read-only engine may pass nil for both.
func New(history domain.ObservationStore, analyzerSvc *analyzer.Service, runner *work.Runner, log zerolog.Logger) *Engine {
	return &Engine{
		history:  history,
		analyzer: analyzerSvc,
		runner:   runner,
		log:      log.With().Str("component", "arbitrage").Logger(),
	}
}

// FindOpportunities scans items with multi-marketplace data in the window
// and returns the profitable buy/sell pairs, sorted and truncated per the
// options.
func (e *Engine) FindOpportunities(ctx context.Context, opts Options) ([]domain.ArbitrageOpportunity, error) {
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	since := time.Now().UTC().Add(-opts.Window)

	candidates, err := e.history.ItemsWithMultiMarketplaceData(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load arbitrage candidates: %w", err)
	}

	var opportunities []domain.ArbitrageOpportunity
	for _, item := range candidates {
		if opts.Category != "" && item.Category != opts.Category {
			continue
		}

		opp, ok, err := e.evaluate(ctx, item, since)
		if err != nil {
			e.log.Warn().Err(err).Int64("item_id", item.ID).Msg("Skipping item in scan")
			continue
		}
		if !ok || opp.NetProfit < opts.MinProfit {
			continue
		}
		opportunities = append(opportunities, opp)
	}

	sortOpportunities(opportunities, opts.SortBy)
	if len(opportunities) > opts.Limit {
		opportunities = opportunities[:opts.Limit]
	}

	e.log.Info().
		Int("candidates", len(candidates)).
		Int("opportunities", len(opportunities)).
		Str("sort_by", opts.SortBy).
		Msg("Arbitrage scan complete")
	return opportunities, nil
}

// ScanAndFind runs a fresh analysis for the query to generate observations,
// waits for the background writes to land, then scans all stored data.
func (e *Engine) ScanAndFind(ctx context.Context, query string, purchasePrice float64, opts Options) ([]domain.ArbitrageOpportunity, error) {
	if _, err := e.analyzer.Analyze(ctx, analyzer.Request{
		ItemName:      query,
		PurchasePrice: purchasePrice,
	}); err != nil {
		return nil, err
	}
	if err := e.runner.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for observation writes: %w", err)
	}
	return e.FindOpportunities(ctx, opts)
}

// evaluate computes the best buy/sell pair for one item, or ok=false when
// no profitable spread exists.
func (e *Engine) evaluate(ctx context.Context, item domain.Item, since time.Time) (domain.ArbitrageOpportunity, bool, error) {
	observations, err := e.history.QuerySince(ctx, item.ID, since)
	if err != nil {
		return domain.ArbitrageOpportunity{}, false, err
	}

	prices := make(map[domain.Marketplace][]float64)
	for _, obs := range observations {
		prices[obs.Marketplace] = append(prices[obs.Marketplace], obs.Price)
	}
	if len(prices) < 2 {
		return domain.ArbitrageOpportunity{}, false, nil
	}

	marketplaces := make([]domain.Marketplace, 0, len(prices))
	for mp := range prices {
		marketplaces = append(marketplaces, mp)
	}
	sort.Slice(marketplaces, func(i, j int) bool { return marketplaces[i] < marketplaces[j] })

	// Fixed iteration order keeps leg selection reproducible when means tie.
	var buyMp, sellMp domain.Marketplace
	var buyPrice, sellPrice float64
	for _, mp := range marketplaces {
		mean := stat.Mean(prices[mp], nil)
		if buyMp == "" || mean < buyPrice {
			buyMp, buyPrice = mp, mean
		}
		if sellMp == "" || mean > sellPrice {
			sellMp, sellPrice = mp, mean
		}
	}
	if sellPrice <= buyPrice {
		return domain.ArbitrageOpportunity{}, false, nil
	}

	buyPrice = round2(buyPrice)
	sellPrice = round2(sellPrice)

	totalFees := fees.TotalFees(sellPrice, sellMp)
	shippingCost := shipping.Cheapest(shipping.DefaultWeightOz).Cost
	netProfit := round2(sellPrice - buyPrice - totalFees - shippingCost)
	margin := round2(netProfit / sellPrice * 100)
	roi := round2(netProfit / buyPrice * 100)

	sampleCount := len(prices[buyMp]) + len(prices[sellMp])
	risk := riskScore(sampleCount, margin, buyPrice, sellPrice)

	opp := domain.ArbitrageOpportunity{
		ItemID:            item.ID,
		ItemName:          item.Name,
		Category:          item.Category,
		BuyMarketplace:    fees.DisplayName(buyMp),
		BuyPrice:          buyPrice,
		BuyCondition:      "new",
		SellMarketplace:   fees.DisplayName(sellMp),
		SellPrice:         sellPrice,
		EstimatedFees:     totalFees,
		EstimatedShipping: shippingCost,
		NetProfit:         netProfit,
		ProfitMargin:      margin,
		ROI:               roi,
		RiskScore:         risk,
		Confidence:        confidence(margin, risk),
		AvgDaysToSell:     daysToSell(len(prices[sellMp])),
	}
	return opp, true, nil
}

// riskScore starts at a neutral 50 and shifts on sample depth, margin and
// spread size, clamped to [0,100].
func riskScore(sampleCount int, margin, buyPrice, sellPrice float64) int {
	score := 50

	switch {
	case sampleCount >= 10:
		score -= 20
	case sampleCount >= 5:
		score -= 10
	case sampleCount < 2:
		score += 15
	}

	switch {
	case margin >= 20:
		score -= 15
	case margin >= 10:
		score -= 10
	case margin >= 5:
		score -= 5
	case margin < 0:
		score += 20
	}

	// Extreme spreads usually mean condition or variant mismatch, not free
	// money.
	spreadPct := (sellPrice - buyPrice) / buyPrice * 100
	if spreadPct > 100 {
		score += 15
	} else if spreadPct > 50 {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func confidence(margin float64, risk int) string {
	switch {
	case margin >= 15 && risk < 35:
		return "high"
	case margin >= 5 && risk < 60:
		return "medium"
	default:
		return "low"
	}
}

// daysToSell is a coarse velocity heuristic from the sell leg's observation
// count over the 30 day window.
func daysToSell(sellCount int) int {
	if sellCount <= 0 {
		return 30
	}
	days := 30 / sellCount
	if days < 1 {
		return 1
	}
	return days
}

func sortOpportunities(opportunities []domain.ArbitrageOpportunity, sortBy string) {
	less := func(i, j int) bool {
		return opportunities[i].NetProfit > opportunities[j].NetProfit
	}
	switch sortBy {
	case "roi":
		less = func(i, j int) bool { return opportunities[i].ROI > opportunities[j].ROI }
	case "margin":
		less = func(i, j int) bool { return opportunities[i].ProfitMargin > opportunities[j].ProfitMargin }
	}
	sort.SliceStable(opportunities, less)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

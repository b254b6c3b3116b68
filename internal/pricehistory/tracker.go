package pricehistory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fees"
)

// smaWindow is the moving-average window applied to per-marketplace series.
const smaWindow = 3

// trendThresholdPct is the change beyond which a series counts as rising or
// falling rather than stable.
const trendThresholdPct = 5.0

// periodDurations maps report period names to lookback windows. "all" is
// handled separately.
var periodDurations = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// Tracker builds price trend reports from the observation log.
type Tracker struct {
	items        domain.ItemStore
	observations domain.ObservationStore
	log          zerolog.Logger
}

// NewTracker creates a trend tracker.
func NewTracker(items domain.ItemStore, observations domain.ObservationStore, log zerolog.Logger) *Tracker {
	return &Tracker{
		items:        items,
		observations: observations,
		log:          log.With().Str("component", "price_tracker").Logger(),
	}
}

// Report summarises an item's price history over the period ("7d", "30d",
// "90d", "1y" or "all"; unknown periods fall back to "30d").
func (t *Tracker) Report(ctx context.Context, itemID int64, period string) (*domain.TrendReport, error) {
	item, err := t.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff, normalizedPeriod := periodCutoff(period, now)

	observations, err := t.observations.QuerySince(ctx, itemID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for item %d: %w", itemID, err)
	}

	report := &domain.TrendReport{
		ItemID:       itemID,
		ItemName:     item.Name,
		Period:       normalizedPeriod,
		Trend:        "stable",
		Marketplaces: make(map[string]domain.MarketplaceTrend),
		TotalSales:   len(observations),
	}
	if len(observations) == 0 {
		return report, nil
	}

	report.CurrentPrice = observations[len(observations)-1].Price
	report.PriceChangePct = changePct(observations)
	report.Trend = classifyChange(report.PriceChangePct)

	days := math.Max(1, now.Sub(cutoffOrOldest(cutoff, observations)).Hours()/24)
	report.AvgDailySales = round2(float64(len(observations)) / days)

	for mp, series := range groupByMarketplace(observations) {
		report.Marketplaces[mp] = buildMarketplaceTrend(series)
	}

	t.log.Debug().
		Int64("item_id", itemID).
		Str("period", normalizedPeriod).
		Int("observations", len(observations)).
		Str("trend", report.Trend).
		Msg("Trend report built")
	return report, nil
}

// periodCutoff resolves a period name to its cutoff time. "all" yields the
// zero time, which matches every observation.
func periodCutoff(period string, now time.Time) (time.Time, string) {
	if period == "all" {
		return time.Time{}, "all"
	}
	d, ok := periodDurations[period]
	if !ok {
		return now.Add(-periodDurations["30d"]), "30d"
	}
	return now.Add(-d), period
}

// cutoffOrOldest bounds the day denominator: for "all" the window starts at
// the first observation.
func cutoffOrOldest(cutoff time.Time, observations []domain.PriceObservation) time.Time {
	if !cutoff.IsZero() {
		return cutoff
	}
	return observations[0].RecordedAt
}

// changePct compares the latest price against the mean of the oldest third
// of the series.
func changePct(observations []domain.PriceObservation) float64 {
	if len(observations) < 2 {
		return 0
	}
	third := len(observations) / 3
	if third == 0 {
		third = 1
	}
	var baseline []float64
	for _, obs := range observations[:third] {
		baseline = append(baseline, obs.Price)
	}
	base := stat.Mean(baseline, nil)
	if base == 0 {
		return 0
	}
	current := observations[len(observations)-1].Price
	return round2((current - base) / base * 100)
}

func classifyChange(pct float64) string {
	switch {
	case pct > trendThresholdPct:
		return "rising"
	case pct < -trendThresholdPct:
		return "falling"
	default:
		return "stable"
	}
}

func groupByMarketplace(observations []domain.PriceObservation) map[string][]domain.PriceObservation {
	grouped := make(map[string][]domain.PriceObservation)
	for _, obs := range observations {
		name := fees.DisplayName(obs.Marketplace)
		grouped[name] = append(grouped[name], obs)
	}
	return grouped
}

// buildMarketplaceTrend computes the series view for one marketplace. The
// smoothed series is a simple moving average and is only attached when the
// series is long enough to fill a window.
func buildMarketplaceTrend(series []domain.PriceObservation) domain.MarketplaceTrend {
	prices := make([]float64, len(series))
	points := make([]domain.TrendPoint, len(series))
	for i, obs := range series {
		prices[i] = obs.Price
		points[i] = domain.TrendPoint{
			Date:  obs.RecordedAt.Format("2006-01-02"),
			Price: obs.Price,
		}
	}

	trend := domain.MarketplaceTrend{
		Points:  points,
		Current: prices[len(prices)-1],
		High:    floats(prices, math.Max),
		Low:     floats(prices, math.Min),
		Avg:     round2(stat.Mean(prices, nil)),
	}
	if len(prices) >= smaWindow {
		trend.Smoothed = talib.Sma(prices, smaWindow)
	}
	return trend
}

func floats(xs []float64, pick func(a, b float64) float64) float64 {
	out := xs[0]
	for _, x := range xs[1:] {
		out = pick(out, x)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

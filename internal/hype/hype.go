// Package hype scores how much heat an item has in the resale market from
// its own price history: six sub-signals blended into one composite score,
// snapshotted over time and classified into a lifecycle trend.
package hype

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/profiteer/profiteer/internal/domain"
)

const (
	scoreWindow    = 90 * 24 * time.Hour
	momentumWindow = 7 * 24 * time.Hour
	historyLimit   = 30

	// deadThreshold is the composite score below which an item is "dead"
	// regardless of its history.
	deadThreshold = 15
)

// Sub-score weights. They sum to 1.
const (
	weightVelocity = 0.20
	weightVolume   = 0.25
	weightSpread   = 0.10
	weightPremium  = 0.15
	weightMomentum = 0.20
	weightRecency  = 0.10
)

// signals carries the computed sub-scores plus the raw metrics they came
// from.
type signals struct {
	velocity float64
	volume   float64
	spread   float64
	premium  float64
	momentum float64
	recency  float64

	totalPoints int
	mpCount     int
	changePct   float64
	avgDaily    float64
}

// Engine computes and persists hype scores.
type Engine struct {
	items     domain.ItemStore
	history   domain.ObservationStore
	snapshots domain.SnapshotStore
	log       zerolog.Logger
}

// New creates the hype engine.
func New(items domain.ItemStore, history domain.ObservationStore, snapshots domain.SnapshotStore, log zerolog.Logger) *Engine {
	return &Engine{
		items:     items,
		history:   history,
		snapshots: snapshots,
		log:       log.With().Str("component", "hype").Logger(),
	}
}

// Score computes the item's current hype score, persists a snapshot and
// returns the full result including trend and score history.
func (e *Engine) Score(ctx context.Context, itemID int64) (*domain.HypeResult, error) {
	item, err := e.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	observations, err := e.history.QuerySince(ctx, itemID, now.Add(-scoreWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load history for hype score: %w", err)
	}

	sig := computeSignals(observations, now)
	score := compositeScore(sig)

	prior, err := e.snapshots.Recent(ctx, itemID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior snapshots: %w", err)
	}
	trend := classifyTrend(score, prior)

	snap := domain.HypeSnapshot{
		ItemID:           itemID,
		Score:            score,
		Trend:            trend,
		VelocityScore:    sig.velocity,
		VolumeScore:      sig.volume,
		SpreadScore:      sig.spread,
		PremiumScore:     sig.premium,
		MomentumScore:    sig.momentum,
		RecencyScore:     sig.recency,
		TotalDataPoints:  sig.totalPoints,
		MarketplaceCount: sig.mpCount,
		PriceChangePct:   sig.changePct,
		AvgDailyVolume:   sig.avgDaily,
		RecordedAt:       now,
	}
	if _, err := e.snapshots.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to persist hype snapshot: %w", err)
	}

	result := &domain.HypeResult{
		ItemID:   itemID,
		ItemName: item.Name,
		Score:    score,
		Trend:    trend,
		Signals:  displaySignals(sig),
		History:  historyPoints(prior, snap),
	}

	e.log.Info().
		Int64("item_id", itemID).
		Int("score", score).
		Str("trend", trend).
		Int("data_points", sig.totalPoints).
		Msg("Hype score computed")
	return result, nil
}

// Leaderboards groups each item's latest snapshot by category and keeps the
// top N per category. Items without a category land in "uncategorized".
func (e *Engine) Leaderboards(ctx context.Context, topN int) (map[string][]domain.LeaderboardEntry, error) {
	if topN <= 0 {
		topN = 10
	}
	entries, err := e.snapshots.LatestPerItem(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard entries: %w", err)
	}

	boards := make(map[string][]domain.LeaderboardEntry)
	for _, entry := range entries {
		category := entry.Category
		if category == "" {
			category = "uncategorized"
		}
		if len(boards[category]) >= topN {
			continue
		}
		boards[category] = append(boards[category], entry)
	}
	return boards, nil
}

// SearchMatch pairs a matched item with its latest hype snapshot, when one
// exists.
type SearchMatch struct {
	Item  domain.Item
	Score int
	Trend string
}

// SearchItems finds items by name and attaches each one's latest hype score.
// Items never scored come back with a zero score and an empty trend.
func (e *Engine) SearchItems(ctx context.Context, query string, limit int) ([]SearchMatch, error) {
	items, err := e.items.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}

	matches := make([]SearchMatch, 0, len(items))
	for _, item := range items {
		match := SearchMatch{Item: item}
		snap, err := e.snapshots.LatestForItem(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest snapshot for item %d: %w", item.ID, err)
		}
		if snap != nil {
			match.Score = snap.Score
			match.Trend = snap.Trend
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// computeSignals derives the six sub-scores, each rounded to one decimal and
// bounded to [0,100], from the window's observations.
func computeSignals(observations []domain.PriceObservation, now time.Time) signals {
	sig := signals{totalPoints: len(observations)}
	if len(observations) == 0 {
		return sig
	}

	prices := make([]float64, len(observations))
	markets := make(map[domain.Marketplace]struct{})
	for i, obs := range observations {
		prices[i] = obs.Price
		markets[obs.Marketplace] = struct{}{}
	}
	sig.mpCount = len(markets)

	// Daily volume over the span actually observed, not the full window;
	// a single observation still counts as one day.
	spanDays := int(observations[len(observations)-1].RecordedAt.Sub(observations[0].RecordedAt).Hours() / 24)
	if spanDays < 1 {
		spanDays = 1
	}
	sig.avgDaily = round1(float64(len(observations)) / float64(spanDays))

	// Velocity: a 50% move maps to 100; upward moves get a 1.2x boost.
	first, last := prices[0], prices[len(prices)-1]
	if first > 0 {
		sig.changePct = round2((last - first) / first * 100)
	}
	velocity := math.Min(100, math.Abs(sig.changePct)*2)
	if sig.changePct > 0 {
		velocity = math.Min(100, velocity*1.2)
	}
	sig.velocity = round1(velocity)

	// Volume: logarithmic, saturating at 50 observations.
	sig.volume = round1(math.Min(100, math.Log1p(float64(len(observations)))/math.Log1p(50)*100))

	// Spread: full marks at three or more marketplaces.
	sig.spread = round1(math.Min(100, float64(sig.mpCount)/3*100))

	// Premium: current price vs window mean, -30%..+30% spanning 0..100.
	mean := stat.Mean(prices, nil)
	if mean == 0 {
		sig.premium = 50.0
	} else {
		premiumPct := (last - mean) / mean * 100
		sig.premium = round1(clamp((premiumPct+30)/60*100, 0, 100))
	}

	sig.momentum = round1(momentumScore(observations, now))
	sig.recency = round1(recencyScore(observations[len(observations)-1].RecordedAt, now))
	return sig
}

// momentumScore compares activity in the last 7 days against the 7 days
// before that. Ratio 2.0 saturates the score; activity appearing from
// nothing scores a fixed 80.
func momentumScore(observations []domain.PriceObservation, now time.Time) float64 {
	recentCutoff := now.Add(-momentumWindow)
	priorCutoff := now.Add(-2 * momentumWindow)

	var recent, prior int
	for _, obs := range observations {
		switch {
		case !obs.RecordedAt.Before(recentCutoff):
			recent++
		case !obs.RecordedAt.Before(priorCutoff):
			prior++
		}
	}

	switch {
	case prior > 0:
		ratio := float64(recent) / float64(prior)
		return math.Min(100, ratio/2*100)
	case recent > 0:
		return 80
	default:
		return 0
	}
}

// recencyScore decays linearly from 100 at zero days to 0 at 90+ days since
// the latest observation.
func recencyScore(latest, now time.Time) float64 {
	days := now.Sub(latest).Hours() / 24
	return math.Max(0, 100-days/90*100)
}

// compositeScore blends the sub-scores with the fixed weights.
func compositeScore(sig signals) int {
	weighted := sig.velocity*weightVelocity +
		sig.volume*weightVolume +
		sig.spread*weightSpread +
		sig.premium*weightPremium +
		sig.momentum*weightMomentum +
		sig.recency*weightRecency
	return int(clamp(math.Round(weighted), 0, 100))
}

// classifyTrend places the current score in the item's lifecycle using its
// prior snapshots, oldest first.
func classifyTrend(score int, prior []domain.HypeSnapshot) string {
	if score < deadThreshold {
		return "dead"
	}

	if len(prior) < 2 {
		switch {
		case score >= 70:
			return "rising"
		case score >= 40:
			return "stable"
		default:
			return "falling"
		}
	}

	third := len(prior) / 3
	if third == 0 {
		third = 1
	}
	var baseline []float64
	for _, snap := range prior[:third] {
		baseline = append(baseline, float64(snap.Score))
	}
	diff := float64(score) - stat.Mean(baseline, nil)

	switch {
	case diff > 5:
		return "rising"
	case diff < -5:
		if score >= 70 {
			return "peaking"
		}
		return "falling"
	default:
		if score >= 70 {
			return "peaking"
		}
		return "stable"
	}
}

// displaySignals projects internal metrics onto the social-signal shape the
// callers render. The numbers are synthetic stand-ins, not real platform
// metrics.
func displaySignals(sig signals) domain.HypeSignals {
	return domain.HypeSignals{
		GoogleTrends:   int(sig.velocity),
		RedditMentions: sig.totalPoints,
		TwitterMention: int(sig.avgDaily * 100),
		YouTubeVideos:  sig.mpCount,
		YouTubeViews:   int(math.Abs(sig.changePct) * 10000),
		TikTokViews:    int(sig.momentum * 10000),
	}
}

// historyPoints renders prior snapshots plus the one just taken as a date
// series.
func historyPoints(prior []domain.HypeSnapshot, current domain.HypeSnapshot) []domain.HypePoint {
	points := make([]domain.HypePoint, 0, len(prior)+1)
	for _, snap := range prior {
		points = append(points, domain.HypePoint{
			Date:  snap.RecordedAt.Format("2006-01-02"),
			Score: snap.Score,
		})
	}
	return append(points, domain.HypePoint{
		Date:  current.RecordedAt.Format("2006-01-02"),
		Score: current.Score,
	})
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

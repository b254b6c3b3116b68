// Package domain contains the core entities of the pricing pipeline and the
// contracts through which the pipeline talks to its collaborators (store,
// cache, scrapers). The domain layer is pure: no infrastructure dependencies.
package domain

import "time"

// Marketplace identifies one of the supported resale venues by its stable
// lowercase key. The set is closed; fee schedules are keyed by it.
type Marketplace string

const (
	MarketplaceEbay       Marketplace = "ebay"
	MarketplaceAmazon     Marketplace = "amazon"
	MarketplaceMercari    Marketplace = "mercari"
	MarketplaceStockX     Marketplace = "stockx"
	MarketplaceTCGPlayer  Marketplace = "tcgplayer"
	MarketplaceWhatnot    Marketplace = "whatnot"
	MarketplaceFacebook   Marketplace = "facebook"
	MarketplaceCraigslist Marketplace = "craigslist"
)

// Item is the stable identity for a trackable product. Items are created on
// first observation (find-or-create by case-insensitive name) and never
// deleted by the pipeline.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UPC       string    `json:"upc,omitempty"`
	SKU       string    `json:"sku,omitempty"`
	Category  string    `json:"category,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Listing is a single scraped sale or active offer.
type Listing struct {
	Title     string     `json:"title"`
	Price     float64    `json:"price"`
	Condition string     `json:"condition,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
	URL       string     `json:"url,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
}

// ScrapeResult is the transient aggregate produced by one scraper for one
// query. It lives for a single analysis request (plus its cache TTL) and is
// never persisted to the store.
type ScrapeResult struct {
	Marketplace Marketplace `json:"marketplace"`
	DisplayName string      `json:"display_name"`

	SoldListings   []Listing `json:"sold_listings,omitempty"`
	ActiveListings []Listing `json:"active_listings,omitempty"`

	// Aggregates over successfully parsed listings. Zero means "no data".
	AvgSoldPrice    float64 `json:"avg_sold_price"`
	MedianSoldPrice float64 `json:"median_sold_price"`
	ActivePrice     float64 `json:"active_listing_price"`
	SalesVolume     int     `json:"sales_volume"`

	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ScrapedAt    time.Time `json:"scraped_at"`
}

// BestPrice returns the price a seller could expect on this marketplace,
// preferring the average sold price and falling back to the active listing
// price. Zero means the marketplace contributed no usable price.
func (r ScrapeResult) BestPrice() float64 {
	if r.AvgSoldPrice > 0 {
		return r.AvgSoldPrice
	}
	return r.ActivePrice
}

// PriceObservation is one normalized, persisted price point for an item on a
// marketplace. Observations are immutable and append-only.
type PriceObservation struct {
	ID          int64       `json:"id"`
	ItemID      int64       `json:"item_id"`
	Marketplace Marketplace `json:"marketplace"`
	Price       float64     `json:"price"`
	Condition   string      `json:"condition,omitempty"`
	SoldAt      *time.Time  `json:"sold_at,omitempty"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

// HypeSnapshot is one immutable, timestamped hype score record. Snapshots are
// the authoritative source for trend derivation; there is no separate mutable
// hype state.
type HypeSnapshot struct {
	ID     int64  `json:"id"`
	ItemID int64  `json:"item_id"`
	Score  int    `json:"score"`
	Trend  string `json:"trend"`

	// Sub-scores, each in [0,100].
	VelocityScore float64 `json:"price_velocity_score"`
	VolumeScore   float64 `json:"volume_score"`
	SpreadScore   float64 `json:"marketplace_spread_score"`
	PremiumScore  float64 `json:"price_premium_score"`
	MomentumScore float64 `json:"momentum_score"`
	RecencyScore  float64 `json:"recency_score"`

	// Raw signal values kept for display.
	TotalDataPoints  int     `json:"total_data_points"`
	MarketplaceCount int     `json:"marketplace_count"`
	PriceChangePct   float64 `json:"price_change_pct"`
	AvgDailyVolume   float64 `json:"avg_daily_volume"`

	RecordedAt time.Time `json:"recorded_at"`
}

// MarketplaceBreakdown is the full profit breakdown for one marketplace
// inside a profitability result.
type MarketplaceBreakdown struct {
	Marketplace        string  `json:"marketplace"` // display name
	AvgSoldPrice       float64 `json:"avg_sold_price"`
	ActiveListingPrice float64 `json:"active_listing_price"`
	PlatformFee        float64 `json:"platform_fee"`
	PaymentFee         float64 `json:"payment_processing_fee"`
	EstimatedShipping  float64 `json:"estimated_shipping"`
	PackagingCost      float64 `json:"packaging_cost"`
	NetProfit          float64 `json:"net_profit"`
	ProfitMargin       float64 `json:"profit_margin"`
	ROI                float64 `json:"roi"`
	SalesVolume        int     `json:"sales_volume,omitempty"`
	Profitability      string  `json:"profitability"` // strong | marginal | loss
}

// ProfitabilityResult is the ranked output of one analysis request. An empty
// Marketplaces slice with BestMarketplace "N/A" is the explicit "no data"
// answer; it is not an error.
type ProfitabilityResult struct {
	RequestID       string                 `json:"request_id"`
	ItemName        string                 `json:"item_name"`
	PurchasePrice   float64                `json:"purchase_price"`
	BestMarketplace string                 `json:"best_marketplace"`
	BestProfit      float64                `json:"best_profit"`
	Marketplaces    []MarketplaceBreakdown `json:"marketplaces"`
}

// ArbitrageOpportunity is a detected buy-low/sell-high marketplace pair for
// one item, net of sell-leg fees and shipping. Opportunities are derived from
// observation aggregates on each scan and never persisted.
type ArbitrageOpportunity struct {
	ItemID            int64   `json:"item_id"`
	ItemName          string  `json:"item_name"`
	Category          string  `json:"category,omitempty"`
	BuyMarketplace    string  `json:"buy_marketplace"` // display name
	BuyPrice          float64 `json:"buy_price"`
	BuyCondition      string  `json:"buy_condition"`
	SellMarketplace   string  `json:"sell_marketplace"` // display name
	SellPrice         float64 `json:"sell_price"`
	EstimatedFees     float64 `json:"estimated_fees"`
	EstimatedShipping float64 `json:"estimated_shipping"`
	NetProfit         float64 `json:"net_profit"`
	ProfitMargin      float64 `json:"profit_margin"`
	ROI               float64 `json:"roi"`
	RiskScore         int     `json:"risk_score"`  // [0,100], higher is riskier
	Confidence        string  `json:"confidence"`  // high | medium | low
	AvgDaysToSell     int     `json:"avg_days_to_sell"`
}

// HypeSignals carries the display projection of the hype sub-scores. These
// are synthetic numbers derived from internal price-history metrics, not
// literal external social metrics.
type HypeSignals struct {
	GoogleTrends   int `json:"google_trends"`
	RedditMentions int `json:"reddit_mentions"`
	TwitterMention int `json:"twitter_mentions"`
	YouTubeVideos  int `json:"youtube_videos"`
	YouTubeViews   int `json:"youtube_views"`
	TikTokViews    int `json:"tiktok_views"`
}

// HypePoint is one point of a hype score time series.
type HypePoint struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// HypeResult is the response of one hype computation.
type HypeResult struct {
	ItemID   int64       `json:"item_id"`
	ItemName string      `json:"item_name"`
	Score    int         `json:"hype_score"`
	Trend    string      `json:"trend"`
	Signals  HypeSignals `json:"signals"`
	History  []HypePoint `json:"history"`
}

// LeaderboardEntry is one row of a category hype leaderboard, built from the
// item's single latest snapshot.
type LeaderboardEntry struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Score    int    `json:"score"`
	Trend    string `json:"trend"`
}

// Alert types evaluated by the periodic alert check job.
const (
	AlertPriceDrop     = "price_drop"
	AlertPriceRise     = "price_rise"
	AlertHypeThreshold = "hype_threshold"
)

// Alert is a user-configured threshold on an item's price or hype score.
// Firing is recorded here; delivery belongs to the external notification
// collaborator.
type Alert struct {
	ID            int64      `json:"id"`
	ItemID        int64      `json:"item_id"`
	Type          string     `json:"alert_type"`
	Threshold     float64    `json:"threshold_value"`
	Active        bool       `json:"is_active"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TrendPoint is one point of a per-marketplace price series.
type TrendPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// MarketplaceTrend is the price series and summary stats for one marketplace.
type MarketplaceTrend struct {
	Points   []TrendPoint `json:"data"`
	Smoothed []float64    `json:"smoothed,omitempty"` // moving average, aligned to Points
	Current  float64      `json:"current"`
	High     float64      `json:"high"`
	Low      float64      `json:"low"`
	Avg      float64      `json:"avg"`
}

// TrendReport summarises an item's price history over a period.
type TrendReport struct {
	ItemID         int64                       `json:"item_id"`
	ItemName       string                      `json:"item_name"`
	Period         string                      `json:"period"`
	CurrentPrice   float64                     `json:"current_price"`
	PriceChangePct float64                     `json:"price_change_pct"`
	Trend          string                      `json:"trend"` // rising | falling | stable
	Marketplaces   map[string]MarketplaceTrend `json:"marketplaces"`
	TotalSales     int                         `json:"total_sales_period"`
	AvgDailySales  float64                     `json:"avg_daily_sales"`
}

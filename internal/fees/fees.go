// Package fees computes marketplace selling costs and full profit breakdowns
// from published fee schedules. All monetary outputs are rounded to cents.
package fees

import (
	"math"

	"github.com/profiteer/profiteer/internal/domain"
)

// DefaultPackagingCost is the flat packaging material estimate applied when
// the caller does not override it.
const DefaultPackagingCost = 1.50

// Profitability classifications by profit margin.
const (
	ProfitabilityStrong   = "strong"   // margin >= 20%
	ProfitabilityMarginal = "marginal" // margin >= 5%
	ProfitabilityLoss     = "loss"
)

// Schedule is one marketplace's fee structure: a percentage of sale price
// for the platform, plus a percentage and flat amount for payment
// processing.
type Schedule struct {
	PlatformPct float64
	PaymentPct  float64
	PaymentFlat float64
}

// schedules holds the published fee structures, keyed by marketplace.
// Unknown marketplaces fall back to the eBay schedule as the conservative
// mainstream default.
var schedules = map[domain.Marketplace]Schedule{
	domain.MarketplaceEbay:       {PlatformPct: 0.1325, PaymentPct: 0.0299, PaymentFlat: 0.49},
	domain.MarketplaceAmazon:     {PlatformPct: 0.15},
	domain.MarketplaceMercari:    {PlatformPct: 0.10, PaymentPct: 0.029, PaymentFlat: 0.50},
	domain.MarketplaceStockX:     {PlatformPct: 0.095, PaymentPct: 0.03},
	domain.MarketplaceTCGPlayer:  {PlatformPct: 0.1089, PaymentPct: 0.025, PaymentFlat: 0.25},
	domain.MarketplaceWhatnot:    {PlatformPct: 0.099, PaymentPct: 0.029, PaymentFlat: 0.30},
	domain.MarketplaceFacebook:   {PlatformPct: 0.05},
	domain.MarketplaceCraigslist: {},
}

// displayNames maps marketplace keys to their presentation names.
var displayNames = map[domain.Marketplace]string{
	domain.MarketplaceEbay:       "eBay",
	domain.MarketplaceAmazon:     "Amazon",
	domain.MarketplaceMercari:    "Mercari",
	domain.MarketplaceStockX:     "StockX",
	domain.MarketplaceTCGPlayer:  "TCGPlayer",
	domain.MarketplaceWhatnot:    "Whatnot",
	domain.MarketplaceFacebook:   "Facebook Marketplace",
	domain.MarketplaceCraigslist: "Craigslist",
	"walmart":                    "Walmart",
	"target":                     "Target",
	"gamestop":                   "GameStop",
}

// Breakdown is the complete cost and profit picture for selling one item at
// a given price on a given marketplace.
type Breakdown struct {
	Marketplace   domain.Marketplace
	SellPrice     float64
	PlatformFee   float64
	PaymentFee    float64
	TotalFees     float64
	ShippingCost  float64
	PackagingCost float64
	TotalCosts    float64
	NetProfit     float64
	ProfitMargin  float64 // percent of sell price
	ROI           float64 // percent of purchase price
	Profitability string
}

// ScheduleFor returns the fee schedule for a marketplace, falling back to
// the eBay schedule for unknown keys.
func ScheduleFor(mp domain.Marketplace) Schedule {
	if s, ok := schedules[mp]; ok {
		return s
	}
	return schedules[domain.MarketplaceEbay]
}

// DisplayName returns the presentation name for a marketplace key. Unknown
// keys are title-cased as-is.
func DisplayName(mp domain.Marketplace) string {
	if name, ok := displayNames[mp]; ok {
		return name
	}
	s := string(mp)
	if s == "" {
		return s
	}
	return string(s[0]&^0x20) + s[1:]
}

// PlatformFee is the marketplace's cut of the sale price, rounded to cents.
func PlatformFee(sellPrice float64, mp domain.Marketplace) float64 {
	return round2(sellPrice * ScheduleFor(mp).PlatformPct)
}

// PaymentFee is the payment processing cost for the sale, rounded to cents.
func PaymentFee(sellPrice float64, mp domain.Marketplace) float64 {
	s := ScheduleFor(mp)
	return round2(sellPrice*s.PaymentPct + s.PaymentFlat)
}

// TotalFees is the sum of platform and payment fees, each rounded to cents
// before summing.
func TotalFees(sellPrice float64, mp domain.Marketplace) float64 {
	return round2(PlatformFee(sellPrice, mp) + PaymentFee(sellPrice, mp))
}

// NetProfit computes the full breakdown for one sale: fees, shipping and
// packaging against the spread between sell and purchase price.
func NetProfit(sellPrice, purchasePrice, shippingCost, packagingCost float64, mp domain.Marketplace) Breakdown {
	platformFee := PlatformFee(sellPrice, mp)
	paymentFee := PaymentFee(sellPrice, mp)
	totalFees := round2(platformFee + paymentFee)
	totalCosts := round2(purchasePrice + totalFees + shippingCost + packagingCost)
	netProfit := round2(sellPrice - totalCosts)

	var margin, roi float64
	if sellPrice > 0 {
		margin = round2(netProfit / sellPrice * 100)
	}
	if purchasePrice > 0 {
		roi = round2(netProfit / purchasePrice * 100)
	}

	return Breakdown{
		Marketplace:   mp,
		SellPrice:     sellPrice,
		PlatformFee:   platformFee,
		PaymentFee:    paymentFee,
		TotalFees:     totalFees,
		ShippingCost:  shippingCost,
		PackagingCost: packagingCost,
		TotalCosts:    totalCosts,
		NetProfit:     netProfit,
		ProfitMargin:  margin,
		ROI:           roi,
		Profitability: Classify(margin),
	}
}

// Classify buckets a profit margin percentage.
func Classify(margin float64) string {
	switch {
	case margin >= 20:
		return ProfitabilityStrong
	case margin >= 5:
		return ProfitabilityMarginal
	default:
		return ProfitabilityLoss
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

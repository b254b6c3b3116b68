// Package shipping estimates carrier costs from item weight using flat
// base-plus-per-ounce rate tables. Estimates are deliberately coarse; they
// feed profit calculations, not label purchases.
package shipping

import (
	"math"
	"sort"
)

// DefaultWeightOz is assumed when the caller does not know the item weight.
const DefaultWeightOz = 16.0

// uspsFirstClassMaxOz is the weight ceiling for USPS First Class.
const uspsFirstClassMaxOz = 15.99

// Estimate is one carrier service quote.
type Estimate struct {
	Carrier string  `json:"carrier"`
	Service string  `json:"service"`
	Cost    float64 `json:"cost"`
}

type rate struct {
	carrier string
	service string
	base    float64
	perOz   float64
	maxOz   float64 // 0 means no ceiling
}

var rates = []rate{
	{carrier: "USPS", service: "First Class", base: 3.50, perOz: 0.15, maxOz: uspsFirstClassMaxOz},
	{carrier: "USPS", service: "Priority Mail", base: 8.00, perOz: 0.05},
	{carrier: "UPS", service: "Ground", base: 9.50, perOz: 0.06},
	{carrier: "FedEx", service: "Ground", base: 9.75, perOz: 0.06},
}

// Estimates returns all eligible carrier quotes for the weight, cheapest
// first. Non-positive weights fall back to DefaultWeightOz.
func Estimates(weightOz float64) []Estimate {
	if weightOz <= 0 {
		weightOz = DefaultWeightOz
	}

	var out []Estimate
	for _, r := range rates {
		if r.maxOz > 0 && weightOz > r.maxOz {
			continue
		}
		out = append(out, Estimate{
			Carrier: r.carrier,
			Service: r.service,
			Cost:    round2(r.base + r.perOz*weightOz),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out
}

// Cheapest returns the lowest quote for the weight.
func Cheapest(weightOz float64) Estimate {
	return Estimates(weightOz)[0]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

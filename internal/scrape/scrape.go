// Package scrape turns raw marketplace search pages into normalized
// listings. One scraper exists per marketplace; each applies an ordered list
// of extraction strategies and uses the first one that yields listings, so a
// layout change on the source degrades to the next strategy instead of
// failing the scrape.
package scrape

import (
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/profiteer/profiteer/internal/domain"
)

// Registry holds the scrapers constructed at startup, in registration order.
// It is the single place the rest of the pipeline discovers sources from.
type Registry struct {
	order []domain.Scraper
	byKey map[domain.Marketplace]domain.Scraper
}

// NewRegistry builds a registry from explicitly constructed scrapers.
func NewRegistry(scrapers ...domain.Scraper) *Registry {
	r := &Registry{byKey: make(map[domain.Marketplace]domain.Scraper, len(scrapers))}
	for _, s := range scrapers {
		r.order = append(r.order, s)
		r.byKey[s.Marketplace()] = s
	}
	return r
}

// All returns the registered scrapers in registration order.
func (r *Registry) All() []domain.Scraper {
	return r.order
}

// Get returns the scraper for a marketplace key.
func (r *Registry) Get(mp domain.Marketplace) (domain.Scraper, bool) {
	s, ok := r.byKey[mp]
	return s, ok
}

// Len returns the number of registered scrapers.
func (r *Registry) Len() int {
	return len(r.order)
}

// extractStrategy is one ordered attempt at pulling listings out of a page.
type extractStrategy struct {
	name string
	fn   func(doc *goquery.Document) []domain.Listing
}

// runStrategies tries each strategy in order and returns the output of the
// first one yielding any listings.
func runStrategies(log zerolog.Logger, doc *goquery.Document, strategies []extractStrategy) []domain.Listing {
	for _, s := range strategies {
		listings := s.fn(doc)
		if len(listings) > 0 {
			log.Debug().Str("strategy", s.name).Int("listings", len(listings)).Msg("Extraction strategy matched")
			return listings
		}
	}
	return nil
}

// buildResult computes the aggregate view over parsed listings. Success is
// true iff at least one listing (sold or active) was extracted.
func buildResult(mp domain.Marketplace, displayName string, sold, active []domain.Listing) domain.ScrapeResult {
	soldPrices := positivePrices(sold)
	activePrices := positivePrices(active)

	res := domain.ScrapeResult{
		Marketplace:    mp,
		DisplayName:    displayName,
		SoldListings:   sold,
		ActiveListings: active,
		SalesVolume:    len(soldPrices),
		ScrapedAt:      time.Now().UTC(),
	}

	if len(soldPrices) > 0 {
		res.AvgSoldPrice = round2(stat.Mean(soldPrices, nil))
		res.MedianSoldPrice = round2(median(soldPrices))
	}
	if len(activePrices) > 0 {
		res.ActivePrice = round2(median(activePrices))
	}

	res.Success = len(soldPrices) > 0 || len(activePrices) > 0
	if !res.Success {
		res.ErrorMessage = "no listings found"
	}
	return res
}

// failedResult is the degraded answer for error paths; it never escalates
// to an error return.
func failedResult(mp domain.Marketplace, displayName, msg string) domain.ScrapeResult {
	return domain.ScrapeResult{
		Marketplace:  mp,
		DisplayName:  displayName,
		Success:      false,
		ErrorMessage: msg,
		ScrapedAt:    time.Now().UTC(),
	}
}

func positivePrices(listings []domain.Listing) []float64 {
	var prices []float64
	for _, l := range listings {
		if l.Price > 0 {
			prices = append(prices, l.Price)
		}
	}
	return prices
}

// median is the linearly interpolated middle value, matching the arithmetic
// median for both odd and even counts.
func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.LinInterp, sorted, nil)
}

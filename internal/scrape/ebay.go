package scrape

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fetch"
)

const ebaySearchURL = "https://www.ebay.com/sch/i.html"

// ebayConditionIDs maps our condition names to eBay's LH_ItemCondition IDs.
var ebayConditionIDs = map[string]string{
	"new":         "1000",
	"open_box":    "1500",
	"refurbished": "2500",
	"used":        "3000",
	"for_parts":   "7000",
}

// ebaySkipTitles are phantom header cards eBay injects into results.
var ebaySkipTitles = map[string]struct{}{
	"shop on ebay":                 {},
	"results matching fewer words": {},
	"new listing":                  {},
}

var ebaySoldPrefixRe = regexp.MustCompile(`(?i)^Sold\s+`)

// Ebay scrapes sold and active listings from eBay search results. It tries
// the current card layout first and falls back to the legacy item layout
// used in some regions.
type Ebay struct {
	fetcher   *fetch.Fetcher
	searchURL string
	log       zerolog.Logger
}

// NewEbay creates the eBay scraper.
func NewEbay(fetcher *fetch.Fetcher, log zerolog.Logger) *Ebay {
	return &Ebay{
		fetcher:   fetcher,
		searchURL: ebaySearchURL,
		log:       log.With().Str("scraper", "ebay").Logger(),
	}
}

// Marketplace implements domain.Scraper.
func (s *Ebay) Marketplace() domain.Marketplace { return domain.MarketplaceEbay }

// DisplayName implements domain.Scraper.
func (s *Ebay) DisplayName() string { return "eBay" }

// Scrape implements domain.Scraper.
func (s *Ebay) Scrape(ctx context.Context, query, condition string) domain.ScrapeResult {
	sold := s.search(ctx, query, condition, true)
	active := s.search(ctx, query, condition, false)
	return buildResult(s.Marketplace(), s.DisplayName(), sold, active)
}

// search fetches and parses a single eBay search results page.
func (s *Ebay) search(ctx context.Context, query, condition string, soldOnly bool) []domain.Listing {
	params := map[string]string{
		"_nkw": query,
		"_sop": "12", // sort by end date, most recent
		"_ipg": "60", // items per page
	}
	if soldOnly {
		params["LH_Complete"] = "1"
		params["LH_Sold"] = "1"
	}
	if id, ok := ebayConditionIDs[condition]; ok {
		params["LH_ItemCondition"] = id
	}

	body, err := s.fetcher.Fetch(ctx, s.searchURL, params)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Bool("sold", soldOnly).Msg("eBay fetch failed")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Msg("eBay page parse failed")
		return nil
	}

	listings := runStrategies(s.log, doc, []extractStrategy{
		{"card", func(d *goquery.Document) []domain.Listing { return parseEbayCards(d, soldOnly) }},
		{"legacy", func(d *goquery.Document) []domain.Listing { return parseEbayLegacy(d, soldOnly) }},
	})

	s.log.Info().
		Int("listings", len(listings)).
		Bool("sold", soldOnly).
		Str("query", query).
		Msg("eBay search parsed")
	return listings
}

// parseEbayCards parses the current s-card layout.
func parseEbayCards(doc *goquery.Document, soldOnly bool) []domain.Listing {
	var listings []domain.Listing
	doc.Find(".s-card.s-card--horizontal").Each(func(_ int, card *goquery.Selection) {
		if l, ok := parseEbayCard(card, soldOnly); ok {
			listings = append(listings, l)
		}
	})
	return listings
}

func parseEbayCard(card *goquery.Selection, soldOnly bool) (domain.Listing, bool) {
	title := strings.TrimSpace(card.Find(".s-card__title").First().Text())
	if title == "" {
		return domain.Listing{}, false
	}
	if _, skip := ebaySkipTitles[strings.ToLower(title)]; skip {
		return domain.Listing{}, false
	}

	// Several price elements may exist (sold plus strikethrough original);
	// take the first non-strikethrough one that parses.
	var price float64
	card.Find("[class*='s-card__price']").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if class, _ := el.Attr("class"); strings.Contains(class, "strikethrough") {
			return true
		}
		if v, ok := parsePrice(strings.TrimSpace(el.Text())); ok {
			price = v
			return false
		}
		return true
	})
	if price <= 0 {
		return domain.Listing{}, false
	}

	l := domain.Listing{Title: title, Price: price}
	l.URL, _ = card.Find("a.s-card__link").First().Attr("href")

	if img := card.Find("img.s-card__image").First(); img.Length() > 0 {
		l.ImageURL = firstAttr(img, "src", "data-defer-load", "data-src")
	}
	l.Condition = strings.TrimSpace(card.Find(".s-card__subtitle").First().Text())

	if soldOnly {
		if caption := strings.TrimSpace(card.Find(".s-card__caption").First().Text()); caption != "" {
			l.SoldAt = parseEbaySoldDate(caption)
		}
	}
	return l, true
}

// parseEbayLegacy parses the legacy s-item layout.
func parseEbayLegacy(doc *goquery.Document, soldOnly bool) []domain.Listing {
	var listings []domain.Listing
	doc.Find(".s-item").Each(func(_ int, item *goquery.Selection) {
		if l, ok := parseEbayLegacyItem(item, soldOnly); ok {
			listings = append(listings, l)
		}
	})
	return listings
}

func parseEbayLegacyItem(item *goquery.Selection, soldOnly bool) (domain.Listing, bool) {
	title := strings.TrimSpace(item.Find(".s-item__title").First().Text())
	if title == "" {
		return domain.Listing{}, false
	}
	if _, skip := ebaySkipTitles[strings.ToLower(title)]; skip {
		return domain.Listing{}, false
	}

	price, ok := parsePrice(strings.TrimSpace(item.Find(".s-item__price").First().Text()))
	if !ok {
		return domain.Listing{}, false
	}

	l := domain.Listing{Title: title, Price: price}
	l.URL, _ = item.Find(".s-item__link").First().Attr("href")
	if img := item.Find(".s-item__image-img").First(); img.Length() > 0 {
		l.ImageURL = firstAttr(img, "src", "data-src")
	}
	l.Condition = strings.TrimSpace(item.Find(".SECONDARY_INFO").First().Text())

	if soldOnly {
		if tag := strings.TrimSpace(item.Find(".s-item__title--tagblock .POSITIVE").First().Text()); tag != "" {
			l.SoldAt = parseEbaySoldDate(tag)
		}
	}
	return l, true
}

// parseEbaySoldDate parses captions like "Sold  Feb 3, 2026".
func parseEbaySoldDate(text string) *time.Time {
	cleaned := strings.TrimSpace(ebaySoldPrefixRe.ReplaceAllString(text, ""))
	if cleaned == "" {
		return nil
	}
	for _, layout := range []string{"Jan 2, 2006", "Jan 2 2006"} {
		if t, err := time.ParseInLocation(layout, cleaned, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

// firstAttr returns the first present attribute out of the given names.
func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := sel.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

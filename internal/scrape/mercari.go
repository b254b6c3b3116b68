package scrape

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fetch"
)

const (
	mercariSearchURL = "https://www.mercari.com/search/"

	// mercariMaxHTMLListings caps the HTML fallback, which matches broad
	// class patterns and can pick up recommendation rails.
	mercariMaxHTMLListings = 50
)

// mercariResultPaths are the known homes of the search result array inside
// the embedded __NEXT_DATA__ payload, probed in order.
var mercariResultPaths = []string{
	"props.pageProps.searchResults",
	"props.pageProps.items",
	"props.pageProps.data.search.itemsList",
}

// Mercari scrapes Mercari search results. The primary strategy reads the
// embedded __NEXT_DATA__ JSON island; when that payload is absent or
// reshaped, a loose HTML selector chain takes over.
type Mercari struct {
	fetcher   *fetch.Fetcher
	searchURL string
	log       zerolog.Logger
}

// NewMercari creates the Mercari scraper.
func NewMercari(fetcher *fetch.Fetcher, log zerolog.Logger) *Mercari {
	return &Mercari{
		fetcher:   fetcher,
		searchURL: mercariSearchURL,
		log:       log.With().Str("scraper", "mercari").Logger(),
	}
}

// Marketplace implements domain.Scraper.
func (s *Mercari) Marketplace() domain.Marketplace { return domain.MarketplaceMercari }

// DisplayName implements domain.Scraper.
func (s *Mercari) DisplayName() string { return "Mercari" }

// Scrape implements domain.Scraper.
func (s *Mercari) Scrape(ctx context.Context, query, condition string) domain.ScrapeResult {
	sold := s.search(ctx, query, condition, true)
	active := s.search(ctx, query, condition, false)
	return buildResult(s.Marketplace(), s.DisplayName(), sold, active)
}

func (s *Mercari) search(ctx context.Context, query, condition string, soldOnly bool) []domain.Listing {
	params := map[string]string{"keyword": query}
	if soldOnly {
		params["status"] = "sold_out"
	} else {
		params["status"] = "on_sale"
	}
	if condition == "new" {
		params["itemCondition"] = "1"
	}

	body, err := s.fetcher.Fetch(ctx, s.searchURL, params)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Bool("sold", soldOnly).Msg("Mercari fetch failed")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Msg("Mercari page parse failed")
		return nil
	}

	listings := runStrategies(s.log, doc, []extractStrategy{
		{"next-data", parseMercariNextData},
		{"html", parseMercariHTML},
	})

	s.log.Info().
		Int("listings", len(listings)).
		Bool("sold", soldOnly).
		Str("query", query).
		Msg("Mercari search parsed")
	return listings
}

// parseMercariNextData reads listings out of the __NEXT_DATA__ script tag.
// Field names drift between payload revisions, so each field is probed under
// its known aliases.
func parseMercariNextData(doc *goquery.Document) []domain.Listing {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" || !gjson.Valid(raw) {
		return nil
	}

	var items gjson.Result
	for _, path := range mercariResultPaths {
		if r := gjson.Get(raw, path); r.IsArray() && len(r.Array()) > 0 {
			items = r
			break
		}
	}
	if !items.IsArray() {
		return nil
	}

	var listings []domain.Listing
	items.ForEach(func(_, item gjson.Result) bool {
		title := firstString(item, "name", "title")
		price := firstFloat(item, "price", "itemPrice")
		if title == "" || price <= 0 {
			return true
		}

		l := domain.Listing{Title: title, Price: round2(price)}
		if id := firstString(item, "id", "itemId"); id != "" {
			l.URL = "https://www.mercari.com/us/item/" + id + "/"
		}
		l.ImageURL = mercariImageURL(item)
		l.Condition = mercariCondition(item)
		if ts := firstInt(item, "updated", "soldAt"); ts > 0 {
			t := time.Unix(ts, 0).UTC()
			l.SoldAt = &t
		}

		listings = append(listings, l)
		return true
	})
	return listings
}

// mercariImageURL handles both the flat imageUrl field and the thumbnails
// array, whose first entry may be a plain string or an object.
func mercariImageURL(item gjson.Result) string {
	if v := item.Get("imageUrl"); v.Type == gjson.String && v.String() != "" {
		return v.String()
	}
	thumb := item.Get("thumbnails.0")
	switch {
	case thumb.Type == gjson.String:
		return thumb.String()
	case thumb.IsObject():
		if v := firstString(thumb, "src", "url"); v != "" {
			return v
		}
	}
	return ""
}

// mercariCondition reads itemCondition, which may be an object with a name
// or a bare string.
func mercariCondition(item gjson.Result) string {
	cond := item.Get("itemCondition")
	switch {
	case cond.IsObject():
		return cond.Get("name").String()
	case cond.Type == gjson.String:
		return cond.String()
	}
	return ""
}

// parseMercariHTML is the degraded strategy for server-rendered pages.
func parseMercariHTML(doc *goquery.Document) []domain.Listing {
	selectors := []string{
		"[data-testid='ItemCell']",
		"[class*='ItemCell']",
		"[class*='SearchResultItem']",
		"[class*='item-cell']",
	}

	var cells *goquery.Selection
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			cells = found
			break
		}
	}
	if cells == nil {
		return nil
	}

	var listings []domain.Listing
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if len(listings) >= mercariMaxHTMLListings {
			return false
		}

		price, ok := parseLooseAmount(cell.Text())
		if !ok {
			return true
		}

		l := domain.Listing{Price: round2(price)}
		if img := cell.Find("img").First(); img.Length() > 0 {
			l.Title = strings.TrimSpace(img.AttrOr("alt", ""))
			l.ImageURL = firstAttr(img, "src", "data-src")
		}
		if l.Title == "" {
			l.Title = strings.TrimSpace(cell.Find("[class*='name'], [class*='title']").First().Text())
		}
		if l.Title == "" {
			return true
		}
		if href, ok := cell.Find("a").First().Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = "https://www.mercari.com" + href
			}
			l.URL = href
		}

		listings = append(listings, l)
		return true
	})
	return listings
}

// firstString returns the first non-empty string value among the paths.
func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// firstFloat returns the first positive numeric value among the paths.
func firstFloat(r gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Float() > 0 {
			return v.Float()
		}
	}
	return 0
}

// firstInt returns the first positive integer value among the paths.
func firstInt(r gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Int() > 0 {
			return v.Int()
		}
	}
	return 0
}

package scrape

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/fetch"
)

const tcgplayerSearchURL = "https://www.tcgplayer.com/search/all/product"

// tcgplayerCardSelectors locate product cards across layout revisions.
var tcgplayerCardSelectors = []string{
	".search-result__product",
	"[class*='product-card']",
	".product-card",
	"[data-testid='product-card']",
}

var (
	tcgMarketPriceRe = regexp.MustCompile(`(?i)Market\s*Price[:\s]*\$([0-9,]+\.?\d*)`)
	tcgListedPriceRe = regexp.MustCompile(`(?i)(?:Lowest|Listed|From|Low)[:\s]*\$([0-9,]+\.?\d*)`)
)

// Tcgplayer scrapes TCGPlayer product search. TCGPlayer has no sold feed;
// its market price is an average of recent sales, so market prices stand in
// for sold listings and lowest listed prices for active ones.
type Tcgplayer struct {
	fetcher   *fetch.Fetcher
	searchURL string
	log       zerolog.Logger
}

// NewTcgplayer creates the TCGPlayer scraper.
func NewTcgplayer(fetcher *fetch.Fetcher, log zerolog.Logger) *Tcgplayer {
	return &Tcgplayer{
		fetcher:   fetcher,
		searchURL: tcgplayerSearchURL,
		log:       log.With().Str("scraper", "tcgplayer").Logger(),
	}
}

// Marketplace implements domain.Scraper.
func (s *Tcgplayer) Marketplace() domain.Marketplace { return domain.MarketplaceTCGPlayer }

// DisplayName implements domain.Scraper.
func (s *Tcgplayer) DisplayName() string { return "TCGPlayer" }

// Scrape implements domain.Scraper. The condition filter is ignored here;
// TCGPlayer tracks card printings, not item conditions, at the search level.
func (s *Tcgplayer) Scrape(ctx context.Context, query, _ string) domain.ScrapeResult {
	params := map[string]string{
		"q":    query,
		"view": "grid",
	}

	body, err := s.fetcher.Fetch(ctx, s.searchURL, params)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("TCGPlayer fetch failed")
		return failedResult(s.Marketplace(), s.DisplayName(), err.Error())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		s.log.Warn().Err(err).Msg("TCGPlayer page parse failed")
		return failedResult(s.Marketplace(), s.DisplayName(), "page parse failed")
	}

	sold, active := s.extract(doc)
	s.log.Info().
		Int("market_prices", len(sold)).
		Int("listed_prices", len(active)).
		Str("query", query).
		Msg("TCGPlayer search parsed")
	return buildResult(s.Marketplace(), s.DisplayName(), sold, active)
}

// extract runs the card strategy, then the __NEXT_DATA__ fallback.
func (s *Tcgplayer) extract(doc *goquery.Document) (sold, active []domain.Listing) {
	sold, active = parseTcgplayerCards(doc)
	if len(sold) > 0 || len(active) > 0 {
		s.log.Debug().Str("strategy", "card").Msg("Extraction strategy matched")
		return sold, active
	}
	return parseTcgplayerNextData(doc)
}

func parseTcgplayerCards(doc *goquery.Document) (sold, active []domain.Listing) {
	var cards *goquery.Selection
	for _, sel := range tcgplayerCardSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			cards = found
			break
		}
	}
	if cards == nil {
		return nil, nil
	}

	cards.Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find("[class*='product-card__title'], [class*='product__name'], .product-name").First().Text())
		if title == "" {
			title = strings.TrimSpace(card.Find("a").First().Text())
		}
		if title == "" {
			return
		}

		text := card.Text()

		l := domain.Listing{Title: title}
		if href, ok := card.Find("a").First().Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = "https://www.tcgplayer.com" + href
			}
			l.URL = href
		}
		if img := card.Find("img").First(); img.Length() > 0 {
			l.ImageURL = firstAttr(img, "src", "data-src")
		}

		if price := tcgplayerCardPrice(card, text, tcgMarketPriceRe, "[class*='market-price']"); price > 0 {
			m := l
			m.Price = price
			sold = append(sold, m)
		}
		if price := tcgplayerCardPrice(card, text, tcgListedPriceRe, "[class*='listed-price'], [class*='lowest-price'], [class*='inventory__price']"); price > 0 {
			a := l
			a.Price = price
			active = append(active, a)
		}
	})
	return sold, active
}

// tcgplayerCardPrice finds a price first by labeled regex over the card
// text, then by dedicated price element classes.
func tcgplayerCardPrice(card *goquery.Selection, text string, re *regexp.Regexp, selector string) float64 {
	if m := re.FindStringSubmatch(text); m != nil {
		if v, ok := parseLooseAmount(m[1]); ok {
			return round2(v)
		}
	}
	if el := card.Find(selector).First(); el.Length() > 0 {
		if v, ok := parsePrice(strings.TrimSpace(el.Text())); ok {
			return v
		}
	}
	return 0
}

func parseTcgplayerNextData(doc *goquery.Document) (sold, active []domain.Listing) {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" || !gjson.Valid(raw) {
		return nil, nil
	}

	results := gjson.Get(raw, "props.pageProps.searchResults")
	if !results.IsArray() {
		results = gjson.Get(raw, "props.pageProps.results")
	}
	if !results.IsArray() {
		return nil, nil
	}

	results.ForEach(func(_, item gjson.Result) bool {
		title := firstString(item, "productName", "name")
		if title == "" {
			return true
		}
		if price := firstFloat(item, "marketPrice", "market_price"); price > 0 {
			sold = append(sold, domain.Listing{Title: title, Price: round2(price)})
		}
		if price := firstFloat(item, "lowestPrice", "lowest_price"); price > 0 {
			active = append(active, domain.Listing{Title: title, Price: round2(price)})
		}
		return true
	})
	return sold, active
}

package scrape

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// currencyPrefixRe matches non-USD currency markers such as "C $" or "AU $".
var currencyPrefixRe = regexp.MustCompile(`^[A-Z]{1,3}\s*\$`)

// dollarAmountRe captures dollar amounts, thousands separators included.
var dollarAmountRe = regexp.MustCompile(`\$([0-9,]+\.?\d*)`)

// bareAmountRe captures amounts with an optional dollar sign, used by
// sources that omit the currency symbol in card markup.
var bareAmountRe = regexp.MustCompile(`\$?([0-9,]+\.?\d*)`)

// parsePrice extracts a USD price from listing text.
//
// Ranges such as "$50.00 to $75.00" resolve to the arithmetic mean of the
// endpoints. Amounts with a foreign currency prefix ("C $74.99") are
// rejected, as are non-positive or unparsable values.
func parsePrice(text string) (float64, bool) {
	if currencyPrefixRe.MatchString(text) {
		return 0, false
	}

	matches := dollarAmountRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var sum float64
	var n int
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}

	avg := round2(sum / float64(n))
	if avg <= 0 {
		return 0, false
	}
	return avg, true
}

// parseLooseAmount extracts the first numeric amount from text, dollar sign
// optional. Used for sources whose price markup drops the symbol.
func parseLooseAmount(text string) (float64, bool) {
	m := bareAmountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

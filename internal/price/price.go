// Package price extracts a numeric amount from raw scraped price text.
package price

import (
	"regexp"
	"strconv"
	"strings"
)

// Plausible price range in euro. Anything outside is assumed to be a stray
// number (unit size, quantity) that happened to match a price pattern.
const (
	MinPrice = 0.01
	MaxPrice = 1000.00
)

var (
	// Unit-size tokens such as "0,75 l" or "1.98 kg" must never be read as
	// prices, so they are stripped before matching.
	unitSizePattern = regexp.MustCompile(`(?i)\d+[,.]\d+\s*(l|ml|g|kg|cl|m)\b`)

	// Patterns in precedence order: currency-prefixed, currency-suffixed,
	// then bare decimals with comma or dot separator. The bare patterns
	// must not start inside a longer number, so 1000.01 never yields a
	// bogus 000.01 match.
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`€\s*(\d+[,.]?\d*)`),
		regexp.MustCompile(`(\d+[,.]?\d*)\s*€`),
		regexp.MustCompile(`(?:^|[^0-9,.])(\d{1,3},\d{2})`),
		regexp.MustCompile(`(?:^|[^0-9,.])(\d{1,3}\.\d{2})`),
	}

	numericPattern = regexp.MustCompile(`(\d+[,.]?\d*)`)
)

// Parse extracts a decimal price from raw text. The second return value is
// false when no in-range price was found; callers must treat that as "price
// unknown", not as an error.
func Parse(text string) (float64, bool) {
	cleaned := unitSizePattern.ReplaceAllString(text, "")

	for _, pattern := range pricePatterns {
		match := pattern.FindStringSubmatch(cleaned)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
		if err != nil {
			continue
		}
		if value >= MinPrice && value <= MaxPrice {
			return value, true
		}
	}

	return 0, false
}

// ParseNumeric extracts the first number from a price string without any
// range validation or unit stripping. Used for already-trusted values such
// as a stored regular price rendered back to text.
func ParseNumeric(text string) (float64, bool) {
	match := numericPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

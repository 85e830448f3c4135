// Package promo normalizes Dutch retail promotion text ("2 voor 0.99",
// "1+1 gratis", "30% korting") into a single effective unit sale price and
// a sale-timing classification.
package promo

import (
	"regexp"
	"strconv"
	"strings"
)

// Annotation is the normalized result of a promotion text. IsActiveSale and
// IsFutureSale are mutually exclusive; both false means no promotion was
// recognized. SalePrice is nil when no numeric price could be resolved.
type Annotation struct {
	IsActiveSale bool     `json:"is_active_sale"`
	IsFutureSale bool     `json:"is_future_sale"`
	SalePrice    *float64 `json:"sale_price,omitempty"`
	SaleStartsAt string   `json:"sale_starts_at,omitempty"`
	SaleType     string   `json:"sale_type,omitempty"`
}

var (
	nVoorPattern       = regexp.MustCompile(`(\d+)\s+voor\s+(\d+[,.]?\d*)`)
	voorPattern        = regexp.MustCompile(`voor\s+(\d+[,.]?\d*)`)
	euroKortingPattern = regexp.MustCompile(`(\d+)\s+euro\s+korting`)
	pctKortingPattern  = regexp.MustCompile(`(\d+)\s*%\s*korting`)
	neHalvePattern     = regexp.MustCompile(`(\d+)(e|de)\s+halve\s+prijs`)
	plusGratisPattern  = regexp.MustCompile(`(\d+)\s*\+\s*(\d+)\s+(gratis|free)`)
	neGratisPattern    = regexp.MustCompile(`(\d+)(e|de)\s+gratis`)
	unitVoorPattern    = regexp.MustCompile(`(\d+)\s+(gram|g|ml|l|kg|cl)\s+voor\s+(\d+[,.]?\d*)`)

	saleKeywords = []string{"halve prijs", "gratis", "korting", "voor", "%"}
	futureTokens = []string{"maandag", "morgen", "dinsdag", "woensdag", "donderdag", "vrijdag", "zaterdag", "zondag"}

	unitLabels = map[string]bool{
		"gram": true, "g": true, "ml": true, "l": true, "kg": true, "cl": true,
	}
)

// Normalize parses promoText (plus optional date-context text) against the
// known regular price and returns the sale annotation. A regular price of 0
// means "unknown"; formulas that need it are skipped.
func Normalize(promoText, contextText string, regular float64) Annotation {
	combined := strings.TrimSpace(strings.ToLower(strings.TrimSpace(promoText) + " " + strings.TrimSpace(contextText)))
	if combined == "" {
		return Annotation{}
	}

	if !hasSaleKeyword(combined) {
		// Unit-price annotations ("€1.00 per 100g") and other incidental
		// text carry no sale keyword and never flag a sale.
		return Annotation{}
	}

	ann := Annotation{SaleType: combined}

	salePrice, ok := calculateSalePrice(combined, regular)
	if !ok && regular > 0 {
		// Keyword present but no recognized formula: the display price is
		// taken verbatim as the sale price.
		salePrice = regular
		ok = true
	}
	if ok {
		if salePrice < 0 {
			salePrice = 0
		}
		ann.SalePrice = &salePrice
	}

	switch {
	case strings.Contains(combined, "vandaag"):
		ann.IsActiveSale = true
	case futureToken(combined) != "":
		ann.IsFutureSale = true
		if ctx := strings.TrimSpace(contextText); ctx != "" {
			ann.SaleStartsAt = ctx
		} else {
			ann.SaleStartsAt = futureToken(combined)
		}
	default:
		// Sale keyword present but no date indicator: treat as active.
		ann.IsActiveSale = true
	}

	return ann
}

// calculateSalePrice applies the promotion formulas in fixed priority order
// and returns the price computed by the first matching one.
func calculateSalePrice(text string, regular float64) (float64, bool) {
	// "2 voor 0.99" -> 0.99 / 2
	if m := nVoorPattern.FindStringSubmatch(text); m != nil {
		quantity, _ := strconv.Atoi(m[1])
		total := parseDecimal(m[2])
		if quantity > 0 {
			return total / float64(quantity), true
		}
	}

	// "voor 1.89" -> 1.89, unless "voor" is part of a unit phrase such as
	// "100 gram voor 1.69", which is handled by the unit formula below.
	if loc := voorPattern.FindStringSubmatchIndex(text); loc != nil && !precededByUnit(text, loc[0]) {
		return parseDecimal(text[loc[2]:loc[3]]), true
	}

	// "1 euro korting" -> regular - 1
	if m := euroKortingPattern.FindStringSubmatch(text); m != nil && regular > 0 {
		discount := parseDecimal(m[1])
		return max(0, regular-discount), true
	}

	// "30% korting" -> regular * 0.7
	if m := pctKortingPattern.FindStringSubmatch(text); m != nil && regular > 0 {
		pct := parseDecimal(m[1])
		return max(0, regular*(1-pct/100)), true
	}

	// "2e halve prijs" -> one full + one half, amortized over both units
	if neHalvePattern.MatchString(text) && regular > 0 {
		return regular * 0.75, true
	}

	// "halve prijs" alone -> regular / 2
	if strings.Contains(text, "halve prijs") && !neHalvePattern.MatchString(text) && regular > 0 {
		return regular / 2, true
	}

	// "1+1 gratis" -> pay for A units, receive A+B
	if m := plusGratisPattern.FindStringSubmatch(text); m != nil && regular > 0 {
		buy, _ := strconv.Atoi(m[1])
		free, _ := strconv.Atoi(m[2])
		if buy+free > 0 {
			return (float64(buy) * regular) / float64(buy+free), true
		}
	}

	// "3e gratis" -> pay for N-1 units, receive N
	if m := neGratisPattern.FindStringSubmatch(text); m != nil && regular > 0 {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			return (float64(n-1) * regular) / float64(n), true
		}
	}

	// "100 gram voor 1.69" -> price per stated unit
	if m := unitVoorPattern.FindStringSubmatch(text); m != nil {
		units := parseDecimal(m[1])
		total := parseDecimal(m[3])
		if units > 0 {
			return total / units, true
		}
	}

	return 0, false
}

func hasSaleKeyword(text string) bool {
	for _, kw := range saleKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// futureToken returns the first weekday or "morgen" token found in the text,
// or "" when none is present.
func futureToken(text string) string {
	for _, token := range futureTokens {
		if strings.Contains(text, token) {
			return token
		}
	}
	return ""
}

// precededByUnit reports whether the word directly before offset is a unit
// label (gram, ml, kg, ...).
func precededByUnit(text string, offset int) bool {
	fields := strings.Fields(text[:offset])
	if len(fields) == 0 {
		return false
	}
	return unitLabels[fields[len(fields)-1]]
}

func parseDecimal(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return v
}

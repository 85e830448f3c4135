package scraper

import (
	"github.com/PuerkitoBio/goquery"

	"jdevries/prijswachter/internal/ledger"
)

// Scraper is the contract for all observation producers. Site-specific
// markup knowledge stays behind this interface; the rest of the pipeline
// only ever sees observations.
type Scraper interface {
	// FetchObservations retrieves product observations from a source page
	FetchObservations() ([]ledger.Observation, error)

	// GetName returns the scraper's name for logging and identification
	GetName() string

	// GetSupermarket returns the supermarket tag the scraper reports under
	GetSupermarket() string
}

// ProcessorFunc processes a single product element into an observation
type ProcessorFunc func(*goquery.Selection) *ledger.Observation

// Selectors contains CSS selectors for the product elements of a page
type Selectors struct {
	ProductList string
	Name        string
	Link        string
	Price       string
	Promo       string
	SaleContext string
}

// ScraperConfig contains configuration for a site scraper
type ScraperConfig struct {
	Name        string
	URL         string
	CacheKey    string
	BlockTime   int
	BaseURL     string
	Supermarket string
	SourceType  string
	Selectors   Selectors
}

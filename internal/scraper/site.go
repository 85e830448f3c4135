package scraper

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jdevries/prijswachter/internal/ledger"
	"jdevries/prijswachter/services/cache"
)

// SiteScraper is a selector-configured scraper. All supported sites share
// the same extraction flow; only the CSS selectors and provenance tags
// differ, so each site is a ScraperConfig value rather than its own type.
type SiteScraper struct {
	BaseScraper
	Name        string
	Supermarket string
	SourceType  string
	Selectors   Selectors
}

var _ Scraper = (*SiteScraper)(nil)

// NewSiteScraper creates a scraper from a site configuration
func NewSiteScraper(config ScraperConfig, cacheSvc cache.CacheService) *SiteScraper {
	return &SiteScraper{
		BaseScraper: BaseScraper{
			URL:       config.URL,
			CacheKey:  config.CacheKey,
			CacheSvc:  cacheSvc,
			BlockTime: time.Duration(config.BlockTime) * time.Second,
			BaseURL:   config.BaseURL,
		},
		Name:        config.Name,
		Supermarket: config.Supermarket,
		SourceType:  config.SourceType,
		Selectors:   config.Selectors,
	}
}

// GetName returns the scraper name
func (s *SiteScraper) GetName() string {
	return s.Name
}

// GetSupermarket returns the supermarket tag
func (s *SiteScraper) GetSupermarket() string {
	return s.Supermarket
}

// FetchObservations fetches the configured page and extracts one
// observation per product element
func (s *SiteScraper) FetchObservations() ([]ledger.Observation, error) {
	utf8Body, err := s.fetchWithCache()
	if err != nil {
		return nil, err
	}

	doc, err := s.createDocument(utf8Body)
	if err != nil {
		return nil, err
	}

	productSelections := doc.Find(s.Selectors.ProductList)
	return s.processObservations(productSelections, s.processProduct), nil
}

// processProduct extracts a single observation from a product element.
// Elements without a name or link are dropped; price and promotion text may
// be missing and are resolved downstream.
func (s *SiteScraper) processProduct(sel *goquery.Selection) *ledger.Observation {
	name := strings.TrimSpace(sel.Find(s.Selectors.Name).First().Text())

	linkSel := sel.Find(s.Selectors.Link).First()
	link, exists := linkSel.Attr("href")
	if !exists && goquery.NodeName(sel) == "a" {
		link, _ = sel.Attr("href")
	}
	link = s.resolveURL(strings.TrimSpace(link))

	if name == "" || link == "" {
		return nil
	}

	rawPrice := strings.TrimSpace(sel.Find(s.Selectors.Price).First().Text())

	var rawPromo string
	if s.Selectors.Promo != "" {
		promoParts := sel.Find(s.Selectors.Promo).Map(func(_ int, p *goquery.Selection) string {
			return strings.TrimSpace(p.Text())
		})
		rawPromo = strings.TrimSpace(strings.Join(promoParts, " "))
	}

	var saleContext string
	if s.Selectors.SaleContext != "" {
		saleContext = strings.TrimSpace(sel.Find(s.Selectors.SaleContext).First().Text())
	}

	return &ledger.Observation{
		Name:        name,
		URL:         link,
		RawPrice:    rawPrice,
		RawPromo:    rawPromo,
		SaleContext: saleContext,
		SourceType:  s.SourceType,
		Supermarket: s.Supermarket,
	}
}

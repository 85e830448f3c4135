package scraper

import (
	"jdevries/prijswachter/config"
	"jdevries/prijswachter/logger"
	"jdevries/prijswachter/services/cache"
)

// CreateScrapers creates all the site scrapers based on the configuration
func CreateScrapers(cfg *config.Config, cacheSvc cache.CacheService) []Scraper {
	configurations := []ScraperConfig{
		{
			// Albert Heijn brand pages
			Name:        "AHBrandScraper",
			URL:         cfg.AHBrandsURL,
			CacheKey:    "ah_brands_rate_limited",
			BlockTime:   300,
			BaseURL:     "https://www.ah.nl",
			Supermarket: "ah",
			SourceType:  "brand",
			Selectors: Selectors{
				ProductList: "article[data-testhook='product-card']",
				Name:        "[data-testhook='product-title']",
				Link:        "a[href^='/producten/product']",
				Price:       "div[data-testhook='price-amount']",
				Promo:       "div[data-testhook='product-shield'] span",
				SaleContext: "p[data-testhook='product-smart-label']",
			},
		},
		{
			// Albert Heijn category pages
			Name:        "AHCategoryScraper",
			URL:         cfg.AHCategoriesURL,
			CacheKey:    "ah_categories_rate_limited",
			BlockTime:   300,
			BaseURL:     "https://www.ah.nl",
			Supermarket: "ah",
			SourceType:  "category",
			Selectors: Selectors{
				ProductList: "article[data-testhook='product-card']",
				Name:        "[data-testhook='product-title']",
				Link:        "a[href^='/producten/product']",
				Price:       "div[data-testhook='price-amount']",
				Promo:       "div[data-testhook='product-shield'] span",
				SaleContext: "p[data-testhook='product-smart-label']",
			},
		},
		{
			// Aldi product grid
			Name:        "AldiScraper",
			URL:         cfg.AldiURL,
			CacheKey:    "aldi_rate_limited",
			BlockTime:   300,
			BaseURL:     "https://www.aldi.nl",
			Supermarket: "aldi",
			SourceType:  "category",
			Selectors: Selectors{
				ProductList: "div.cbp-pgitem",
				Name:        "div.cbp-pginfo h3",
				Link:        "a.product-link",
				Price:       "h3.pgprice",
				Promo:       "span.pgpricediscount, span.discountTag",
				SaleContext: "h6.pgdiscountdate",
			},
		},
		{
			// Supermarktscanner aggregated offers
			Name:        "SupermarktscannerScraper",
			URL:         cfg.SupermarktscannerURL,
			CacheKey:    "supermarktscanner_rate_limited",
			BlockTime:   300,
			BaseURL:     "https://www.supermarktscanner.nl",
			Supermarket: "supermarktscanner",
			SourceType:  "offer",
			Selectors: Selectors{
				ProductList: "div.aanbieding",
				Name:        "h3.product-naam",
				Link:        "a.product-link",
				Price:       "span.prijs",
				Promo:       "span.actie",
				SaleContext: "span.geldigheid",
			},
		},
	}

	scrapers := make([]Scraper, 0, len(configurations))
	for _, sc := range configurations {
		logger.Info("Creating scraper %s for %s", sc.Name, sc.URL)
		scrapers = append(scrapers, NewSiteScraper(sc, cacheSvc))
	}

	return scrapers
}

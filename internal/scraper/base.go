package scraper

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"jdevries/prijswachter/helpers"
	"jdevries/prijswachter/internal/ledger"
	"jdevries/prijswachter/services/cache"
)

// BaseScraper provides common functionality for all site scrapers
type BaseScraper struct {
	URL       string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	BaseURL   string
}

// fetchWithCache fetches a URL with rate limiting backed by the cache
func (s *BaseScraper) fetchWithCache() (io.Reader, error) {
	// Check if the scraper is rate limited
	if s.CacheSvc != nil && s.CacheKey != "" {
		_, err := s.CacheSvc.Get(s.CacheKey)
		if err == nil {
			return nil, fmt.Errorf("%s: blocked for another %d seconds", s.CacheKey, s.BlockTime/time.Second)
		}
	}

	// Fetch the page
	utf8Body, err := helpers.FetchWithRandomHeaders(s.URL)
	if err != nil {
		if s.CacheSvc != nil && s.CacheKey != "" && strings.HasPrefix(err.Error(), "rate limited") {
			// Remember the block so the next batches skip this source
			s.CacheSvc.Set(s.CacheKey, []byte(fmt.Sprintf("%d", s.BlockTime/time.Second)), s.BlockTime)
		}
		return nil, err
	}

	return utf8Body, nil
}

// createDocument creates a goquery document from a reader
func (s *BaseScraper) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML parse error: %v", err)
	}
	return doc, nil
}

// processObservations processes product elements in parallel using goroutines
func (s *BaseScraper) processObservations(selections *goquery.Selection, processor ProcessorFunc) []ledger.Observation {
	obsChan := make(chan *ledger.Observation, selections.Length())
	var wg sync.WaitGroup

	selections.Each(func(i int, sel *goquery.Selection) {
		wg.Add(1)
		go func(sel *goquery.Selection) {
			defer wg.Done()

			obs := processor(sel)
			if obs != nil {
				obsChan <- obs
			}
		}(sel)
	})

	wg.Wait()
	close(obsChan)

	// Collect the processed observations
	var observations []ledger.Observation
	for obs := range obsChan {
		observations = append(observations, *obs)
	}

	return observations
}

// resolveURL turns a site-relative link into an absolute one
func (s *BaseScraper) resolveURL(link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	if strings.HasPrefix(link, "/") {
		return s.BaseURL + link
	}
	return s.BaseURL + "/" + link
}

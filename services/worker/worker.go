// Package worker drives scrape batches: every interval all scrapers run in
// parallel and their observations are reconciled into the ledger.
package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"jdevries/prijswachter/internal/ledger"
	"jdevries/prijswachter/internal/scraper"
	"jdevries/prijswachter/logger"
	"jdevries/prijswachter/pkg/errors"
	"jdevries/prijswachter/services/publisher"
)

// BatchStats holds the counters of one scrape batch. A single bad
// observation bumps a counter; it never aborts the rest of the batch.
type BatchStats struct {
	mu        sync.Mutex
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

func (s *BatchStats) count(c ledger.Classification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch c {
	case ledger.ClassificationNew:
		s.New++
	case ledger.ClassificationUpdated:
		s.Updated++
	case ledger.ClassificationUnchanged:
		s.Unchanged++
	}
}

func (s *BatchStats) countSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

func (s *BatchStats) countError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors++
}

// Snapshot returns a copy of the counters safe to read after the batch.
func (s *BatchStats) Snapshot() (new, updated, unchanged, skipped, errs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.New, s.Updated, s.Unchanged, s.Skipped, s.Errors
}

// BatchRunner handles the scraping and reconciliation process. It carries
// all batch state explicitly; there are no package-level mutable globals.
type BatchRunner struct {
	ctx       context.Context
	scrapers  []scraper.Scraper
	ledger    *ledger.Ledger
	publisher publisher.Publisher
	interval  time.Duration
	log       *logger.Logger
}

// NewBatchRunner creates a new batch runner
func NewBatchRunner(
	ctx context.Context,
	scrapers []scraper.Scraper,
	led *ledger.Ledger,
	pub publisher.Publisher,
	interval time.Duration,
) *BatchRunner {
	return &BatchRunner{
		ctx:       ctx,
		scrapers:  scrapers,
		ledger:    led,
		publisher: pub,
		interval:  interval,
		log:       logger.ForWorker(),
	}
}

// Start runs batches until the context is cancelled. Reconciliations
// committed before cancellation stay committed; there is no batch rollback.
func (r *BatchRunner) Start() error {
	for {
		start := time.Now()
		stats := r.RunOnce()
		newCount, updated, unchanged, skipped, errs := stats.Snapshot()
		r.log.Info().
			Dur("elapsed", time.Since(start)).
			Int("new", newCount).
			Int("updated", updated).
			Int("unchanged", unchanged).
			Int("skipped", skipped).
			Int("errors", errs).
			Msg("Batch finished")

		select {
		case <-r.ctx.Done():
			return r.ctx.Err()
		case <-time.After(r.interval):
		}
	}
}

// RunOnce runs all scrapers in parallel once and returns the batch counters
func (r *BatchRunner) RunOnce() *BatchStats {
	stats := &BatchStats{}

	var wg sync.WaitGroup
	for _, s := range r.scrapers {
		wg.Add(1)
		go func(s scraper.Scraper) {
			defer wg.Done()
			r.scrapeAndReconcile(s, stats)
		}(s)
	}
	wg.Wait()

	// Trim the event streams after the batch
	if r.publisher != nil {
		if err := r.publisher.TrimStreams(); err != nil {
			r.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}

	return stats
}

// scrapeAndReconcile fetches observations from one scraper and runs each
// through the ledger
func (r *BatchRunner) scrapeAndReconcile(s scraper.Scraper, stats *BatchStats) {
	observations, err := s.FetchObservations()
	if err != nil {
		r.log.Error().
			Str("scraper", s.GetName()).
			Err(err).
			Msg("Fetch failed")
		stats.countError()
		return
	}

	for _, obs := range observations {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		result, err := r.ledger.Reconcile(r.ctx, obs)
		if err != nil {
			var scrapeErr *errors.ScrapeError
			if stderrors.As(err, &scrapeErr) && scrapeErr.Type == errors.ErrorTypeValidation {
				stats.countSkipped()
				continue
			}
			r.log.Error().
				Str("scraper", s.GetName()).
				Str("url", obs.URL).
				Err(err).
				Msg("Reconcile failed")
			stats.countError()
			continue
		}

		stats.count(result.Classification)

		if result.Classification != ledger.ClassificationUnchanged {
			r.publishChange(s, result)
		}
	}
}

// publishChange publishes a new or updated reconciliation result
func (r *BatchRunner) publishChange(s scraper.Scraper, result ledger.Result) {
	if r.publisher == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		r.log.Error().Err(err).Msg("Marshal of reconciliation result failed")
		return
	}

	if err := r.publisher.Publish(s.GetSupermarket(), payload); err != nil {
		r.log.Error().
			Str("scraper", s.GetName()).
			Err(err).
			Msg("Publish failed")
	}
}

package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jdevries/prijswachter/internal/ledger"
	"jdevries/prijswachter/internal/scraper"
	"jdevries/prijswachter/internal/store"
)

type mockScraper struct {
	name         string
	supermarket  string
	observations []ledger.Observation
	err          error
}

func (m *mockScraper) FetchObservations() ([]ledger.Observation, error) {
	return m.observations, m.err
}

func (m *mockScraper) GetName() string        { return m.name }
func (m *mockScraper) GetSupermarket() string { return m.supermarket }

type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	trimmed  int
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{messages: make(map[string][][]byte)}
}

func (m *mockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[key] = append(m.messages[key], message)
	return nil
}

func (m *mockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[key])
}

func obs(url, price string) ledger.Observation {
	return ledger.Observation{
		Name:        "Testproduct",
		URL:         url,
		RawPrice:    price,
		SourceType:  "category",
		Supermarket: "ah",
	}
}

func TestRunOnceCountsClassifications(t *testing.T) {
	st := store.NewMemory()
	led := ledger.New(st)
	pub := newMockPublisher()

	// Pre-seed one product so its second sighting is unchanged and a price
	// bump on another is an update.
	_, err := led.Reconcile(context.Background(), obs("https://www.ah.nl/p/1", "€1.00"))
	require.NoError(t, err)
	_, err = led.Reconcile(context.Background(), obs("https://www.ah.nl/p/2", "€2.00"))
	require.NoError(t, err)

	s := &mockScraper{
		name:        "AHCategoryScraper",
		supermarket: "ah",
		observations: []ledger.Observation{
			obs("https://www.ah.nl/p/1", "€1.00"), // unchanged
			obs("https://www.ah.nl/p/2", "€2.50"), // updated
			obs("https://www.ah.nl/p/3", "€3.00"), // new
		},
	}

	runner := NewBatchRunner(context.Background(), []scraper.Scraper{s}, led, pub, time.Hour)
	stats := runner.RunOnce()

	newCount, updated, unchanged, skipped, errs := stats.Snapshot()
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, unchanged)
	assert.Zero(t, skipped)
	assert.Zero(t, errs)

	// Only new and updated results are published
	assert.Equal(t, 2, pub.published("ah"))
	assert.Equal(t, 1, pub.trimmed)
}

func TestRunOnceSkipsInvalidObservations(t *testing.T) {
	led := ledger.New(store.NewMemory())
	pub := newMockPublisher()

	s := &mockScraper{
		name:        "AldiScraper",
		supermarket: "aldi",
		observations: []ledger.Observation{
			obs("", "€1.00"),
			obs("niet-absoluut/pad", "€1.00"),
			obs("https://www.aldi.nl/p/1", "€1.00"),
		},
	}

	runner := NewBatchRunner(context.Background(), []scraper.Scraper{s}, led, pub, time.Hour)
	stats := runner.RunOnce()

	newCount, _, _, skipped, errs := stats.Snapshot()
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 2, skipped)
	assert.Zero(t, errs)
}

func TestRunOnceCountsFetchFailure(t *testing.T) {
	led := ledger.New(store.NewMemory())

	failing := &mockScraper{name: "AHBrandScraper", supermarket: "ah", err: assert.AnError}
	working := &mockScraper{
		name:         "AldiScraper",
		supermarket:  "aldi",
		observations: []ledger.Observation{obs("https://www.aldi.nl/p/1", "€0.99")},
	}

	runner := NewBatchRunner(context.Background(), []scraper.Scraper{failing, working}, led, nil, time.Hour)
	stats := runner.RunOnce()

	newCount, _, _, _, errs := stats.Snapshot()
	assert.Equal(t, 1, newCount, "one scraper failing must not abort the others")
	assert.Equal(t, 1, errs)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	led := ledger.New(store.NewMemory())
	ctx, cancel := context.WithCancel(context.Background())

	runner := NewBatchRunner(ctx, nil, led, nil, time.Hour)

	done := make(chan error, 1)
	go func() { done <- runner.Start() }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancellation")
	}
}

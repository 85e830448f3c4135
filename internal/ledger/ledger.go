// Package ledger reconciles scraped product observations against stored
// price state, keeping an append-only price history per product.
package ledger

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"jdevries/prijswachter/internal/price"
	"jdevries/prijswachter/internal/promo"
	"jdevries/prijswachter/internal/store"
	"jdevries/prijswachter/logger"
	"jdevries/prijswachter/pkg/errors"
)

// Observation is one scraped snapshot of a product. It is consumed once by
// Reconcile and then discarded.
type Observation struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	RawPrice    string `json:"raw_price"`
	RawPromo    string `json:"raw_promo,omitempty"`
	SaleContext string `json:"sale_context,omitempty"`
	SourceType  string `json:"source_type"`
	Supermarket string `json:"supermarket"`
}

// Classification tags the outcome of one reconciliation. Callers use it for
// reporting only, never to gate further processing.
type Classification string

const (
	ClassificationNew       Classification = "new"
	ClassificationUpdated   Classification = "updated"
	ClassificationUnchanged Classification = "unchanged"
)

// Result is the outcome of reconciling one observation.
type Result struct {
	Classification Classification `json:"classification"`
	Product        store.Product  `json:"product"`
}

const lockStripes = 64

// Ledger is the reconciliation engine. Reconciliations for the same URL are
// serialized through a striped lock so that two concurrent observations can
// never both read the old price and append conflicting history entries.
// Different URLs proceed in parallel.
type Ledger struct {
	store store.Store
	locks [lockStripes]sync.Mutex
	log   *logger.Logger
}

// New creates a ledger on top of the given store.
func New(st store.Store) *Ledger {
	return &Ledger{
		store: st,
		log:   logger.ForLedger(),
	}
}

// Reconcile runs one observation through the ledger and classifies it as
// new, updated or unchanged. A price that failed to parse never corrupts
// history: an existing product is left untouched and a new URL is created
// with its price unset so the identity is tracked for later observations.
func (l *Ledger) Reconcile(ctx context.Context, obs Observation) (Result, error) {
	if err := validateURL(obs.URL); err != nil {
		return Result{}, err
	}

	parsed, priceKnown := price.Parse(obs.RawPrice)
	var pricePtr *float64
	if priceKnown {
		pricePtr = &parsed
	} else if obs.RawPrice != "" {
		l.log.Debug().
			Str("url", obs.URL).
			Str("raw_price", obs.RawPrice).
			Msg("No price found in observation")
	}

	sale := promo.Normalize(obs.RawPromo, obs.SaleContext, parsed)

	lock := &l.locks[stripe(obs.URL)]
	lock.Lock()
	defer lock.Unlock()

	prod, created, err := l.store.FindOrCreateProduct(ctx, store.NewProduct{
		Name:        obs.Name,
		URL:         obs.URL,
		Price:       pricePtr,
		SourceType:  obs.SourceType,
		Supermarket: obs.Supermarket,
		Sale:        sale,
	})
	if err != nil {
		return Result{}, errors.NewStorage("ledger", "find-or-create failed", err)
	}

	if created {
		l.log.Debug().
			Str("url", obs.URL).
			Str("name", obs.Name).
			Msg("New product tracked")
		return Result{Classification: ClassificationNew, Product: prod}, nil
	}

	if !priceKnown {
		// Unknown price for a known product: unchanged by omission.
		return Result{Classification: ClassificationUnchanged, Product: prod}, nil
	}

	if prod.CurrentPrice != nil && *prod.CurrentPrice == parsed {
		if !annotationsEqual(prod.Sale, sale) {
			if err := l.store.RefreshSale(ctx, prod.ID, sale); err != nil {
				return Result{}, errors.NewStorage("ledger", "sale refresh failed", err)
			}
			prod.Sale = sale
		}
		return Result{Classification: ClassificationUnchanged, Product: prod}, nil
	}

	if err := l.store.RecordPriceChange(ctx, prod.ID, parsed, sale); err != nil {
		return Result{}, errors.NewStorage("ledger", "price change failed", err)
	}

	var old float64
	if prod.CurrentPrice != nil {
		old = *prod.CurrentPrice
	}
	l.log.Info().
		Str("name", prod.Name).
		Float64("old_price", old).
		Float64("new_price", parsed).
		Msg("Price changed")

	updated, err := l.store.GetProductByURL(ctx, obs.URL)
	if err != nil {
		return Result{}, errors.NewStorage("ledger", "reload after update failed", err)
	}
	return Result{Classification: ClassificationUpdated, Product: updated}, nil
}

// History returns the price history of the product stored under url.
func (l *Ledger) History(ctx context.Context, url string) ([]store.PriceHistoryEntry, error) {
	prod, err := l.store.GetProductByURL(ctx, url)
	if err != nil {
		return nil, err
	}
	return l.store.HistoryForProduct(ctx, prod.ID)
}

// validateURL rejects observations whose identity cannot be trusted. URL
// equality is exact-string; no normalization of slashes or query parameters
// is attempted.
func validateURL(url string) error {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return errors.NewValidation("ledger", "observation has empty URL")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return errors.NewValidation("ledger", "observation URL is not absolute: "+trimmed)
	}
	return nil
}

func stripe(url string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return h.Sum32() % lockStripes
}

func annotationsEqual(a, b promo.Annotation) bool {
	if a.IsActiveSale != b.IsActiveSale || a.IsFutureSale != b.IsFutureSale {
		return false
	}
	if a.SaleStartsAt != b.SaleStartsAt || a.SaleType != b.SaleType {
		return false
	}
	if (a.SalePrice == nil) != (b.SalePrice == nil) {
		return false
	}
	if a.SalePrice != nil && *a.SalePrice != *b.SalePrice {
		return false
	}
	return true
}

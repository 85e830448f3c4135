// Package store persists products and their price history.
package store

import (
	"context"
	"errors"
	"time"

	"jdevries/prijswachter/internal/promo"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("store: product not found")

// Product is a tracked grocery product. A product is identified by its
// external URL; at most one product exists per URL.
type Product struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	URL          string           `json:"url"`
	CurrentPrice *float64         `json:"current_price"`
	SourceType   string           `json:"source_type"`
	Supermarket  string           `json:"supermarket"`
	Sale         promo.Annotation `json:"sale"`
	CreatedAt    time.Time        `json:"created_at"`
	LastUpdated  time.Time        `json:"last_updated"`
}

// PriceHistoryEntry is one append-only price record owned by a product.
type PriceHistoryEntry struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Price     float64   `json:"price"`
	ChangedAt time.Time `json:"changed_at"`
}

// NewProduct carries the fields needed to create a product. Price is nil
// when the observation's price text could not be parsed.
type NewProduct struct {
	Name        string
	URL         string
	Price       *float64
	SourceType  string
	Supermarket string
	Sale        promo.Annotation
}

// SearchFilter selects products by keyword substring (on name) and an
// optional supermarket allow-list. Empty fields match everything.
type SearchFilter struct {
	Keyword      string
	Supermarkets []string
}

// Stats summarizes the stored data set.
type Stats struct {
	Products       int            `json:"products"`
	HistoryEntries int            `json:"history_entries"`
	PerSupermarket map[string]int `json:"per_supermarket"`
}

// Store is the persistence contract used by the ledger and the API.
//
// FindOrCreateProduct must be atomic: concurrent calls for the same URL may
// not create duplicates. RecordPriceChange must update the product and
// append the history entry in a single transaction so that the latest
// history price always equals the product's current price.
type Store interface {
	FindOrCreateProduct(ctx context.Context, np NewProduct) (Product, bool, error)
	GetProductByURL(ctx context.Context, url string) (Product, error)
	GetProductByID(ctx context.Context, id int64) (Product, error)
	RecordPriceChange(ctx context.Context, productID int64, price float64, sale promo.Annotation) error
	RefreshSale(ctx context.Context, productID int64, sale promo.Annotation) error
	HistoryForProduct(ctx context.Context, productID int64) ([]PriceHistoryEntry, error)
	Search(ctx context.Context, filter SearchFilter) ([]Product, error)
	Stats(ctx context.Context) (Stats, error)
	ClearAll(ctx context.Context) error
	Close() error
}

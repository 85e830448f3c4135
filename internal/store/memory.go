package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"jdevries/prijswachter/internal/promo"
)

// Memory implements Store on process memory. It mirrors the SQLite
// semantics and backs tests and throwaway demo runs that should not touch
// a database file.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	byURL   map[string]*Product
	history map[int64][]PriceHistoryEntry
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:  1,
		byURL:   make(map[string]*Product),
		history: make(map[int64][]PriceHistoryEntry),
	}
}

func (m *Memory) FindOrCreateProduct(_ context.Context, np NewProduct) (Product, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byURL[np.URL]; ok {
		return *existing, false, nil
	}

	now := time.Now()
	prod := &Product{
		ID:          m.nextID,
		Name:        np.Name,
		URL:         np.URL,
		SourceType:  np.SourceType,
		Supermarket: np.Supermarket,
		Sale:        np.Sale,
		CreatedAt:   now,
		LastUpdated: now,
	}
	m.nextID++
	if np.Price != nil {
		v := *np.Price
		prod.CurrentPrice = &v
		m.history[prod.ID] = append(m.history[prod.ID], PriceHistoryEntry{
			ID:        int64(len(m.history[prod.ID]) + 1),
			ProductID: prod.ID,
			Price:     v,
			ChangedAt: now,
		})
	}
	m.byURL[np.URL] = prod
	return *prod, true, nil
}

func (m *Memory) GetProductByURL(_ context.Context, url string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prod, ok := m.byURL[url]; ok {
		return *prod, nil
	}
	return Product{}, ErrNotFound
}

func (m *Memory) GetProductByID(_ context.Context, id int64) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prod := m.findByID(id); prod != nil {
		return *prod, nil
	}
	return Product{}, ErrNotFound
}

func (m *Memory) RecordPriceChange(_ context.Context, productID int64, price float64, sale promo.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prod := m.findByID(productID)
	if prod == nil {
		return ErrNotFound
	}
	v := price
	prod.CurrentPrice = &v
	prod.Sale = sale
	prod.LastUpdated = time.Now()
	m.history[productID] = append(m.history[productID], PriceHistoryEntry{
		ID:        int64(len(m.history[productID]) + 1),
		ProductID: productID,
		Price:     price,
		ChangedAt: prod.LastUpdated,
	})
	return nil
}

func (m *Memory) RefreshSale(_ context.Context, productID int64, sale promo.Annotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prod := m.findByID(productID)
	if prod == nil {
		return ErrNotFound
	}
	prod.Sale = sale
	prod.LastUpdated = time.Now()
	return nil
}

func (m *Memory) HistoryForProduct(_ context.Context, productID int64) ([]PriceHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]PriceHistoryEntry, len(m.history[productID]))
	copy(entries, m.history[productID])
	return entries, nil
}

func (m *Memory) Search(_ context.Context, filter SearchFilter) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]bool, len(filter.Supermarkets))
	for _, sm := range filter.Supermarkets {
		allowed[sm] = true
	}

	var products []Product
	for _, prod := range m.byURL {
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(prod.Name), strings.ToLower(filter.Keyword)) {
			continue
		}
		if len(allowed) > 0 && !allowed[prod.Supermarket] {
			continue
		}
		products = append(products, *prod)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{
		Products:       len(m.byURL),
		PerSupermarket: make(map[string]int),
	}
	for _, prod := range m.byURL {
		stats.PerSupermarket[prod.Supermarket]++
	}
	for _, entries := range m.history {
		stats.HistoryEntries += len(entries)
	}
	return stats, nil
}

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byURL = make(map[string]*Product)
	m.history = make(map[int64][]PriceHistoryEntry)
	m.nextID = 1
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) findByID(id int64) *Product {
	for _, prod := range m.byURL {
		if prod.ID == id {
			return prod
		}
	}
	return nil
}

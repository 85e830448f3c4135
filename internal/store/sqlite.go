package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jdevries/prijswachter/internal/promo"
)

// SQLite implements Store on a local SQLite file.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens (and if needed bootstraps) the SQLite database at path.
func Open(path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS brands (
  id           INTEGER PRIMARY KEY,
  name         TEXT UNIQUE NOT NULL,
  url          TEXT NOT NULL,
  letter       TEXT NOT NULL,
  created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_scraped DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_brands_letter ON brands(letter);
CREATE TABLE IF NOT EXISTS categories (
  id           INTEGER PRIMARY KEY,
  name         TEXT UNIQUE NOT NULL,
  url          TEXT NOT NULL,
  created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_scraped DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS products (
  id             INTEGER PRIMARY KEY,
  brand_id       INTEGER REFERENCES brands(id),
  category_id    INTEGER REFERENCES categories(id),
  name           TEXT NOT NULL,
  url            TEXT UNIQUE NOT NULL,
  current_price  REAL,
  source_type    TEXT NOT NULL,
  supermarket    TEXT NOT NULL,
  is_active_sale INTEGER NOT NULL DEFAULT 0 CHECK (is_active_sale IN (0,1)),
  is_future_sale INTEGER NOT NULL DEFAULT 0 CHECK (is_future_sale IN (0,1)),
  sale_price     REAL,
  sale_starts_at TEXT,
  sale_type      TEXT,
  created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  last_updated   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_url ON products(url);
CREATE INDEX IF NOT EXISTS idx_products_source ON products(source_type);
CREATE INDEX IF NOT EXISTS idx_products_supermarket ON products(supermarket);
CREATE INDEX IF NOT EXISTS idx_products_price ON products(current_price);
CREATE TABLE IF NOT EXISTS price_history (
  id         INTEGER PRIMARY KEY,
  product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  price      REAL NOT NULL,
  changed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id);
CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(changed_at);
	`); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FindOrCreateProduct returns the product stored under np.URL, creating it
// (with a seed history entry when a price is known) if it does not exist.
// The UNIQUE constraint on url makes concurrent creation safe: the insert
// is a no-op for the loser and both callers reselect the same row.
func (s *SQLite) FindOrCreateProduct(ctx context.Context, np NewProduct) (Product, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Product{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO products (name, url, current_price, source_type, supermarket,
                      is_active_sale, is_future_sale, sale_price, sale_starts_at, sale_type)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(url) DO NOTHING`,
		np.Name, np.URL, np.Price, np.SourceType, np.Supermarket,
		boolToInt(np.Sale.IsActiveSale), boolToInt(np.Sale.IsFutureSale),
		np.Sale.SalePrice, nullIfEmpty(np.Sale.SaleStartsAt), nullIfEmpty(np.Sale.SaleType))
	if err != nil {
		return Product{}, false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return Product{}, false, err
	}

	if inserted > 0 && np.Price != nil {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO price_history (product_id, price) VALUES ((SELECT id FROM products WHERE url = ?), ?)`,
			np.URL, *np.Price); err != nil {
			return Product{}, false, err
		}
	}

	prod, err := scanProduct(tx.QueryRowContext(ctx, productQuery+` WHERE url = ?`, np.URL))
	if err != nil {
		return Product{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return Product{}, false, err
	}
	return prod, inserted > 0, nil
}

// GetProductByURL returns the product stored under url.
func (s *SQLite) GetProductByURL(ctx context.Context, url string) (Product, error) {
	prod, err := scanProduct(s.db.QueryRowContext(ctx, productQuery+` WHERE url = ?`, url))
	if err == sql.ErrNoRows {
		return Product{}, ErrNotFound
	}
	return prod, err
}

// GetProductByID returns the product with the given id.
func (s *SQLite) GetProductByID(ctx context.Context, id int64) (Product, error) {
	prod, err := scanProduct(s.db.QueryRowContext(ctx, productQuery+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Product{}, ErrNotFound
	}
	return prod, err
}

// RecordPriceChange sets the product's current price and sale annotation and
// appends the matching history entry, in one transaction.
func (s *SQLite) RecordPriceChange(ctx context.Context, productID int64, price float64, sale promo.Annotation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE products SET current_price = ?, is_active_sale = ?, is_future_sale = ?,
                    sale_price = ?, sale_starts_at = ?, sale_type = ?,
                    last_updated = CURRENT_TIMESTAMP
WHERE id = ?`,
		price, boolToInt(sale.IsActiveSale), boolToInt(sale.IsFutureSale),
		sale.SalePrice, nullIfEmpty(sale.SaleStartsAt), nullIfEmpty(sale.SaleType), productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price) VALUES (?, ?)`, productID, price); err != nil {
		return err
	}

	return tx.Commit()
}

// RefreshSale updates only the sale annotation of a product.
func (s *SQLite) RefreshSale(ctx context.Context, productID int64, sale promo.Annotation) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE products SET is_active_sale = ?, is_future_sale = ?, sale_price = ?,
                    sale_starts_at = ?, sale_type = ?, last_updated = CURRENT_TIMESTAMP
WHERE id = ?`,
		boolToInt(sale.IsActiveSale), boolToInt(sale.IsFutureSale),
		sale.SalePrice, nullIfEmpty(sale.SaleStartsAt), nullIfEmpty(sale.SaleType), productID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// HistoryForProduct returns the product's price history, oldest first.
func (s *SQLite) HistoryForProduct(ctx context.Context, productID int64) ([]PriceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, price, changed_at FROM price_history WHERE product_id = ? ORDER BY changed_at, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PriceHistoryEntry
	for rows.Next() {
		var e PriceHistoryEntry
		var changedAt string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &changedAt); err != nil {
			return nil, err
		}
		e.ChangedAt = parseTimestamp(changedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Search returns products matching the filter, ordered by name.
func (s *SQLite) Search(ctx context.Context, filter SearchFilter) ([]Product, error) {
	query := productQuery + ` WHERE 1=1`
	var args []any

	if filter.Keyword != "" {
		query += ` AND name LIKE ?`
		args = append(args, "%"+filter.Keyword+"%")
	}
	if len(filter.Supermarkets) > 0 {
		query += ` AND supermarket IN (?` + strings.Repeat(",?", len(filter.Supermarkets)-1) + `)`
		for _, sm := range filter.Supermarkets {
			args = append(args, sm)
		}
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, prod)
	}
	return products, rows.Err()
}

// Stats returns product and history counts, broken down per supermarket.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{PerSupermarket: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&stats.Products); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_history`).Scan(&stats.HistoryEntries); err != nil {
		return Stats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT supermarket, COUNT(*) FROM products GROUP BY supermarket`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sm string
		var count int
		if err := rows.Scan(&sm, &count); err != nil {
			return Stats{}, err
		}
		stats.PerSupermarket[sm] = count
	}
	return stats, rows.Err()
}

// ClearAll removes every product and history entry. Used for a full resync.
func (s *SQLite) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, stmt := range []string{
		`DELETE FROM price_history`,
		`DELETE FROM products`,
		`DELETE FROM brands`,
		`DELETE FROM categories`,
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const productQuery = `
SELECT id, name, url, current_price, source_type, supermarket,
       is_active_sale, is_future_sale, sale_price, sale_starts_at, sale_type,
       created_at, last_updated
FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p           Product
		price       sql.NullFloat64
		activeSale  int
		futureSale  int
		salePrice   sql.NullFloat64
		startsAt    sql.NullString
		saleType    sql.NullString
		createdAt   string
		lastUpdated string
	)
	err := row.Scan(&p.ID, &p.Name, &p.URL, &price, &p.SourceType, &p.Supermarket,
		&activeSale, &futureSale, &salePrice, &startsAt, &saleType,
		&createdAt, &lastUpdated)
	if err != nil {
		return Product{}, err
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.LastUpdated = parseTimestamp(lastUpdated)
	if price.Valid {
		v := price.Float64
		p.CurrentPrice = &v
	}
	p.Sale = promo.Annotation{
		IsActiveSale: activeSale == 1,
		IsFutureSale: futureSale == 1,
		SaleStartsAt: startsAt.String,
		SaleType:     saleType.String,
	}
	if salePrice.Valid {
		v := salePrice.Float64
		p.Sale.SalePrice = &v
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTimestamp reads the SQLite CURRENT_TIMESTAMP format, falling back to
// RFC3339. Unparseable values come back as the zero time.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// SeedBrand registers a brand dimension row, updating last_scraped when the
// brand already exists. Returns the brand id.
func (s *SQLite) SeedBrand(ctx context.Context, name, url, letter string) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO brands (name, url, letter) VALUES (?,?,?)
ON CONFLICT(name) DO UPDATE SET url = excluded.url, last_scraped = CURRENT_TIMESTAMP`,
		name, url, letter); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM brands WHERE name = ?`, name).Scan(&id)
	return id, err
}

// SeedCategory registers a category dimension row. Returns the category id.
func (s *SQLite) SeedCategory(ctx context.Context, name, url string) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO categories (name, url) VALUES (?,?)
ON CONFLICT(name) DO UPDATE SET url = excluded.url, last_scraped = CURRENT_TIMESTAMP`,
		name, url); err != nil {
		return 0, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	return id, err
}

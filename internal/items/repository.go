// Package items persists the item catalog: the stable identities that price
// observations and hype snapshots hang off.
package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/profiteer/profiteer/internal/domain"
)

// Repository is the sqlite-backed domain.ItemStore.
type Repository struct {
	db *sql.DB
}

var _ domain.ItemStore = (*Repository)(nil)

// NewRepository creates an item repository on an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreate resolves an item by case-insensitive name, creating it on
// first sight. The stored name keeps the caller's original casing.
func (r *Repository) FindOrCreate(ctx context.Context, name string) (domain.Item, error) {
	item, err := r.getByName(ctx, name)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, fmt.Errorf("failed to look up item %q: %w", name, err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, name)
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to create item %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to read new item id: %w", err)
	}

	created, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	return *created, nil
}

func (r *Repository) getByName(ctx context.Context, name string) (domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, upc, sku, category, image_url, created_at
		FROM items
		WHERE LOWER(name) = LOWER(?)
		LIMIT 1`, name)
	return scanItem(row)
}

// GetByID returns the item or a not-found error.
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, upc, sku, category, image_url, created_at
		FROM items
		WHERE id = ?`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return &item, nil
}

// Search returns items whose name contains the query, case-insensitively,
// newest first.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, upc, sku, category, image_url, created_at
		FROM items
		WHERE name LIKE '%' || ? || '%'
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.Name, &item.UPC, &item.SKU, &item.Category, &item.ImageURL, &item.CreatedAt)
	return item, err
}

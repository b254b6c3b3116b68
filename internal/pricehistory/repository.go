// Package pricehistory persists and analyses the append-only price
// observation log.
package pricehistory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/profiteer/profiteer/internal/domain"
)

// Repository is the sqlite-backed domain.ObservationStore.
type Repository struct {
	db *sql.DB
}

var _ domain.ObservationStore = (*Repository)(nil)

// NewRepository creates an observation repository on an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one observation. RecordedAt defaults to now when unset.
func (r *Repository) Insert(ctx context.Context, obs domain.PriceObservation) error {
	recordedAt := obs.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO price_history (item_id, marketplace, price, condition, sold_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		obs.ItemID, string(obs.Marketplace), obs.Price, obs.Condition, obs.SoldAt, recordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price observation: %w", err)
	}
	return nil
}

// QuerySince returns an item's observations at or after the cutoff, oldest
// first.
func (r *Repository) QuerySince(ctx context.Context, itemID int64, since time.Time) ([]domain.PriceObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, marketplace, price, condition, sold_at, recorded_at
		FROM price_history
		WHERE item_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC, id ASC`, itemID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var observations []domain.PriceObservation
	for rows.Next() {
		var obs domain.PriceObservation
		var mp string
		if err := rows.Scan(&obs.ID, &obs.ItemID, &mp, &obs.Price, &obs.Condition, &obs.SoldAt, &obs.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price observation: %w", err)
		}
		obs.Marketplace = domain.Marketplace(mp)
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// RecentlyActiveItems returns items observed since the cutoff, most recently
// observed first. A non-positive limit means no limit.
func (r *Repository) RecentlyActiveItems(ctx context.Context, since time.Time, limit int) ([]domain.Item, error) {
	query := `
		SELECT i.id, i.name, i.upc, i.sku, i.category, i.image_url, i.created_at
		FROM items i
		JOIN price_history ph ON ph.item_id = i.id
		WHERE ph.recorded_at >= ?
		GROUP BY i.id
		ORDER BY MAX(ph.recorded_at) DESC`
	args := []any{since}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recently active items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// ItemsWithMultiMarketplaceData returns items observed on at least two
// distinct marketplaces since the cutoff.
func (r *Repository) ItemsWithMultiMarketplaceData(ctx context.Context, since time.Time) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, i.upc, i.sku, i.category, i.image_url, i.created_at
		FROM items i
		JOIN price_history ph ON ph.item_id = i.id
		WHERE ph.recorded_at >= ?
		GROUP BY i.id
		HAVING COUNT(DISTINCT ph.marketplace) >= 2
		ORDER BY i.id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query multi-marketplace items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// LatestPrice returns the item's most recent observation, or nil when the
// item has never been observed.
func (r *Repository) LatestPrice(ctx context.Context, itemID int64) (*domain.PriceObservation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, item_id, marketplace, price, condition, sold_at, recorded_at
		FROM price_history
		WHERE item_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`, itemID)

	var obs domain.PriceObservation
	var mp string
	err := row.Scan(&obs.ID, &obs.ItemID, &mp, &obs.Price, &obs.Condition, &obs.SoldAt, &obs.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}
	obs.Marketplace = domain.Marketplace(mp)
	return &obs, nil
}

func scanItems(rows *sql.Rows) ([]domain.Item, error) {
	var items []domain.Item
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.UPC, &item.SKU, &item.Category, &item.ImageURL, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

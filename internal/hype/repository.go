package hype

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/profiteer/profiteer/internal/domain"
)

// Repository is the sqlite-backed domain.SnapshotStore.
type Repository struct {
	db *sql.DB
}

var _ domain.SnapshotStore = (*Repository)(nil)

// NewRepository creates a snapshot repository on an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends one snapshot and returns its id.
func (r *Repository) Insert(ctx context.Context, snap domain.HypeSnapshot) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO hype_snapshots (
			item_id, score, trend,
			price_velocity_score, volume_score, marketplace_spread_score,
			price_premium_score, momentum_score, recency_score,
			total_data_points, marketplace_count, price_change_pct, avg_daily_volume,
			recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ItemID, snap.Score, snap.Trend,
		snap.VelocityScore, snap.VolumeScore, snap.SpreadScore,
		snap.PremiumScore, snap.MomentumScore, snap.RecencyScore,
		snap.TotalDataPoints, snap.MarketplaceCount, snap.PriceChangePct, snap.AvgDailyVolume,
		snap.RecordedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert hype snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit snapshots for an item, oldest first.
func (r *Repository) Recent(ctx context.Context, itemID int64, limit int) ([]domain.HypeSnapshot, error) {
	if limit <= 0 {
		limit = historyLimit
	}
	// Newest-first limit, then reversed, so the limit trims the oldest rows.
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, score, trend,
		       price_velocity_score, volume_score, marketplace_spread_score,
		       price_premium_score, momentum_score, recency_score,
		       total_data_points, marketplace_count, price_change_pct, avg_daily_volume,
		       recorded_at
		FROM hype_snapshots
		WHERE item_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.HypeSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

// LatestForItem returns the item's most recent snapshot, or nil.
func (r *Repository) LatestForItem(ctx context.Context, itemID int64) (*domain.HypeSnapshot, error) {
	snapshots, err := r.Recent(ctx, itemID, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

// LatestPerItem returns each item's single latest snapshot joined with its
// name and category, highest score first.
func (r *Repository) LatestPerItem(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hs.item_id, i.name, i.category, hs.score, hs.trend
		FROM hype_snapshots hs
		JOIN items i ON i.id = hs.item_id
		WHERE hs.id = (
			SELECT id FROM hype_snapshots
			WHERE item_id = hs.item_id
			ORDER BY recorded_at DESC, id DESC
			LIMIT 1
		)
		ORDER BY hs.score DESC, hs.item_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.ItemID, &entry.Name, &entry.Category, &entry.Score, &entry.Trend); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (domain.HypeSnapshot, error) {
	var snap domain.HypeSnapshot
	err := rows.Scan(
		&snap.ID, &snap.ItemID, &snap.Score, &snap.Trend,
		&snap.VelocityScore, &snap.VolumeScore, &snap.SpreadScore,
		&snap.PremiumScore, &snap.MomentumScore, &snap.RecencyScore,
		&snap.TotalDataPoints, &snap.MarketplaceCount, &snap.PriceChangePct, &snap.AvgDailyVolume,
		&snap.RecordedAt)
	if err != nil {
		return domain.HypeSnapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	return snap, nil
}

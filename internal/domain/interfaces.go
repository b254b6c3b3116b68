package domain

import (
	"context"
	"time"
)

// Scraper is the contract every marketplace source implements. Scrape never
// returns an error: every failure path degrades to a ScrapeResult with
// Success=false and a populated ErrorMessage.
type Scraper interface {
	Marketplace() Marketplace
	DisplayName() string
	Scrape(ctx context.Context, query, condition string) ScrapeResult
}

// ScrapeCache fronts the scrapers to avoid redundant fetches. Absence is
// always a miss, never an error; backend failures are handled (and logged)
// behind this interface.
type ScrapeCache interface {
	Get(ctx context.Context, mp Marketplace, query, condition string) (*ScrapeResult, bool)
	Set(ctx context.Context, mp Marketplace, query, condition string, result ScrapeResult)
	Invalidate(ctx context.Context, mp Marketplace, query, condition string)
}

// ItemStore is the narrow persistence contract for items.
type ItemStore interface {
	// FindOrCreate resolves an item by case-insensitive name, creating it on
	// first observation.
	FindOrCreate(ctx context.Context, name string) (Item, error)
	GetByID(ctx context.Context, id int64) (*Item, error)
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// ObservationStore is the narrow persistence contract for price observations.
// Inserts are append-only; rows are never mutated or deleted.
type ObservationStore interface {
	Insert(ctx context.Context, obs PriceObservation) error
	// QuerySince returns observations for an item recorded at or after the
	// cutoff, ordered by recorded time ascending.
	QuerySince(ctx context.Context, itemID int64, since time.Time) ([]PriceObservation, error)
	// RecentlyActiveItems returns items with observations since the cutoff,
	// most recently observed first. A non-positive limit means no limit.
	RecentlyActiveItems(ctx context.Context, since time.Time, limit int) ([]Item, error)
	// ItemsWithMultiMarketplaceData returns items observed on two or more
	// distinct marketplaces since the cutoff.
	ItemsWithMultiMarketplaceData(ctx context.Context, since time.Time) ([]Item, error)
	// LatestPrice returns the most recent observation for an item, or nil.
	LatestPrice(ctx context.Context, itemID int64) (*PriceObservation, error)
}

// SnapshotStore is the narrow persistence contract for hype snapshots.
type SnapshotStore interface {
	Insert(ctx context.Context, snap HypeSnapshot) (int64, error)
	// Recent returns up to limit snapshots for an item, oldest first.
	Recent(ctx context.Context, itemID int64, limit int) ([]HypeSnapshot, error)
	// LatestPerItem returns each item's single latest snapshot joined with
	// the item's name and category, highest score first.
	LatestPerItem(ctx context.Context) ([]LeaderboardEntry, error)
	// LatestForItem returns the item's most recent snapshot, or nil.
	LatestForItem(ctx context.Context, itemID int64) (*HypeSnapshot, error)
}

// AlertStore is the narrow persistence contract for alerts.
type AlertStore interface {
	Active(ctx context.Context) ([]Alert, error)
	MarkTriggered(ctx context.Context, id int64, at time.Time) error
}

// ShipmentTracker is the external shipment-tracking collaborator. The
// scheduler drives it periodically; this pipeline does not implement it.
type ShipmentTracker interface {
	RefreshActive(ctx context.Context) error
}

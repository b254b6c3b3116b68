package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profiteer/profiteer/internal/database"
	"github.com/profiteer/profiteer/internal/domain"
	"github.com/profiteer/profiteer/internal/hype"
	"github.com/profiteer/profiteer/internal/items"
	"github.com/profiteer/profiteer/internal/pricehistory"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	uri := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

type fixture struct {
	db        *sql.DB
	items     *items.Repository
	history   *pricehistory.Repository
	snapshots *hype.Repository
	alerts    *Repository
	service   *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := newTestDB(t)
	itemRepo := items.NewRepository(db)
	obsRepo := pricehistory.NewRepository(db)
	snapRepo := hype.NewRepository(db)
	alertRepo := NewRepository(db)
	return fixture{
		db:        db,
		items:     itemRepo,
		history:   obsRepo,
		snapshots: snapRepo,
		alerts:    alertRepo,
		service:   New(alertRepo, obsRepo, snapRepo, zerolog.Nop()),
	}
}

func (f fixture) item(t *testing.T, name string) domain.Item {
	t.Helper()
	item, err := f.items.FindOrCreate(context.Background(), name)
	require.NoError(t, err)
	return item
}

func (f fixture) price(t *testing.T, itemID int64, price float64) {
	t.Helper()
	require.NoError(t, f.history.Insert(context.Background(), domain.PriceObservation{
		ItemID:      itemID,
		Marketplace: domain.MarketplaceEbay,
		Price:       price,
		RecordedAt:  time.Now().UTC(),
	}))
}

func TestEvaluatePriceDrop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Charizard VMAX")
	f.price(t, item.ID, 45)

	alert, err := f.alerts.Create(ctx, item.ID, domain.AlertPriceDrop, 50)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	require.Len(t, fired, 1)
	assert.Equal(t, alert.ID, fired[0].ID)
	require.NotNil(t, fired[0].LastTriggered)

	stored, err := f.alerts.Active(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotNil(t, stored[0].LastTriggered, "trigger time must be persisted")
}

func TestEvaluatePriceDropNotMet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Charizard VMAX")
	f.price(t, item.ID, 55)

	_, err := f.alerts.Create(ctx, item.ID, domain.AlertPriceDrop, 50)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluatePriceRise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Charizard VMAX")
	f.price(t, item.ID, 120)

	_, err := f.alerts.Create(ctx, item.ID, domain.AlertPriceRise, 100)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	assert.Len(t, fired, 1)
}

func TestEvaluateHypeThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Labubu Macaron")

	_, err := f.snapshots.Insert(ctx, domain.HypeSnapshot{
		ItemID:     item.ID,
		Score:      82,
		Trend:      "rising",
		RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	_, err = f.alerts.Create(ctx, item.ID, domain.AlertHypeThreshold, 80)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	assert.Len(t, fired, 1)
}

func TestEvaluateSkipsItemsWithoutData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Never Observed")

	_, err := f.alerts.Create(ctx, item.ID, domain.AlertPriceDrop, 50)
	require.NoError(t, err)
	_, err = f.alerts.Create(ctx, item.ID, domain.AlertHypeThreshold, 10)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

func TestEvaluateSkipsInactiveAndBadTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "Charizard VMAX")
	f.price(t, item.ID, 10)

	alert, err := f.alerts.Create(ctx, item.ID, domain.AlertPriceDrop, 50)
	require.NoError(t, err)
	require.NoError(t, f.alerts.Deactivate(ctx, alert.ID))

	// Unknown type is logged and skipped, not fatal.
	_, err = f.alerts.Create(ctx, item.ID, "price_teleport", 1)
	require.NoError(t, err)

	fired, err := f.service.Evaluate(ctx)
	require.NoError(t, err)
	assert.Empty(t, fired)
}

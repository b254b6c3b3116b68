package items

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profiteer/profiteer/internal/database"
)

// newTestDB opens a named in-memory database so the pool's connections all
// see the same data without touching disk.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	uri := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(uri)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return db
}

func TestFindOrCreateCreatesOnce(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.FindOrCreate(ctx, "Charizard VMAX")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Charizard VMAX", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	// Case-insensitive lookup must not create a duplicate.
	found, err := repo.FindOrCreate(ctx, "charizard vmax")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Charizard VMAX", found.Name, "original casing is kept")
}

func TestGetByID(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.FindOrCreate(ctx, "Kaws Companion")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)

	_, err = repo.GetByID(ctx, 9999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSearch(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"Charizard VMAX", "Charizard V", "Pikachu Promo"} {
		_, err := repo.FindOrCreate(ctx, name)
		require.NoError(t, err)
	}

	results, err := repo.Search(ctx, "charizard", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.Search(ctx, "zelda", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchLimit(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"Funko A", "Funko B", "Funko C"} {
		_, err := repo.FindOrCreate(ctx, name)
		require.NoError(t, err)
	}

	results, err := repo.Search(ctx, "funko", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/storage"
)

func TestMetadataSnapshotStore_SaveAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataSnapshotStore(pool)

	snap := &domain.MetadataSnapshot{
		FetchedAt: 1700000000000,
		Tokens: map[string]domain.AssetMetadata{
			"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {
				Symbol:  ptr("USDC"),
				Name:    ptr("USD Coin"),
				LogoURI: ptr("https://example.com/usdc.png"),
			},
			"So11111111111111111111111111111111111111112": {
				Symbol: ptr("SOL"),
			},
		},
	}

	require.NoError(t, store.Save(ctx, snap))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)

	assert.Equal(t, snap.FetchedAt, latest.FetchedAt)
	require.Equal(t, 2, latest.Size())

	usdc := latest.Tokens["EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"]
	require.NotNil(t, usdc.Symbol)
	assert.Equal(t, "USDC", *usdc.Symbol)
	require.NotNil(t, usdc.LogoURI)
	assert.Equal(t, "https://example.com/usdc.png", *usdc.LogoURI)

	sol := latest.Tokens["So11111111111111111111111111111111111111112"]
	assert.Nil(t, sol.Name)
	assert.Nil(t, sol.LogoURI)
}

func TestMetadataSnapshotStore_PrunesOlder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataSnapshotStore(pool)

	require.NoError(t, store.Save(ctx, &domain.MetadataSnapshot{
		FetchedAt: 1000,
		Tokens:    map[string]domain.AssetMetadata{"old": {Symbol: ptr("OLD")}},
	}))
	require.NoError(t, store.Save(ctx, &domain.MetadataSnapshot{
		FetchedAt: 2000,
		Tokens:    map[string]domain.AssetMetadata{"new": {Symbol: ptr("NEW")}},
	}))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), latest.FetchedAt)
	assert.Contains(t, latest.Tokens, "new")
	assert.NotContains(t, latest.Tokens, "old")

	var count int
	err = pool.QueryRow(ctx, `SELECT count(*) FROM asset_metadata_snapshots`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetadataSnapshotStore_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewMetadataSnapshotStore(pool)

	snap := &domain.MetadataSnapshot{FetchedAt: 1000, Tokens: map[string]domain.AssetMetadata{}}
	require.NoError(t, store.Save(ctx, snap))

	err := store.Save(ctx, snap)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestMetadataSnapshotStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMetadataSnapshotStore(pool)

	_, err := store.Latest(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

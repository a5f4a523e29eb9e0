package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage/memory"
)

// setupRedis starts a Redis container and returns a client.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})

	cleanup := func() {
		client.Close()
		_ = container.Terminate(ctx)
	}

	return client, cleanup
}

func testQuote(assetID string, price float64) domain.Quote {
	return domain.Quote{
		AssetID:      assetID,
		Name:         "Asset " + assetID,
		Symbol:       "sym",
		PriceUSD:     price,
		MarketCapUSD: price * 1e6,
	}
}

func TestSummaryCache_ReadThrough(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := memory.NewCurrentRecordStore()
	_, err := store.UpsertAll(ctx, []domain.Quote{
		testQuote("bitcoin", 50000),
		testQuote("ethereum", 3000),
	})
	require.NoError(t, err)

	cache := NewSummaryCache(SummaryCacheOptions{
		Client: client,
		Store:  store,
		TTL:    time.Minute,
	})
	require.NoError(t, cache.Ping(ctx))

	// First read loads from the store and populates the cache
	summaries, err := cache.GetSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	exists, err := client.Exists(ctx, summariesKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// Second read serves the cached copy even after the store changes
	_, err = store.UpsertAll(ctx, []domain.Quote{testQuote("solana", 150)})
	require.NoError(t, err)

	summaries, err = cache.GetSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)

	// Invalidation picks up the new asset
	require.NoError(t, cache.Invalidate(ctx))

	summaries, err = cache.GetSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 3)
}

func TestSummaryCache_FallsBackOnBadEntry(t *testing.T) {
	client, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := memory.NewCurrentRecordStore()
	_, err := store.UpsertAll(ctx, []domain.Quote{testQuote("bitcoin", 50000)})
	require.NoError(t, err)

	cache := NewSummaryCache(SummaryCacheOptions{
		Client: client,
		Store:  store,
	})

	// Poison the cache entry; the read must fall back to the store
	require.NoError(t, client.Set(ctx, summariesKey, "not json", time.Minute).Err())

	summaries, err := cache.GetSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "bitcoin", summaries[0].AssetID)
}

package exchange_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-discount/internal/exchange"
)

func TestCacheKey(t *testing.T) {
	require.Equal(t, "USD_EUR", exchange.CacheKey("USD", "EUR"))
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache, err := exchange.NewMemoryCache(3)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("K%d", i), decimal.NewFromInt(int64(i)), time.Minute))
	}
	_, ok, err := cache.Get(ctx, "K0")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cache.Put(ctx, "K3", decimal.NewFromInt(3), time.Minute))
	require.Equal(t, 3, cache.Len())

	_, ok, _ = cache.Get(ctx, "K1")
	require.False(t, ok, "least recently used entry should have been evicted")
	_, ok, _ = cache.Get(ctx, "K0")
	require.True(t, ok)
	_, ok, _ = cache.Get(ctx, "K3")
	require.True(t, ok)
}

func TestMemoryCacheExpiresAfterWrite(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache, err := exchange.NewMemoryCache(10)
	require.NoError(t, err)
	cache.WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "USD_EUR", decimal.RequireFromString("0.92"), 10*time.Minute))

	now = now.Add(10*time.Minute - time.Nanosecond)
	rate, ok, err := cache.Get(ctx, "USD_EUR")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.92", rate.String())

	now = now.Add(time.Nanosecond)
	_, ok, err = cache.Get(ctx, "USD_EUR")
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, cache.Len(), "expired entries are dropped on read")
}

func TestNewMemoryCacheRejectsNonPositiveSize(t *testing.T) {
	_, err := exchange.NewMemoryCache(0)
	require.Error(t, err)
}

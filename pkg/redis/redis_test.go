package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), &goredis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Disabled(t *testing.T) {
	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "fx")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Set(ctx, "key", "v", time.Minute))
	n, err := cache.DeletePrefix(ctx, "series:")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_RoundTripAndTTL(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "fx")
	ctx := context.Background()

	type point struct {
		Date string  `json:"date"`
		Rate float64 `json:"rate"`
	}
	in := []point{{"2024-01-02", 0.91}, {"2024-01-03", 0.92}}

	require.NoError(t, cache.Set(ctx, "series:a", in, time.Minute))
	assert.True(t, mr.Exists("fx:cache:series:a"))

	var out []point
	found, err := cache.Get(ctx, "series:a", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)

	mr.FastForward(2 * time.Minute)
	found, err = cache.Get(ctx, "series:a", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_DeletePrefix(t *testing.T) {
	client, mr := newTestClient(t)
	cache := NewCache(client, "fx")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, SeriesKey("frankfurter", "USD", "EUR", "", ""), 1, time.Hour))
	require.NoError(t, cache.Set(ctx, SeriesKey("frankfurter", "USD", "EUR", "2024-01-01", ""), 2, time.Hour))
	require.NoError(t, cache.Set(ctx, SeriesKey("frankfurter", "USD", "GBP", "", ""), 3, time.Hour))

	n, err := cache.DeletePrefix(ctx, PairPrefix("frankfurter", "USD", "EUR"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists("fx:cache:series:frankfurter:USD:GBP:-:-"))
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"open range", SeriesKey("Frankfurter", "USD", "EUR", "", ""), "series:frankfurter:USD:EUR:-:-"},
		{"bounded", SeriesKey("frankfurter", "USD", "JPY", "2024-01-01", "2024-06-30"), "series:frankfurter:USD:JPY:2024-01-01:2024-06-30"},
		{"pair prefix", PairPrefix("frankfurter", "USD", "EUR"), "series:frankfurter:USD:EUR:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

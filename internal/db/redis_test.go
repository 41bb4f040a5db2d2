package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &RedisStore{Client: client, Ctx: context.Background()}, mr
}

func TestFrequencyCountMissingKey(t *testing.T) {
	store, _ := newTestRedisStore(t)

	val, err := store.FrequencyCount(context.Background(), "anon-1", "li-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), val)
}

func TestIncrementFrequencySetsTTLOnFirst(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	val, err := store.IncrementFrequency(ctx, "anon-1", "li-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
	assert.Equal(t, time.Minute, mr.TTL("freqcap:anon-1:li-1"))

	// Later increments must not reset the window.
	mr.FastForward(30 * time.Second)
	val, err = store.IncrementFrequency(ctx, "anon-1", "li-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)
	assert.Equal(t, 30*time.Second, mr.TTL("freqcap:anon-1:li-1"))

	count, err := store.FrequencyCount(ctx, "anon-1", "li-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestIncrementFrequencyZeroWindowNeverExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)

	_, err := store.IncrementFrequency(context.Background(), "anon-1", "li-1", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), mr.TTL("freqcap:anon-1:li-1"))
}

func TestIncrementDailyImpressions(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	val, err := store.IncrementDailyImpressions(ctx, "li-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = store.IncrementDailyImpressions(ctx, "li-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	key := fmt.Sprintf("daily:lineitem:li-1:%s", time.Now().Format("2006-01-02"))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))
}

func TestNextIndexCycles(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	want := []int{0, 1, 2, 0, 1, 2, 0}
	for i, w := range want {
		idx, err := store.NextIndex(ctx, "sidebar_top", 3)
		require.NoError(t, err)
		assert.Equal(t, w, idx, "call %d", i)
	}
}

func TestNextIndexPerPlacement(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	idx, err := store.NextIndex(ctx, "sidebar_top", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	// A different placement keeps its own cursor.
	idx, err = store.NextIndex(ctx, "footer", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = store.NextIndex(ctx, "sidebar_top", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestNextIndexInvalidSize(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.NextIndex(context.Background(), "sidebar_top", 0)
	assert.Error(t, err)
}

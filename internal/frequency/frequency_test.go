package frequency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/models"
)

type stubLookup struct {
	li  *models.LineItem
	err error
}

func (s *stubLookup) GetLineItem(ctx context.Context, id string) (*models.LineItem, error) {
	return s.li, s.err
}

func newTestStore(t *testing.T) (*db.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &db.RedisStore{Client: client, Ctx: context.Background()}, mr
}

func TestAllowUnderCap(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewChecker(store, &stubLookup{li: &models.LineItem{ID: "li-1", FreqCapCount: 2}}, zaptest.NewLogger(t))
	ctx := context.Background()

	ok, err := c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Record(ctx, "li-1", "anon-1", ""))
	ok, err = c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Record(ctx, "li-1", "anon-1", ""))
	ok, err = c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.False(t, ok, "cap of 2 reached")
}

func TestAllowDefaultCap(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewChecker(store, &stubLookup{li: &models.LineItem{ID: "li-1"}}, zaptest.NewLogger(t))
	ctx := context.Background()

	for i := 0; i < DefaultCap; i++ {
		ok, err := c.Allow(ctx, "li-1", "anon-1", "")
		require.NoError(t, err)
		assert.True(t, ok, "impression %d under default cap", i)
		require.NoError(t, c.Record(ctx, "li-1", "anon-1", ""))
	}

	ok, err := c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllowFailsOpenOnLookupError(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewChecker(store, &stubLookup{err: errors.New("pg down")}, zaptest.NewLogger(t))

	ok, err := c.Allow(context.Background(), "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowNilStore(t *testing.T) {
	c := NewChecker(nil, &stubLookup{}, zaptest.NewLogger(t))

	_, err := c.Allow(context.Background(), "li-1", "anon-1", "")
	assert.ErrorIs(t, err, ErrNilRedisStore)

	assert.ErrorIs(t, c.Record(context.Background(), "li-1", "anon-1", ""), ErrNilRedisStore)
}

func TestRecordSetsWindowTTL(t *testing.T) {
	store, mr := newTestStore(t)
	li := &models.LineItem{ID: "li-1", FreqCapCount: 5, FreqCapWindow: 2 * time.Minute}
	c := NewChecker(store, &stubLookup{li: li}, zaptest.NewLogger(t))

	require.NoError(t, c.Record(context.Background(), "li-1", "anon-1", ""))

	key := "freqcap:anon-1:li-1"
	val, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "1", val)
	assert.Equal(t, 2*time.Minute, mr.TTL(key))
}

func TestRecordCountersExpire(t *testing.T) {
	store, mr := newTestStore(t)
	li := &models.LineItem{ID: "li-1", FreqCapCount: 1, FreqCapWindow: time.Minute}
	c := NewChecker(store, &stubLookup{li: li}, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, c.Record(ctx, "li-1", "anon-1", ""))
	ok, err := c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(time.Minute + time.Second)

	ok, err = c.Allow(ctx, "li-1", "anon-1", "")
	require.NoError(t, err)
	assert.True(t, ok, "counter expired with the window")
}

func TestCapIdentityPrefersUserID(t *testing.T) {
	store, _ := newTestStore(t)
	li := &models.LineItem{ID: "li-1", FreqCapCount: 1}
	c := NewChecker(store, &stubLookup{li: li}, zaptest.NewLogger(t))
	ctx := context.Background()

	// Impressions are keyed by user id across devices.
	require.NoError(t, c.Record(ctx, "li-1", "anon-device-a", "u-1"))

	ok, err := c.Allow(ctx, "li-1", "anon-device-b", "u-1")
	require.NoError(t, err)
	assert.False(t, ok, "same user on another device stays capped")

	ok, err = c.Allow(ctx, "li-1", "anon-device-a", "")
	require.NoError(t, err)
	assert.True(t, ok, "anonymous counter is separate")
}

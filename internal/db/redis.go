package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore wraps a redis client and context for counter operations:
// frequency caps, daily delivery counters and sequential rotation cursors.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(addr string) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		Ctx:    context.Background(),
	}

	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(rs.Ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// FrequencyCount returns the impression count recorded for (anonID,
// lineItemID) in the current window. Missing keys count as zero.
func (r *RedisStore) FrequencyCount(ctx context.Context, anonID, lineItemID string) (int64, error) {
	key := freqCapKey(anonID, lineItemID)
	val, err := r.Client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// IncrementFrequency bumps the frequency counter for (anonID, lineItemID).
// The window TTL is applied on the first impression so the counter resets
// itself. Returns the new count.
func (r *RedisStore) IncrementFrequency(ctx context.Context, anonID, lineItemID string, window time.Duration) (int64, error) {
	key := freqCapKey(anonID, lineItemID)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 && window > 0 {
		r.Client.Expire(ctx, key, window)
	}
	return val, nil
}

// IncrementDailyImpressions bumps today's delivery counter for a line item.
// A 24h TTL is applied on first set.
func (r *RedisStore) IncrementDailyImpressions(ctx context.Context, lineItemID string) (int64, error) {
	key := fmt.Sprintf("daily:lineitem:%s:%s", lineItemID, time.Now().Format("2006-01-02"))
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		r.Client.Expire(ctx, key, 24*time.Hour)
	}
	return val, nil
}

// NextIndex advances the sequential rotation cursor for a placement and
// returns the slot to serve, already reduced modulo size.
func (r *RedisStore) NextIndex(ctx context.Context, placementCode string, size int) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("sequence size must be positive")
	}
	key := fmt.Sprintf("seq:placement:%s", placementCode)
	val, err := r.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int((val - 1) % int64(size)), nil
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

func freqCapKey(anonID, lineItemID string) string {
	return fmt.Sprintf("freqcap:%s:%s", anonID, lineItemID)
}

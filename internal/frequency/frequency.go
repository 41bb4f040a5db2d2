package frequency

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/db"
	"github.com/openadstack/addecide/internal/models"
)

// Default frequency cap settings if a line item does not specify them.
const (
	DefaultCap    = 3
	DefaultWindow = 1 * time.Minute
)

var ErrNilRedisStore = errors.New("redis store is nil")

// LineItemLookup fetches a single line item so the checker can read its
// cap configuration.
type LineItemLookup interface {
	GetLineItem(ctx context.Context, id string) (*models.LineItem, error)
}

// Checker enforces per-user frequency caps using Redis counters. It
// satisfies the decision engine's FrequencyCapChecker interface.
type Checker struct {
	store  *db.RedisStore
	items  LineItemLookup
	logger *zap.Logger
}

func NewChecker(store *db.RedisStore, items LineItemLookup, logger *zap.Logger) *Checker {
	return &Checker{store: store, items: items, logger: logger}
}

// Allow reports whether serving lineItemID to this user is still within its
// frequency cap. Any Redis or lookup failure fails open: a slow cache must
// never block ad delivery.
func (c *Checker) Allow(ctx context.Context, lineItemID, anonID, userID string) (bool, error) {
	if c.store == nil || c.store.Client == nil {
		return false, ErrNilRedisStore
	}

	capCount := DefaultCap
	li, err := c.items.GetLineItem(ctx, lineItemID)
	if err != nil {
		c.logger.Error("frequency cap line item lookup", zap.String("line_item_id", lineItemID), zap.Error(err))
		return true, nil
	}
	if li != nil && li.FreqCapCount > 0 {
		capCount = li.FreqCapCount
	}

	val, err := c.store.FrequencyCount(ctx, capIdentity(anonID, userID), lineItemID)
	if err != nil {
		c.logger.Error("redis freqcap", zap.Error(err))
		// Fail open — allow the ad if Redis is down or slow
		return true, nil
	}
	return val < int64(capCount), nil
}

// Record increments the frequency counter for a served impression. Call this
// AFTER the impression is confirmed, not during filtering.
func (c *Checker) Record(ctx context.Context, lineItemID, anonID, userID string) error {
	if c.store == nil || c.store.Client == nil {
		return ErrNilRedisStore
	}

	window := DefaultWindow
	li, err := c.items.GetLineItem(ctx, lineItemID)
	if err == nil && li != nil && li.FreqCapWindow > 0 {
		window = li.FreqCapWindow
	}

	if _, err := c.store.IncrementFrequency(ctx, capIdentity(anonID, userID), lineItemID, window); err != nil {
		c.logger.Error("failed to increment frequency cap", zap.Error(err))
		return err
	}
	return nil
}

// capIdentity picks the identifier the counter is keyed on. Logged-in users
// are capped across devices by user ID; anonymous users by their anon ID.
func capIdentity(anonID, userID string) string {
	if userID != "" {
		return userID
	}
	return anonID
}

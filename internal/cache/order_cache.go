package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GTDGit/pesapal_api/internal/models"
)

// DefaultOrderTTL applies when the mirror is created with a zero TTL.
const DefaultOrderTTL = 24 * time.Hour

// Setter is the write side of RedisClient.
type Setter interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// OrderCache mirrors ledger records into Redis for external dashboards.
// It is write-only; the ledger never reads it back.
type OrderCache struct {
	store Setter
	ttl   time.Duration
}

// NewOrderCache creates a new OrderCache.
func NewOrderCache(store Setter, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}
	return &OrderCache{store: store, ttl: ttl}
}

// OrderKey returns the Redis key for an order: order:{trackingId}
func OrderKey(trackingID string) string {
	return fmt.Sprintf("order:%s", trackingID)
}

// Put writes the JSON form of order, replacing any previous copy.
func (c *OrderCache) Put(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := c.store.Set(ctx, OrderKey(order.TrackingID), string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to mirror order %s: %w", order.TrackingID, err)
	}
	return nil
}

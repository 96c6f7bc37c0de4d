package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedLookup fronts another Lookup with a Redis read-through cache. Concurrent misses
// for the same item share one upstream call.
type CachedLookup struct {
	next    Lookup
	client  *redis.Client
	baseTTL time.Duration
	sfg     singleflight.Group
	log     zerolog.Logger
}

func NewCachedLookup(next Lookup, client *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedLookup {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedLookup{
		next:    next,
		client:  client,
		baseTTL: ttl,
		log:     log,
	}
}

func (c *CachedLookup) GetItem(ctx context.Context, merchantID, itemID int64) (*Item, error) {
	key := itemKey(merchantID, itemID)

	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		item, err := c.get(ctx, key)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("catalog cache get failed")
		}

		item, err = c.next.GetItem(ctx, merchantID, itemID)
		if err != nil {
			return nil, err
		}

		if err := c.set(ctx, key, item); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("catalog cache set failed")
		}
		return item, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Item), nil
}

// Invalidate drops a cached item after a menu change.
func (c *CachedLookup) Invalidate(ctx context.Context, merchantID, itemID int64) error {
	if err := c.client.Del(ctx, itemKey(merchantID, itemID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *CachedLookup) get(ctx context.Context, key string) (*Item, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item failed: %w", err)
	}
	return &item, nil
}

func (c *CachedLookup) set(ctx context.Context, key string, item *Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item failed: %w", err)
	}
	jitter := time.Duration(rand.Intn(60)) * time.Second
	return c.client.Set(ctx, key, data, c.baseTTL+jitter).Err()
}

func itemKey(merchantID, itemID int64) string {
	return fmt.Sprintf("menu:%d:%d", merchantID, itemID)
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// RedisStore keeps carts as JSON values that expire with the session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisStore) Load(ctx context.Context, sessionID string, merchantID int64) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(sessionID, merchantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *RedisStore) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	if err := r.client.Set(ctx, cartKey(cart.SessionID, cart.MerchantID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string, merchantID int64) error {
	if err := r.client.Del(ctx, cartKey(sessionID, merchantID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisStore) SetLastOrder(ctx context.Context, sessionID string, orderID int64) error {
	if err := r.client.Set(ctx, lastOrderKey(sessionID), orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set last order failed: %w", err)
	}
	return nil
}

func (r *RedisStore) TakeLastOrder(ctx context.Context, sessionID string) (int64, error) {
	val, err := r.client.GetDel(ctx, lastOrderKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNoLastOrder
	}
	if err != nil {
		return 0, fmt.Errorf("redis getdel last order failed: %w", err)
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last order failed: %w", err)
	}
	return orderID, nil
}

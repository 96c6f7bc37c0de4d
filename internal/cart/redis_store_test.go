package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_takeout/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore on top of it
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, time.Hour), mr
}

func TestRedisStore_LoadMissing(t *testing.T) {
	store, _ := setupTestRedis(t)

	c, err := store.Load(context.Background(), "s1", 7)
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, c)
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	c := &domain.Cart{
		ID:         "cart-1",
		SessionID:  "s1",
		MerchantID: 7,
		Items:      []domain.LineItem{{ItemID: 1, Name: "Ramen", UnitPrice: 500, Quantity: 2}},
	}
	require.NoError(t, store.Save(ctx, c))
	assert.True(t, mr.Exists("cart:s1:7"))
	assert.Equal(t, time.Hour, mr.TTL("cart:s1:7"))

	loaded, err := store.Load(ctx, "s1", 7)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", loaded.ID)
	assert.Equal(t, c.Items, loaded.Items)

	_, err = store.Load(ctx, "s1", 8)
	assert.ErrorIs(t, err, ErrCartNotFound)

	require.NoError(t, store.Delete(ctx, "s1", 7))
	_, err = store.Load(ctx, "s1", 7)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedisStore_Expires(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Cart{ID: "c", SessionID: "s1", MerchantID: 7}))
	mr.FastForward(2 * time.Hour)

	_, err := store.Load(ctx, "s1", 7)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:s1:7", "{not json"))

	_, err := store.Load(context.Background(), "s1", 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCartNotFound)
}

func TestRedisStore_LastOrder(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.TakeLastOrder(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoLastOrder)

	require.NoError(t, store.SetLastOrder(ctx, "s1", 55))
	id, err := store.TakeLastOrder(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)

	_, err = store.TakeLastOrder(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoLastOrder)
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Load(context.Background(), "s1", 7)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCartNotFound)
}

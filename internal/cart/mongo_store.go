package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_takeout/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// MongoStore keeps one document per (session, merchant) cart and one per session
// for the last order id. Both expire through TTL indexes on updated_at.
type MongoStore struct {
	carts      *mongo.Collection
	lastOrders *mongo.Collection
	ttl        time.Duration
}

type lastOrderDoc struct {
	SessionID string    `bson:"session_id"`
	OrderID   int64     `bson:"order_id"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoStore(db *mongo.Database, ttl time.Duration) *MongoStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MongoStore{
		carts:      db.Collection("carts"),
		lastOrders: db.Collection("last_orders"),
		ttl:        ttl,
	}
}

func (m *MongoStore) Load(ctx context.Context, sessionID string, merchantID int64) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"session_id": sessionID, "merchant_id": merchantID}
	err := m.carts.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoStore) Save(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	filter := bson.M{"session_id": cart.SessionID, "merchant_id": cart.MerchantID}
	update := bson.M{"$set": cart}
	opts := options.Update().SetUpsert(true)

	if _, err := m.carts.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, sessionID string, merchantID int64) error {
	filter := bson.M{"session_id": sessionID, "merchant_id": merchantID}
	if _, err := m.carts.DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoStore) SetLastOrder(ctx context.Context, sessionID string, orderID int64) error {
	doc := lastOrderDoc{SessionID: sessionID, OrderID: orderID, UpdatedAt: time.Now()}
	filter := bson.M{"session_id": sessionID}
	opts := options.Update().SetUpsert(true)

	if _, err := m.lastOrders.UpdateOne(ctx, filter, bson.M{"$set": doc}, opts); err != nil {
		return fmt.Errorf("failed to set last order: %w", err)
	}
	return nil
}

func (m *MongoStore) TakeLastOrder(ctx context.Context, sessionID string) (int64, error) {
	var doc lastOrderDoc
	err := m.lastOrders.FindOneAndDelete(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNoLastOrder
		}
		return 0, fmt.Errorf("failed to take last order: %w", err)
	}
	return doc.OrderID, nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	ttlSeconds := int32(m.ttl / time.Second)

	cartIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "merchant_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		},
	}
	if _, err := m.carts.Indexes().CreateMany(ctx, cartIndexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}

	lastOrderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		},
	}
	if _, err := m.lastOrders.Indexes().CreateMany(ctx, lastOrderIndexes); err != nil {
		return fmt.Errorf("failed to create last order indexes: %w", err)
	}

	return nil
}

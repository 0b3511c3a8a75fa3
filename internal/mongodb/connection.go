// Package mongodb implements the domain repositories on MongoDB.
//
// Collections: carts, orders, products, users. Documents carry their own
// bson-tagged types so the domain package stays free of driver concerns.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// Connect opens a pooled client and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
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

// Store bundles the repositories that share one database.
type Store struct {
	db       *mongo.Database
	Carts    *CartRepository
	Orders   *OrderRepository
	Products *ProductRepository
	Users    *UserRepository
}

// NewStore creates repositories over db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		Carts:    &CartRepository{collection: db.Collection("carts")},
		Orders:   &OrderRepository{collection: db.Collection("orders")},
		Products: &ProductRepository{collection: db.Collection("products")},
		Users:    &UserRepository{collection: db.Collection("users")},
	}
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// CreateIndexes creates the indexes the query patterns rely on.
func (s *Store) CreateIndexes(ctx context.Context) error {
	cartIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ecommerce_id", Value: 1}, {Key: "_id", Value: 1}}},
	}
	orderIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "ecommerce_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
	}

	if _, err := s.db.Collection("carts").Indexes().CreateMany(ctx, cartIndexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	if _, err := s.db.Collection("orders").Indexes().CreateMany(ctx, orderIndexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}

// objectID parses a hex id. Malformed ids cannot exist in the collection, so
// they are reported as not found rather than invalid.
func objectID(op, resource, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, domain.NotFound(op, resource, id)
	}
	return oid, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

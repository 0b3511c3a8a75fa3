// Package idempotency records client-supplied idempotency keys in Redis so a
// retried checkout does not create a second order and a second charge.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claimed key blocks replays.
const DefaultTTL = 24 * time.Hour

// Store claims keys with SETNX.
type Store struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewStore creates a key store. A non-positive ttl selects DefaultTTL.
func NewStore(rdb redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Key namespaces a client key by operation and ecommerce.
func (s *Store) Key(op, ecommerceID, clientKey string) string {
	return fmt.Sprintf("idem:%s:%s:%s", op, ecommerceID, clientKey)
}

// Claim records key and reports whether this caller is the first to do so.
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	return ok, nil
}

// Release forgets key so the client may retry after a failed attempt.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

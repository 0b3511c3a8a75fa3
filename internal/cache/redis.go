package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// DefaultTTL is the base lifetime of a cached cart.
const DefaultTTL = 15 * time.Minute

// InvalidationHold is how long Delete keeps a cart from being cached again.
// It must outlast a store read, so that a reader which loaded the cart before
// the invalidation cannot write its stale copy back afterwards.
const InvalidationHold = 30 * time.Second

// invalidated marks a key whose cart changed recently. It is never valid JSON.
const invalidated = "!invalidated"

// setUnlessInvalidated writes the cart only when the key is not held by a
// recent Delete. Returns 1 when written.
var setUnlessInvalidated = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// RedisCache implements CartCache on Redis. Entries expire after the base TTL
// plus up to four minutes of jitter so a burst of writes does not expire together.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

// NewRedisCache creates a cart cache. A non-positive ttl selects DefaultTTL.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

var _ CartCache = (*RedisCache)(nil)

// Get returns the cached cart or ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(ecommerceID, cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	if string(data) == invalidated {
		return nil, ErrCacheMiss
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Set caches a cart, including its populated products. A cart invalidated
// within the last InvalidationHold is silently left uncached.
func (r *RedisCache) Set(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	key := cacheKey(cart.EcommerceID, cart.ID)
	if err := setUnlessInvalidated.Run(ctx, r.client, []string{key}, data, invalidated, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete evicts a cart and holds the key for InvalidationHold, so reads that
// started before the change cannot repopulate it.
func (r *RedisCache) Delete(ctx context.Context, ecommerceID, cartID string) error {
	if err := r.client.Set(ctx, cacheKey(ecommerceID, cartID), invalidated, InvalidationHold).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(ecommerceID, cartID string) string {
	return fmt.Sprintf("cart:%s:%s", ecommerceID, cartID)
}

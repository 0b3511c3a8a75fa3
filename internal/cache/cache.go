// Package cache keeps populated carts in Redis so repeated cart reads skip
// the store and the product lookup.
package cache

import (
	"context"
	"errors"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// CartCache stores populated carts keyed by ecommerce and cart id.
type CartCache interface {
	Get(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, ecommerceID, cartID string) error
}

// ErrCacheMiss is returned by Get when the cart is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Noop is a CartCache that never stores anything. Used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, string, string) (*domain.Cart, error) { return nil, ErrCacheMiss }
func (Noop) Set(context.Context, *domain.Cart) error                    { return nil }
func (Noop) Delete(context.Context, string, string) error               { return nil }

// Package worker runs background reconciliation of pending orders.
package worker

import (
	"context"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// withEcommerceContext attaches the order's ecommerce to the context so logs
// and error reports from the reconciliation carry the storefront, the same as
// a request would.
func withEcommerceContext(ctx context.Context, order *domain.Order) context.Context {
	return domain.NewContextWithEcommerce(ctx, &domain.Ecommerce{ID: order.EcommerceID})
}

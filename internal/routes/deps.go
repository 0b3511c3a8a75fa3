package routes

import (
	"net/http"

	"github.com/dukerupert/cloudmerce/internal/handler/api"
	"github.com/dukerupert/cloudmerce/internal/middleware"
)

// APIDeps contains dependencies for the storefront API routes
type APIDeps struct {
	Cart   *api.CartHandler
	Order  *api.OrderHandler
	Health *api.HealthHandler

	// Metrics serves /metrics; nil leaves the route unregistered.
	Metrics http.Handler

	// CheckoutLimiter throttles order creation per storefront and client.
	// Nil disables throttling.
	CheckoutLimiter *middleware.RateLimiter
}

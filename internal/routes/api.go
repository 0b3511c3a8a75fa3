package routes

import (
	"net/http"

	"github.com/dukerupert/cloudmerce/internal/handler"
	"github.com/dukerupert/cloudmerce/internal/middleware"
	"github.com/dukerupert/cloudmerce/internal/router"
)

// RegisterAPIRoutes registers the storefront API. Every /api route carries
// the storefront in its {ecommerceId} wildcard; middleware.Ecommerce, which
// must be in the router's global chain, moves it into the request context.
//
// Routes that call the payment gateway get the longer GatewayTimeout.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	r.Get("/health", deps.Health.ServeHTTP)
	if deps.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Preflight requests; CORS in the global chain answers them.
	r.Handle(http.MethodOptions, "/api/{path...}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	store := r.Group(middleware.Timeout(middleware.DefaultTimeout))
	gateway := r.Group(middleware.Timeout(middleware.GatewayTimeout))

	// Carts
	store.Get("/api/{ecommerceId}/cart/{cartId}", deps.Cart.Get)
	store.Put("/api/{ecommerceId}/cart/items", deps.Cart.AddItem)
	store.Put("/api/{ecommerceId}/cart/items/quantity", deps.Cart.ChangeQuantity)
	store.Put("/api/{ecommerceId}/cart/{cartId}/user", deps.Cart.AssignUser)

	// Orders
	var checkout []router.Middleware
	if deps.CheckoutLimiter != nil {
		checkout = append(checkout, deps.CheckoutLimiter.Middleware)
	}
	gateway.Post("/api/{ecommerceId}/orders", deps.Order.Create, checkout...)
	gateway.Get("/api/{ecommerceId}/orders/{orderId}", deps.Order.Get)
	store.Get("/api/{ecommerceId}/orders", deps.Order.ListByUser)
	store.Put("/api/{ecommerceId}/orders/{orderId}/status", deps.Order.ChangeStatus)

	r.NotFound(handler.NotFoundResponse)
}

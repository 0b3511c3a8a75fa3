// Package domain provides core business types and context helpers for Cloudmerce.
//
// Every cart, order and user belongs to exactly one ecommerce (tenant). The
// context helpers carry that scope from the HTTP layer down to the services so
// lookups can never silently cross tenants.
package domain

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// ecommerceContextKey stores the tenant scope in context.
	ecommerceContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Ecommerce identifies the storefront a request is scoped to.
// Storefronts are provisioned by the whitelabel platform; this service only
// needs the identifier to partition data.
type Ecommerce struct {
	ID string
}

// --- Ecommerce Context Helpers ---

// NewContextWithEcommerce returns a new context with the ecommerce attached.
func NewContextWithEcommerce(ctx context.Context, ecommerce *Ecommerce) context.Context {
	return context.WithValue(ctx, ecommerceContextKey, ecommerce)
}

// EcommerceFromContext retrieves the ecommerce from context.
// Returns nil if no ecommerce is present.
func EcommerceFromContext(ctx context.Context) *Ecommerce {
	e, _ := ctx.Value(ecommerceContextKey).(*Ecommerce)
	return e
}

// EcommerceIDFromContext retrieves the ecommerce ID from context.
// Returns an empty string if no ecommerce is present.
func EcommerceIDFromContext(ctx context.Context) string {
	if e := EcommerceFromContext(ctx); e != nil {
		return e.ID
	}
	return ""
}

// RequireEcommerceID retrieves the ecommerce ID from context, panicking if not present.
// The panic is caught by the recovery middleware in HTTP handlers.
func RequireEcommerceID(ctx context.Context) string {
	id := EcommerceIDFromContext(ctx)
	if id == "" {
		panic("ecommerce_id required in context but not found")
	}
	return id
}

// HasEcommerce returns true if there is an ecommerce in context.
func HasEcommerce(ctx context.Context) bool {
	return EcommerceIDFromContext(ctx) != ""
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

package middleware

import (
	"net/http"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// EcommercePathValue is the route wildcard that names the storefront.
const EcommercePathValue = "ecommerceId"

const maxEcommerceIDLength = 64

// Ecommerce resolves the storefront from the {ecommerceId} path wildcard and
// stores it in the request context. Every cart and order lookup downstream is
// scoped by this value, so a request without a usable one stops here.
//
// Routes without the wildcard pass through untouched.
func Ecommerce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Pattern == "" {
			next.ServeHTTP(w, r)
			return
		}

		id := r.PathValue(EcommercePathValue)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !validEcommerceID(id) {
			respondBadRequest(w, r, "Invalid ecommerce id")
			return
		}

		ctx := domain.NewContextWithEcommerce(r.Context(), &domain.Ecommerce{ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validEcommerceID(id string) bool {
	if len(id) > maxEcommerceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

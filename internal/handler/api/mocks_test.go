package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/middleware"
	"github.com/dukerupert/cloudmerce/internal/service"
)

// mockCartService implements service.CartService for testing
type mockCartService struct {
	AddItemFunc        func(ctx context.Context, params service.AddItemParams) (*domain.Cart, error)
	ChangeQuantityFunc func(ctx context.Context, params service.ChangeQuantityParams) (*service.ChangeQuantityResult, error)
	GetCartFunc        func(ctx context.Context, ecommerceID, cartID string) (*service.CartResult, error)
	AssignUserFunc     func(ctx context.Context, ecommerceID, cartID, userID string) (*domain.Cart, error)

	calls int
}

func (m *mockCartService) AddItem(ctx context.Context, params service.AddItemParams) (*domain.Cart, error) {
	m.calls++
	return m.AddItemFunc(ctx, params)
}

func (m *mockCartService) ChangeQuantity(ctx context.Context, params service.ChangeQuantityParams) (*service.ChangeQuantityResult, error) {
	m.calls++
	return m.ChangeQuantityFunc(ctx, params)
}

func (m *mockCartService) GetCart(ctx context.Context, ecommerceID, cartID string) (*service.CartResult, error) {
	m.calls++
	return m.GetCartFunc(ctx, ecommerceID, cartID)
}

func (m *mockCartService) AssignUser(ctx context.Context, ecommerceID, cartID, userID string) (*domain.Cart, error) {
	m.calls++
	return m.AssignUserFunc(ctx, ecommerceID, cartID, userID)
}

// mockOrderService implements service.OrderService for testing
type mockOrderService struct {
	CreateOrderFunc       func(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error)
	GetOrderByIDFunc      func(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error)
	ChangeOrderStatusFunc func(ctx context.Context, ecommerceID, orderID string, status domain.OrderStatus) (*domain.Order, error)
	ListOrdersByUserFunc  func(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error)

	mu    sync.Mutex
	calls int
}

func (m *mockOrderService) count() {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
}

func (m *mockOrderService) CreateOrder(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error) {
	m.count()
	return m.CreateOrderFunc(ctx, params)
}

func (m *mockOrderService) GetOrderByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error) {
	m.count()
	return m.GetOrderByIDFunc(ctx, ecommerceID, orderID)
}

func (m *mockOrderService) ChangeOrderStatus(ctx context.Context, ecommerceID, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	m.count()
	return m.ChangeOrderStatusFunc(ctx, ecommerceID, orderID, status)
}

func (m *mockOrderService) ListOrdersByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error) {
	m.count()
	return m.ListOrdersByUserFunc(ctx, ecommerceID, userID)
}

func (m *mockOrderService) ListPending(ctx context.Context, limit int) ([]domain.Order, error) {
	return nil, errors.New("not used by handlers")
}

func (m *mockOrderService) Reconcile(ctx context.Context, order *domain.Order, source string) (*domain.Order, error) {
	return nil, errors.New("not used by handlers")
}

// memoryIdempotency is an in-memory idempotency store
type memoryIdempotency struct {
	mu       sync.Mutex
	claimed  map[string]bool
	released []string
	err      error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{claimed: map[string]bool{}}
}

func (m *memoryIdempotency) Key(op, ecommerceID, clientKey string) string {
	return op + ":" + ecommerceID + ":" + clientKey
}

func (m *memoryIdempotency) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[key] {
		return false, nil
	}
	m.claimed[key] = true
	return true, nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, key)
	m.released = append(m.released, key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMux registers the API routes the way routes.API does, behind the
// ecommerce middleware so handlers see the tenant in their context.
func newTestMux(carts service.CartService, orders service.OrderService, idem Idempotency) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Ecommerce(h))
	}

	if carts != nil {
		ch := NewCartHandler(carts, discardLogger())
		handle("GET /api/{ecommerceId}/cart/{cartId}", ch.Get)
		handle("PUT /api/{ecommerceId}/cart/items", ch.AddItem)
		handle("PUT /api/{ecommerceId}/cart/items/quantity", ch.ChangeQuantity)
		handle("PUT /api/{ecommerceId}/cart/{cartId}/user", ch.AssignUser)
	}
	if orders != nil {
		oh := NewOrderHandler(orders, idem, discardLogger())
		handle("POST /api/{ecommerceId}/orders", oh.Create)
		handle("GET /api/{ecommerceId}/orders", oh.ListByUser)
		handle("GET /api/{ecommerceId}/orders/{orderId}", oh.Get)
		handle("PUT /api/{ecommerceId}/orders/{orderId}/status", oh.ChangeStatus)
	}
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	require.Zero(t, len(headers)%2, "headers come in pairs")
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/handler"
	"github.com/dukerupert/cloudmerce/internal/service"
)

// IdempotencyKeyHeader lets a client retry checkout without paying twice.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// Idempotency claims checkout keys. *idempotency.Store implements it.
type Idempotency interface {
	Key(op, ecommerceID, clientKey string) string
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OrderHandler handles the order routes
type OrderHandler struct {
	orders      service.OrderService
	idempotency Idempotency
	logger      *slog.Logger
}

// NewOrderHandler creates a new order handler. A nil idempotency store
// disables Idempotency-Key handling.
func NewOrderHandler(orders service.OrderService, idempotency Idempotency, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		orders:      orders,
		idempotency: idempotency,
		logger:      logger,
	}
}

// OrderListResponse is the body of GET /api/{ecommerceId}/orders
type OrderListResponse struct {
	Orders []domain.Order `json:"orders"`
}

// Create handles POST /api/{ecommerceId}/orders
//
// With an Idempotency-Key header, a second request carrying the same key
// for the same ecommerce is rejected with 409 while the first one is in
// flight or after it succeeded. A failed checkout releases the key so the
// client can retry.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "order.create"
	ctx := r.Context()
	ecommerceID := domain.EcommerceIDFromContext(ctx)

	var req CreateOrderRequest
	if err := decodeRequest(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	key, err := h.claim(ctx, op, ecommerceID, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderParams{
		EcommerceID: ecommerceID,
		CartID:      req.CartID,
		UserID:      req.UserID,
		Payment: service.PaymentRequest{
			Method:      domain.PaymentMethod(req.Payment.Method),
			AmountCents: req.Payment.AmountCents,
			DueDate:     req.Payment.DueDate,
			Description: req.Payment.Description,
		},
	})
	if err != nil {
		h.release(key)
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusCreated, order)
}

// claim returns the claimed key, or "" when the request carries no key or
// the store is unavailable. A store outage does not block checkout.
func (h *OrderHandler) claim(ctx context.Context, op, ecommerceID, clientKey string) (string, error) {
	if h.idempotency == nil || clientKey == "" {
		return "", nil
	}
	if len(clientKey) > maxIdempotencyKeyLength {
		return "", domain.Invalid(op, "Idempotency-Key is too long")
	}

	key := h.idempotency.Key(op, ecommerceID, clientKey)
	claimed, err := h.idempotency.Claim(ctx, key)
	if err != nil {
		h.logger.Warn("idempotency claim failed, continuing without it",
			"ecommerce_id", ecommerceID,
			"error", err)
		return "", nil
	}
	if !claimed {
		return "", domain.ErrCheckoutReplayed.WithOp(op)
	}
	return key, nil
}

func (h *OrderHandler) release(key string) {
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.idempotency.Release(ctx, key); err != nil {
		h.logger.Warn("idempotency release failed", "key", key, "error", err)
	}
}

// Get handles GET /api/{ecommerceId}/orders/{orderId}. A pending order is
// reconciled with its gateway before it is returned.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, err := h.orders.GetOrderByID(ctx, domain.EcommerceIDFromContext(ctx), r.PathValue("orderId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, order)
}

// ListByUser handles GET /api/{ecommerceId}/orders?userId=
func (h *OrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	const op = "order.list_by_user"
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		handler.ValidationErrorResponse(w, r, domain.NewValidationError(op, "userId", "userId is required"))
		return
	}

	orders, err := h.orders.ListOrdersByUser(ctx, domain.EcommerceIDFromContext(ctx), userID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, OrderListResponse{Orders: orders})
}

// ChangeStatus handles PUT /api/{ecommerceId}/orders/{orderId}/status
func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	const op = "order.change_status"
	ctx := r.Context()

	var req ChangeStatusRequest
	if err := decodeRequest(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.ChangeOrderStatus(ctx, domain.EcommerceIDFromContext(ctx), r.PathValue("orderId"), domain.OrderStatus(req.Status))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, order)
}

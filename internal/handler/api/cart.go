package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/handler"
	"github.com/dukerupert/cloudmerce/internal/service"
)

// CartHandler handles the cart routes
type CartHandler struct {
	carts  service.CartService
	logger *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts service.CartService, logger *slog.Logger) *CartHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// CartResponse is the body of GET /api/{ecommerceId}/cart/{cartId}. A
// missing cart is a normal answer with found=false, not an error.
type CartResponse struct {
	Found bool         `json:"found"`
	Code  string       `json:"code,omitempty"`
	Cart  *domain.Cart `json:"cart,omitempty"`
}

// ChangeQuantityResponse carries either the updated cart or the marker for a
// cart that was deleted because its last item went away.
type ChangeQuantityResponse struct {
	Deleted bool         `json:"deleted"`
	Message string       `json:"message,omitempty"`
	Cart    *domain.Cart `json:"cart,omitempty"`
}

// Get handles GET /api/{ecommerceId}/cart/{cartId}
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := h.carts.GetCart(ctx, domain.EcommerceIDFromContext(ctx), r.PathValue("cartId"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, CartResponse{
		Found: res.Found,
		Code:  res.Code,
		Cart:  res.Cart,
	})
}

// AddItem handles PUT /api/{ecommerceId}/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "cart.add_item"
	ctx := r.Context()

	var req AddItemRequest
	if err := decodeRequest(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, service.AddItemParams{
		EcommerceID: domain.EcommerceIDFromContext(ctx),
		CartID:      req.CartID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		Fields:      toSelections(req.FieldValues),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

// ChangeQuantity handles PUT /api/{ecommerceId}/cart/items/quantity
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	const op = "cart.change_quantity"
	ctx := r.Context()

	var req ChangeQuantityRequest
	if err := decodeRequest(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	res, err := h.carts.ChangeQuantity(ctx, service.ChangeQuantityParams{
		EcommerceID: domain.EcommerceIDFromContext(ctx),
		CartID:      req.CartID,
		CartItemID:  req.CartItemID,
		ProductID:   req.ProductID,
		Quantity:    *req.Quantity,
		Fields:      toSelections(req.FieldValues),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, ChangeQuantityResponse{
		Deleted: res.Deleted,
		Message: res.Message,
		Cart:    res.Cart,
	})
}

// AssignUser handles PUT /api/{ecommerceId}/cart/{cartId}/user
func (h *CartHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	const op = "cart.assign_user"
	ctx := r.Context()

	var req AssignUserRequest
	if err := decodeRequest(r, op, &req); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	cart, err := h.carts.AssignUser(ctx, domain.EcommerceIDFromContext(ctx), r.PathValue("cartId"), req.UserID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

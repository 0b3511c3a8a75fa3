package domain

import (
	"context"
	"time"
)

// Order-related domain errors.
var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrInvalidOrderStatus   = &Error{Code: EINVALID, Message: "Invalid order status"}
	ErrMissingPaymentRef    = &Error{Code: EMISSING, Message: "Order has no payment gateway reference"}
	ErrInvalidPaymentMethod = &Error{Code: EINVALID, Message: "Unsupported payment method"}
	ErrCheckoutReplayed     = &Error{Code: ECONFLICT, Message: "Checkout with this idempotency key was already submitted"}
)

// =============================================================================
// ORDER STATUS
// =============================================================================

// OrderStatus is the fulfilment stage of an order.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusPaid        OrderStatus = "paid"
	OrderStatusProductSent OrderStatus = "product_sent"
	OrderStatusFinished    OrderStatus = "finished"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProductSent,
	OrderStatusFinished,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// =============================================================================
// PAYMENT DATA
// =============================================================================

// PaymentMethod selects the gateway flow used at checkout.
type PaymentMethod string

const (
	PaymentMethodPix  PaymentMethod = "pix"
	PaymentMethodCard PaymentMethod = "card"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodPix || m == PaymentMethodCard
}

// PaymentData is the gateway reference stored on an order.
// Only the branch matching Method is populated.
type PaymentData struct {
	Method            PaymentMethod `json:"method"`
	GatewayPaymentID  string        `json:"gatewayPaymentId"`
	GatewayCustomerID string        `json:"gatewayCustomerId"`
	AmountCents       int64         `json:"amountCents"`
	DueDate           string        `json:"dueDate,omitempty"`
	Pix               *PixData      `json:"pix,omitempty"`
	Card              *CardData     `json:"card,omitempty"`
}

// PixData carries what a customer needs to pay an instant bank transfer.
type PixData struct {
	QRCodeImage   string `json:"qrCodeImage"`
	CopyPasteCode string `json:"copyPasteCode"`
}

// CardData carries the client-side confirmation token of a card payment.
type CardData struct {
	ClientSecret string `json:"clientSecret"`
}

// =============================================================================
// ORDER
// =============================================================================

// Order is an immutable snapshot of a cart plus payment data.
// Items are copied verbatim from the cart at checkout; only Status changes afterwards.
type Order struct {
	ID          string      `json:"id"`
	EcommerceID string      `json:"ecommerceId"`
	UserID      string      `json:"userId"`
	Status      OrderStatus `json:"status"`
	Payment     PaymentData `json:"payment"`
	Items       []LineItem  `json:"items"`
	TotalCents  int64       `json:"totalCents"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// OrderRepository persists orders. Lookups by ID are scoped to an ecommerce.
type OrderRepository interface {
	// FindByID returns the order or a NotFound error.
	FindByID(ctx context.Context, ecommerceID, orderID string) (*Order, error)

	// FindByUser returns every order a user placed with an ecommerce, newest first.
	FindByUser(ctx context.Context, ecommerceID, userID string) ([]Order, error)

	// FindByStatus returns up to limit orders in the given status across all
	// tenants, oldest first. Used by the reconciliation sweep.
	FindByStatus(ctx context.Context, status OrderStatus, limit int) ([]Order, error)

	// Create stores a new order and assigns its ID.
	Create(ctx context.Context, order *Order) error

	// Update replaces a stored order. Returns NotFound if it no longer exists.
	Update(ctx context.Context, order *Order) error

	// UpdateStatusIf writes the order's status and UpdatedAt only while the
	// stored order is still in status from. It reports whether the write
	// happened; false means the order moved on or no longer exists.
	UpdateStatusIf(ctx context.Context, order *Order, from OrderStatus) (bool, error)
}

package service

import (
	"github.com/dukerupert/cloudmerce/internal/domain"
)

// Not found errors - use domain.ENOTFOUND
var (
	ErrCartNotFound     = &domain.Error{Code: domain.ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "Cart item not found"}
	ErrProductNotFound  = &domain.Error{Code: domain.ENOTFOUND, Message: "Product not found"}
	ErrUserNotFound     = &domain.Error{Code: domain.ENOTFOUND, Message: "User not found"}
	ErrOrderNotFound    = domain.ErrOrderNotFound
)

// Validation errors - use domain.EINVALID
var (
	ErrInvalidQuantity       = &domain.Error{Code: domain.EINVALID, Message: "Quantity must be at least 1"}
	ErrNegativeQuantity      = &domain.Error{Code: domain.EINVALID, Message: "Quantity must not be negative"}
	ErrProductRequired       = &domain.Error{Code: domain.EINVALID, Message: "Product ID is required"}
	ErrItemTargetRequired    = &domain.Error{Code: domain.EINVALID, Message: "Either cart item ID or product ID is required"}
	ErrInvalidFieldSelection = &domain.Error{Code: domain.EINVALID, Message: "Field selections must have a label"}
	ErrInvalidAmount         = &domain.Error{Code: domain.EINVALID, Message: "Payment amount must be greater than 0"}
	ErrInvalidOrderStatus    = domain.ErrInvalidOrderStatus
	ErrInvalidPaymentMethod  = domain.ErrInvalidPaymentMethod
)

// Checkout errors
var (
	ErrMissingPaymentRef = domain.ErrMissingPaymentRef
	ErrIncompletePayment = &domain.Error{Code: domain.EEXTERNAL, Message: "Payment gateway response is missing payment data"}
)

// Package api implements the JSON storefront API for carts and orders.
//
// Every route is scoped by the {ecommerceId} path wildcard, which the
// middleware.Ecommerce middleware has already placed in the request context.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into dst and validates it. Malformed JSON
// is an EINVALID error; failed validation is a domain.ValidationError keyed
// by JSON field path.
func decodeRequest(r *http.Request, op string, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required")
		case errors.As(err, &maxErr):
			return domain.Invalid(op, "Request body too large")
		default:
			return domain.WrapError(err, domain.EINVALID, op, "Request body is not valid JSON")
		}
	}

	return validateRequest(op, dst)
}

func validateRequest(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "request validation failed")
	}

	var out error
	for _, fe := range verrs {
		out = domain.AddFieldError(out, fieldPath(fe), fieldMessage(fe))
	}
	if ve, ok := out.(*domain.ValidationError); ok {
		ve.Op = op
	}
	return out
}

// fieldPath drops the top-level struct name: "AddItemRequest.fieldValues[0].value"
// becomes "fieldValues[0].value".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// FieldSelectionRequest is one chosen product option.
type FieldSelectionRequest struct {
	FieldLabel string `json:"fieldLabel" validate:"required"`
	Value      string `json:"value" validate:"required"`
}

func toSelections(in []FieldSelectionRequest) []domain.FieldSelection {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.FieldSelection, len(in))
	for i, f := range in {
		out[i] = domain.FieldSelection{FieldLabel: f.FieldLabel, Value: f.Value}
	}
	return out
}

// AddItemRequest is the body of PUT /api/{ecommerceId}/cart/items.
// An empty cartId starts a new cart.
type AddItemRequest struct {
	CartID      string                  `json:"cartId"`
	ProductID   string                  `json:"productId" validate:"required"`
	Quantity    int                     `json:"quantity" validate:"min=1"`
	FieldValues []FieldSelectionRequest `json:"fieldValues" validate:"omitempty,dive"`
}

// ChangeQuantityRequest is the body of PUT /api/{ecommerceId}/cart/items/quantity.
// The item is addressed by cartItemId, or by productId plus fieldValues.
// A quantity of zero removes the item.
type ChangeQuantityRequest struct {
	CartID      string                  `json:"cartId" validate:"required"`
	CartItemID  string                  `json:"cartItemId"`
	ProductID   string                  `json:"productId" validate:"required_without=CartItemID"`
	Quantity    *int                    `json:"quantity" validate:"required,min=0"`
	FieldValues []FieldSelectionRequest `json:"fieldValues" validate:"omitempty,dive"`
}

// AssignUserRequest is the body of PUT /api/{ecommerceId}/cart/{cartId}/user.
type AssignUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// PaymentRequest selects how an order is paid.
type PaymentRequest struct {
	Method      string `json:"method" validate:"required,oneof=pix card"`
	AmountCents int64  `json:"amountCents" validate:"gt=0"`
	DueDate     string `json:"dueDate" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description" validate:"max=500"`
}

// CreateOrderRequest is the body of POST /api/{ecommerceId}/orders.
type CreateOrderRequest struct {
	CartID  string         `json:"cartId" validate:"required"`
	UserID  string         `json:"userId" validate:"required"`
	Payment PaymentRequest `json:"payment"`
}

// ChangeStatusRequest is the body of PUT /api/{ecommerceId}/orders/{orderId}/status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

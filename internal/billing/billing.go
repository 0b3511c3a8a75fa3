// Package billing adapts external payment gateways to the checkout flow.
//
// Each Gateway handles a single payment method. The Registry picks the
// configured gateway for a method, and every gateway is wrapped by Guard so
// calls are bounded by a timeout and a circuit breaker.
package billing

import (
	"context"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// Gateway defines the interface for creating and checking payments.
// Implementations exist for Asaas (PIX) and Stripe (card).
type Gateway interface {
	// Name identifies the provider in logs and metrics (e.g. "asaas").
	Name() string

	// CreateCustomer registers the payer with the provider and returns the
	// provider's customer id.
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)

	// CreatePayment creates a charge for the customer. The amount is taken as
	// given; gateways never recompute it.
	CreatePayment(ctx context.Context, params PaymentParams) (*Payment, error)

	// GetPaymentStatus returns the normalized status of an existing payment.
	GetPaymentStatus(ctx context.Context, paymentID string) (Status, error)
}

// CustomerParams contains the payer identity sent to the gateway.
type CustomerParams struct {
	Name  string
	Email string
	TaxID string // CPF or CNPJ
	Phone string
}

// PaymentParams contains parameters for creating a payment.
type PaymentParams struct {
	Method      domain.PaymentMethod
	CustomerID  string
	AmountCents int64

	// DueDate is a YYYY-MM-DD date. Only PIX billings use it.
	DueDate string

	// Description appears on the customer's statement and in the provider dashboard.
	Description string

	// Metadata is attached to the payment where the provider supports it.
	Metadata map[string]string
}

// Payment is the provider's answer to CreatePayment.
// For PIX, QRCodeImage and CopyPasteCode are set; for card, ClientSecret is.
type Payment struct {
	ID            string
	Status        Status
	QRCodeImage   string
	CopyPasteCode string
	ClientSecret  string
}

// Status is a provider payment status normalized across gateways.
type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
	StatusOther   Status = "other"
)

// IsSettled reports whether the funds were received.
func (s Status) IsSettled() bool {
	return s == StatusSettled
}

// Validate checks that a created payment carries what the order needs for
// the given method.
func (p *Payment) Validate(method domain.PaymentMethod) error {
	if p == nil || p.ID == "" {
		return ErrIncompleteResponse
	}
	switch method {
	case domain.PaymentMethodPix:
		if p.CopyPasteCode == "" || p.QRCodeImage == "" {
			return ErrIncompleteResponse
		}
	case domain.PaymentMethodCard:
		if p.ClientSecret == "" {
			return ErrIncompleteResponse
		}
	}
	return nil
}

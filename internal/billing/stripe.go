package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/stripe/stripe-go/v82"
)

// StripeConfig contains configuration for the Stripe card gateway.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// Currency is the ISO 4217 code charged. Default: "brl"
	Currency string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("stripe: %w", ErrInvalidAPIKey)
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

// StripeGateway implements Gateway for card payments using PaymentIntents.
// The frontend confirms the intent with the returned client secret.
type StripeGateway struct {
	client   *stripe.Client
	currency string
}

// NewStripeGateway creates a card gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currency := cfg.Currency
	if currency == "" {
		currency = "brl"
	}

	return &StripeGateway{
		client:   stripe.NewClient(cfg.APIKey),
		currency: strings.ToLower(currency),
	}, nil
}

// Name implements Gateway.
func (s *StripeGateway) Name() string { return "stripe" }

// CreateCustomer creates a Stripe customer.
func (s *StripeGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	cp := &stripe.CustomerCreateParams{
		Name:  stripe.String(params.Name),
		Email: stripe.String(params.Email),
		Phone: stripe.String(params.Phone),
	}
	cp.Metadata = map[string]string{"tax_id": params.TaxID}

	c, err := s.client.V1Customers.Create(ctx, cp)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return c.ID, nil
}

// CreatePayment creates a card PaymentIntent for the customer.
func (s *StripeGateway) CreatePayment(ctx context.Context, params PaymentParams) (*Payment, error) {
	if params.Method != domain.PaymentMethodCard {
		return nil, fmt.Errorf("stripe: unsupported payment method %q", params.Method)
	}

	pp := &stripe.PaymentIntentCreateParams{
		Amount:             stripe.Int64(params.AmountCents),
		Currency:           stripe.String(s.currency),
		Customer:           stripe.String(params.CustomerID),
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	if params.Description != "" {
		pp.Description = stripe.String(params.Description)
	}
	if len(params.Metadata) > 0 {
		pp.Metadata = params.Metadata
	}

	pi, err := s.client.V1PaymentIntents.Create(ctx, pp)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &Payment{
		ID:           pi.ID,
		Status:       normalizeStripeStatus(pi.Status),
		ClientSecret: pi.ClientSecret,
	}, nil
}

// GetPaymentStatus retrieves a PaymentIntent and normalizes its status.
func (s *StripeGateway) GetPaymentStatus(ctx context.Context, paymentID string) (Status, error) {
	pi, err := s.client.V1PaymentIntents.Retrieve(ctx, paymentID, nil)
	if err != nil {
		return "", wrapStripeError(err)
	}
	return normalizeStripeStatus(pi.Status), nil
}

func normalizeStripeStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSettled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return StatusPending
	default:
		return StatusOther
	}
}

func wrapStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return &GatewayError{Provider: "stripe", Message: "request failed", Code: "api_connection_error", Err: err}
	}
	if serr.HTTPStatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}

	gerr := &GatewayError{
		Provider:   "stripe",
		Message:    serr.Msg,
		Code:       string(serr.Code),
		HTTPStatus: serr.HTTPStatusCode,
		RequestID:  serr.RequestID,
		Err:        err,
	}
	if serr.DeclineCode != "" {
		gerr.Code = "card_declined"
	}
	return gerr
}

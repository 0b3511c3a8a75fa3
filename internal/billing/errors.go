package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAPIKey is returned when a gateway API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrPaymentNotFound is returned when the provider has no such payment.
	ErrPaymentNotFound = errors.New("billing: payment not found")

	// ErrIncompleteResponse is returned when a provider answered successfully
	// but left out data the order needs (QR code, client secret, id).
	ErrIncompleteResponse = errors.New("billing: incomplete gateway response")

	// ErrNoGateway is returned when no gateway is configured for a payment method.
	ErrNoGateway = errors.New("billing: no gateway configured for payment method")

	// ErrUnavailable is returned when the circuit breaker rejects a call.
	ErrUnavailable = errors.New("billing: gateway temporarily unavailable")
)

// GatewayError wraps a provider API error with additional context.
type GatewayError struct {
	Provider   string // "asaas", "stripe"
	Message    string // Human-readable error message
	Code       string // Provider error code (e.g., "card_declined", "invalid_cpfCnpj")
	HTTPStatus int    // HTTP status code returned by the provider
	RequestID  string // Provider request ID for debugging
	Err        error  // Original error from the SDK or transport
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsDeclined returns true if the error is due to a card decline.
func (e *GatewayError) IsDeclined() bool {
	return e.Code == "card_declined"
}

// IsTemporary returns true if the error is likely transient and retryable.
func (e *GatewayError) IsTemporary() bool {
	return e.HTTPStatus == 429 || e.HTTPStatus >= 500 || e.Code == "rate_limit" || e.Code == "api_connection_error"
}

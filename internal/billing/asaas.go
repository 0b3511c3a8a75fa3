package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/shopspring/decimal"
)

// AsaasSandboxURL is the default API base used outside production.
const AsaasSandboxURL = "https://sandbox.asaas.com/api/v3"

// AsaasConfig contains configuration for the Asaas PIX gateway.
type AsaasConfig struct {
	// AccessToken is the Asaas API key, sent in the access_token header.
	AccessToken string

	// BaseURL defaults to AsaasSandboxURL.
	BaseURL string

	// HTTPClient is optional; a client with a 10s timeout is used otherwise.
	HTTPClient *http.Client
}

// Validate checks that required configuration is present.
func (c *AsaasConfig) Validate() error {
	if c.AccessToken == "" {
		return fmt.Errorf("asaas: %w", ErrInvalidAPIKey)
	}
	return nil
}

// AsaasGateway implements Gateway for PIX billings on Asaas.
type AsaasGateway struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	now         func() time.Time
}

type asaasCustomerRequest struct {
	Name        string `json:"name"`
	CpfCnpj     string `json:"cpfCnpj"`
	Email       string `json:"email,omitempty"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type asaasCustomerResponse struct {
	ID string `json:"id"`
}

type asaasPaymentRequest struct {
	Customer    string      `json:"customer"`
	BillingType string      `json:"billingType"`
	Value       json.Number `json:"value"`
	DueDate     string      `json:"dueDate"`
	Description string      `json:"description,omitempty"`
}

type asaasPaymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type asaasPixQRCode struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

type asaasErrorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// NewAsaasGateway creates a PIX gateway backed by the Asaas REST API.
func NewAsaasGateway(cfg AsaasConfig) (*AsaasGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = AsaasSandboxURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &AsaasGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
		now:         time.Now,
	}, nil
}

// Name implements Gateway.
func (a *AsaasGateway) Name() string { return "asaas" }

// CreateCustomer registers the payer on Asaas.
func (a *AsaasGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	payload := asaasCustomerRequest{
		Name:        params.Name,
		CpfCnpj:     params.TaxID,
		Email:       params.Email,
		MobilePhone: params.Phone,
	}

	var resp asaasCustomerResponse
	if err := a.do(ctx, http.MethodPost, "/customers", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", ErrIncompleteResponse
	}
	return resp.ID, nil
}

// CreatePayment creates a PIX billing and fetches its QR code.
func (a *AsaasGateway) CreatePayment(ctx context.Context, params PaymentParams) (*Payment, error) {
	if params.Method != domain.PaymentMethodPix {
		return nil, fmt.Errorf("asaas: unsupported payment method %q", params.Method)
	}

	dueDate := params.DueDate
	if dueDate == "" {
		dueDate = a.now().AddDate(0, 0, 1).Format("2006-01-02")
	}

	payload := asaasPaymentRequest{
		Customer:    params.CustomerID,
		BillingType: "PIX",
		Value:       json.Number(decimal.New(params.AmountCents, -2).StringFixed(2)),
		DueDate:     dueDate,
		Description: params.Description,
	}

	var created asaasPaymentResponse
	if err := a.do(ctx, http.MethodPost, "/payments", payload, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, ErrIncompleteResponse
	}

	var qr asaasPixQRCode
	if err := a.do(ctx, http.MethodGet, "/payments/"+created.ID+"/pixQrCode", nil, &qr); err != nil {
		return nil, err
	}

	return &Payment{
		ID:            created.ID,
		Status:        normalizeAsaasStatus(created.Status),
		QRCodeImage:   qr.EncodedImage,
		CopyPasteCode: qr.Payload,
	}, nil
}

// GetPaymentStatus fetches the billing and normalizes its status.
func (a *AsaasGateway) GetPaymentStatus(ctx context.Context, paymentID string) (Status, error) {
	var resp asaasPaymentResponse
	if err := a.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &resp); err != nil {
		return "", err
	}
	return normalizeAsaasStatus(resp.Status), nil
}

func (a *AsaasGateway) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("asaas: failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("asaas: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", a.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Provider: "asaas", Message: "request failed", Code: "api_connection_error", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("asaas: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrPaymentNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAsaasError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("asaas: failed to parse response: %w", err)
	}
	return nil
}

func parseAsaasError(status int, body []byte) error {
	gerr := &GatewayError{
		Provider:   "asaas",
		HTTPStatus: status,
		Message:    fmt.Sprintf("API error (status %d)", status),
	}
	if status == http.StatusUnauthorized {
		gerr.Err = ErrInvalidAPIKey
	}

	var parsed asaasErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		gerr.Code = parsed.Errors[0].Code
		gerr.Message = parsed.Errors[0].Description
	} else if len(body) > 0 && gerr.Err == nil {
		gerr.Err = errors.New(string(body))
	}
	return gerr
}

// normalizeAsaasStatus maps Asaas billing statuses.
// RECEIVED and CONFIRMED mean the PIX was paid; RECEIVED_IN_CASH is a manual settlement.
func normalizeAsaasStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return StatusPending
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return StatusSettled
	default:
		return StatusOther
	}
}

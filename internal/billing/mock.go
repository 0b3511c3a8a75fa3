package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/google/uuid"
)

// MockGateway is a mock payment gateway for development and tests.
// Simulates successful PIX and card flows without calling a provider.
type MockGateway struct {
	// CreateCustomerFunc allows customizing customer creation behavior
	CreateCustomerFunc func(ctx context.Context, params CustomerParams) (string, error)

	// CreatePaymentFunc allows customizing payment creation behavior
	CreatePaymentFunc func(ctx context.Context, params PaymentParams) (*Payment, error)

	// GetPaymentStatusFunc allows customizing status lookups
	GetPaymentStatusFunc func(ctx context.Context, paymentID string) (Status, error)

	mu sync.Mutex

	// Payments stores created payments keyed by ID
	Payments map[string]*Payment

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Payments: make(map[string]*Payment),
		CallLog:  []string{},
	}
}

// Name implements Gateway.
func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

// Calls returns a copy of the call log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// CreateCustomer returns a generated customer id.
func (m *MockGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	m.record(fmt.Sprintf("CreateCustomer(%s)", params.Email))

	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params)
	}
	return "cus_" + uuid.NewString(), nil
}

// CreatePayment creates a pending mock payment for the method.
func (m *MockGateway) CreatePayment(ctx context.Context, params PaymentParams) (*Payment, error) {
	m.record(fmt.Sprintf("CreatePayment(%s, %d)", params.Method, params.AmountCents))

	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, params)
	}

	p := &Payment{
		ID:     "pay_" + uuid.NewString(),
		Status: StatusPending,
	}
	switch params.Method {
	case domain.PaymentMethodPix:
		p.QRCodeImage = "iVBORw0KGgo="
		p.CopyPasteCode = "00020101021226mock" + p.ID
	case domain.PaymentMethodCard:
		p.ClientSecret = p.ID + "_secret_" + uuid.NewString()
	}

	m.mu.Lock()
	m.Payments[p.ID] = p
	m.mu.Unlock()
	return p, nil
}

// GetPaymentStatus returns the stored status of a mock payment.
func (m *MockGateway) GetPaymentStatus(ctx context.Context, paymentID string) (Status, error) {
	m.record(fmt.Sprintf("GetPaymentStatus(%s)", paymentID))

	if m.GetPaymentStatusFunc != nil {
		return m.GetPaymentStatusFunc(ctx, paymentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[paymentID]
	if !ok {
		return "", ErrPaymentNotFound
	}
	return p.Status, nil
}

// SimulateSettled marks a mock payment as paid.
func (m *MockGateway) SimulateSettled(paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = StatusSettled
	return nil
}

package billing

import (
	"fmt"
	"sync"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// Provider names accepted in RegistryConfig.
const (
	ProviderAsaas  = "asaas"
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

// RegistryConfig selects which provider serves each payment method.
type RegistryConfig struct {
	PixProvider  string // "asaas" or "mock"
	CardProvider string // "stripe" or "mock"

	Asaas  AsaasConfig
	Stripe StripeConfig
	Guard  GuardConfig
}

// Registry maps payment methods to gateways.
// Gateways are registered at startup and read concurrently by request handlers.
type Registry struct {
	mu       sync.RWMutex
	gateways map[domain.PaymentMethod]Gateway
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[domain.PaymentMethod]Gateway)}
}

// NewRegistryFromConfig builds the configured gateways and wraps each in a Guard.
// A method whose provider is empty is left unregistered.
func NewRegistryFromConfig(cfg RegistryConfig) (*Registry, error) {
	r := NewRegistry()

	// One mock instance serves both methods so tests can settle payments through it.
	var mock *MockGateway
	mockGateway := func() *MockGateway {
		if mock == nil {
			mock = NewMockGateway()
		}
		return mock
	}

	switch cfg.PixProvider {
	case "":
	case ProviderAsaas:
		gw, err := NewAsaasGateway(cfg.Asaas)
		if err != nil {
			return nil, err
		}
		r.Register(domain.PaymentMethodPix, Guard(gw, cfg.Guard))
	case ProviderMock:
		r.Register(domain.PaymentMethodPix, Guard(mockGateway(), cfg.Guard))
	default:
		return nil, fmt.Errorf("billing: unknown pix provider %q", cfg.PixProvider)
	}

	switch cfg.CardProvider {
	case "":
	case ProviderStripe:
		gw, err := NewStripeGateway(cfg.Stripe)
		if err != nil {
			return nil, err
		}
		r.Register(domain.PaymentMethodCard, Guard(gw, cfg.Guard))
	case ProviderMock:
		r.Register(domain.PaymentMethodCard, Guard(mockGateway(), cfg.Guard))
	default:
		return nil, fmt.Errorf("billing: unknown card provider %q", cfg.CardProvider)
	}

	return r, nil
}

// Register sets the gateway for a method, replacing any previous one.
func (r *Registry) Register(method domain.PaymentMethod, gw Gateway) {
	r.mu.Lock()
	r.gateways[method] = gw
	r.mu.Unlock()
}

// For returns the gateway for a payment method.
func (r *Registry) For(method domain.PaymentMethod) (Gateway, error) {
	r.mu.RLock()
	gw, ok := r.gateways[method]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGateway, method)
	}
	return gw, nil
}

// Methods lists the methods that have a gateway.
func (r *Registry) Methods() []domain.PaymentMethod {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]domain.PaymentMethod, 0, len(r.gateways))
	for _, m := range []domain.PaymentMethod{domain.PaymentMethodPix, domain.PaymentMethodCard} {
		if _, ok := r.gateways[m]; ok {
			methods = append(methods, m)
		}
	}
	return methods
}

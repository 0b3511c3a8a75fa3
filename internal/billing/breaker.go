package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// DefaultCallTimeout bounds every gateway call when GuardConfig.Timeout is zero.
const DefaultCallTimeout = 5 * time.Second

// GuardConfig configures the timeout and circuit breaker around a gateway.
type GuardConfig struct {
	// Timeout bounds a single provider call. Default: DefaultCallTimeout
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5
	FailureThreshold uint32

	// OpenDuration is how long the breaker stays open before probing. Default: 30s
	OpenDuration time.Duration

	// Observe is called after every provider call with its duration and result.
	Observe func(gateway, op string, took time.Duration, err error)

	Logger *slog.Logger
}

// GuardedGateway decorates a Gateway with a per-call timeout and a circuit breaker.
type GuardedGateway struct {
	next    Gateway
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
	observe func(gateway, op string, took time.Duration, err error)
}

// Guard wraps next so that slow or failing providers fail fast.
func Guard(next Gateway, cfg GuardConfig) *GuardedGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A missing payment or a rejected request is an answer, not a
		// provider outage. The breaker is shared by every storefront.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPaymentNotFound) || isRequestRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment gateway breaker state changed",
				"gateway", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &GuardedGateway{
		next:    next,
		timeout: cfg.Timeout,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
		observe: cfg.Observe,
	}
}

// Name implements Gateway.
func (g *GuardedGateway) Name() string { return g.next.Name() }

// State exposes the breaker state for health reporting.
func (g *GuardedGateway) State() string { return g.cb.State().String() }

// CreateCustomer implements Gateway.
func (g *GuardedGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	res, err := g.call(ctx, "create_customer", func(ctx context.Context) (any, error) {
		return g.next.CreateCustomer(ctx, params)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// CreatePayment implements Gateway.
func (g *GuardedGateway) CreatePayment(ctx context.Context, params PaymentParams) (*Payment, error) {
	res, err := g.call(ctx, "create_payment", func(ctx context.Context) (any, error) {
		return g.next.CreatePayment(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Payment), nil
}

// GetPaymentStatus implements Gateway.
func (g *GuardedGateway) GetPaymentStatus(ctx context.Context, paymentID string) (Status, error) {
	res, err := g.call(ctx, "get_payment_status", func(ctx context.Context) (any, error) {
		return g.next.GetPaymentStatus(ctx, paymentID)
	})
	if err != nil {
		return "", err
	}
	return res.(Status), nil
}

func (g *GuardedGateway) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	start := time.Now()

	res, err := g.cb.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = errors.Join(ErrUnavailable, err)
	}

	if g.observe != nil {
		g.observe(g.next.Name(), op, time.Since(start), err)
	}
	return res, err
}

// isRequestRejection reports whether the provider refused the request itself
// (bad tax id, declined card) rather than failing to serve it.
func isRequestRejection(err error) bool {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.HTTPStatus >= 400 && gwErr.HTTPStatus < 500 && !gwErr.IsTemporary()
}

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for cart and order activity.
// All metrics include an ecommerce_id label so dashboards can split per storefront.
type BusinessMetrics struct {
	// Cart
	CartCreated  *prometheus.CounterVec
	CartUpdated  *prometheus.CounterVec
	CartDeleted  *prometheus.CounterVec
	CartItemsAdd *prometheus.CounterVec

	// Orders
	OrdersCreated     *prometheus.CounterVec
	OrderValue        *prometheus.HistogramVec
	OrderItemCount    *prometheus.HistogramVec
	OrderStatusChange *prometheus.CounterVec
	CheckoutFailed    *prometheus.CounterVec

	// Payments
	PaymentsSettled *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec

	// Gateway performance
	GatewayLatency *prometheus.HistogramVec
	GatewayErrors  *prometheus.CounterVec
}

// NewBusinessMetrics creates the business metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "cloudmerce"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	subsystem := "business"

	return &BusinessMetrics{
		// =======================================================================
		// Cart
		// =======================================================================
		CartCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_created_total",
				Help:      "Total carts created",
			},
			[]string{"ecommerce_id"},
		),
		CartUpdated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_updated_total",
				Help:      "Total cart update operations",
			},
			[]string{"ecommerce_id", "action"}, // action: add, remove, set_quantity, assign_user
		),
		CartDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_deleted_total",
				Help:      "Total carts deleted",
			},
			[]string{"ecommerce_id", "reason"}, // reason: emptied, checkout
		),
		CartItemsAdd: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_items_added_total",
				Help:      "Total items added to carts (quantity-aware)",
			},
			[]string{"ecommerce_id"},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Total orders created",
			},
			[]string{"ecommerce_id", "payment_method"},
		),
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_cents",
				Help:      "Order value distribution in cents",
				Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 15000, 25000, 50000, 100000},
			},
			[]string{"ecommerce_id", "payment_method"},
		),
		OrderItemCount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_item_count",
				Help:      "Number of line items per order",
				Buckets:   []float64{1, 2, 3, 5, 10, 15, 20},
			},
			[]string{"ecommerce_id"},
		),
		OrderStatusChange: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_status_changes_total",
				Help:      "Total order status changes by target status",
			},
			[]string{"ecommerce_id", "status"},
		),
		CheckoutFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Total checkouts that did not produce an order",
			},
			[]string{"ecommerce_id", "reason"}, // reason: error code
		),

		// =======================================================================
		// Payments
		// =======================================================================
		PaymentsSettled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payments_settled_total",
				Help:      "Total pending orders moved to paid after gateway confirmation",
			},
			[]string{"ecommerce_id", "payment_method"},
		),
		Reconciliations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reconciliations_total",
				Help:      "Total pending order checks against the gateway",
			},
			[]string{"source", "result"}, // source: request, sweep; result: settled, pending, error
		),

		// =======================================================================
		// Gateway Performance
		// =======================================================================
		GatewayLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_duration_seconds",
				Help:      "Payment gateway call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"gateway", "operation"},
		),
		GatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "gateway_api_errors_total",
				Help:      "Payment gateway call failures",
			},
			[]string{"gateway", "operation"},
		),
	}
}

// ObserveGateway records one gateway call. Its signature matches
// billing.GuardConfig.Observe.
func (m *BusinessMetrics) ObserveGateway(gateway, op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(gateway, op).Observe(took.Seconds())
	if err != nil {
		m.GatewayErrors.WithLabelValues(gateway, op).Inc()
	}
}

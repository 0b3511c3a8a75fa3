package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/cloudmerce/internal/billing"
	"github.com/dukerupert/cloudmerce/internal/cache"
	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/events"
	"github.com/dukerupert/cloudmerce/internal/telemetry"
)

// Reconciliation sources, used as a metric label.
const (
	SourceRequest = "request"
	SourceSweep   = "sweep"
)

// OrderService provides business logic for checkout and order lifecycle
type OrderService interface {
	// CreateOrder turns a cart into a pending order backed by a gateway payment.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error)

	// GetOrderByID returns an order, first asking the gateway whether a
	// pending payment has settled.
	GetOrderByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error)

	// ChangeOrderStatus sets any known status on an order.
	ChangeOrderStatus(ctx context.Context, ecommerceID, orderID string, status domain.OrderStatus) (*domain.Order, error)

	// ListOrdersByUser returns a user's orders with an ecommerce, newest first.
	ListOrdersByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error)

	// ListPending returns up to limit pending orders across all ecommerces.
	ListPending(ctx context.Context, limit int) ([]domain.Order, error)

	// Reconcile checks one pending order against its gateway.
	Reconcile(ctx context.Context, order *domain.Order, source string) (*domain.Order, error)
}

// PaymentRequest is the caller's choice of payment. AmountCents is charged
// as given and is not recomputed from the cart.
type PaymentRequest struct {
	Method      domain.PaymentMethod
	AmountCents int64
	DueDate     string
	Description string
}

// CreateOrderParams contains parameters for checking out a cart.
type CreateOrderParams struct {
	EcommerceID string
	CartID      string
	UserID      string
	Payment     PaymentRequest
}

// GatewayResolver returns the gateway that serves a payment method.
// *billing.Registry implements it.
type GatewayResolver interface {
	For(method domain.PaymentMethod) (billing.Gateway, error)
}

// OrderServiceConfig holds the collaborators of the order service.
type OrderServiceConfig struct {
	Orders   domain.OrderRepository
	Carts    domain.CartRepository
	Products domain.ProductRepository
	Users    domain.UserRepository
	Gateways GatewayResolver

	// Cache is the cart cache to invalidate when checkout consumes a cart.
	Cache cache.CartCache

	// Events is optional; nil discards events.
	Events events.Publisher

	// Metrics is optional.
	Metrics *telemetry.BusinessMetrics

	Logger *slog.Logger
}

type orderService struct {
	orders   domain.OrderRepository
	carts    domain.CartRepository
	products domain.ProductRepository
	users    domain.UserRepository
	gateways GatewayResolver
	cache    cache.CartCache
	events   events.Publisher
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderService instance
func NewOrderService(cfg OrderServiceConfig) (OrderService, error) {
	if cfg.Orders == nil || cfg.Carts == nil || cfg.Products == nil || cfg.Users == nil {
		return nil, errors.New("order service: orders, carts, products and users repositories are required")
	}
	if cfg.Gateways == nil {
		return nil, errors.New("order service: gateway resolver is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.Events == nil {
		cfg.Events = events.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &orderService{
		orders:   cfg.Orders,
		carts:    cfg.Carts,
		products: cfg.Products,
		users:    cfg.Users,
		gateways: cfg.Gateways,
		cache:    cfg.Cache,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder runs checkout in a fixed order: load cart, load and check the
// user, register the customer and payment with the gateway, then persist the
// order and delete the cart. A failure before the order is persisted leaves
// cart and order untouched.
func (s *orderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	order, err := s.createOrder(ctx, op, params)
	if err != nil {
		if s.metrics != nil && params.EcommerceID != "" {
			s.metrics.CheckoutFailed.WithLabelValues(params.EcommerceID, domain.ErrorCode(err)).Inc()
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) createOrder(ctx context.Context, op string, params CreateOrderParams) (*domain.Order, error) {
	if params.EcommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}
	if !params.Payment.Method.Valid() {
		return nil, ErrInvalidPaymentMethod.WithOp(op)
	}
	if params.Payment.AmountCents <= 0 {
		return nil, ErrInvalidAmount.WithOp(op)
	}
	if params.UserID == "" {
		return nil, domain.Invalid(op, "user ID is required")
	}

	// 1. Cart, with products resolved for the snapshot.
	if params.CartID == "" {
		return nil, ErrCartNotFound.WithOp(op)
	}
	cart, err := s.carts.FindByID(ctx, params.EcommerceID, params.CartID)
	if err != nil {
		return nil, notFoundAs(err, ErrCartNotFound, op, "failed to load cart")
	}
	if err := domain.PopulateItems(ctx, s.products, cart.Items); err != nil {
		return nil, domain.Internal(err, op, "failed to load cart products")
	}

	// 2. User with every field the gateway requires.
	user, err := s.users.FindByID(ctx, params.UserID)
	if err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, op, "failed to load user")
	}
	if missing := user.MissingBillingFields(); len(missing) > 0 {
		return nil, domain.Missing(op, "user is missing required billing fields: "+strings.Join(missing, ", "))
	}

	// 3. Gateway customer and payment.
	gw, err := s.gateways.For(params.Payment.Method)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINVALID, op, "payment method is not available")
	}

	customerID, err := gw.CreateCustomer(ctx, billing.CustomerParams{
		Name:  user.Name,
		Email: user.Email,
		TaxID: user.TaxID,
		Phone: user.Phone,
	})
	if err != nil {
		return nil, gatewayError(err, op, "payment gateway rejected customer")
	}

	payment, err := gw.CreatePayment(ctx, billing.PaymentParams{
		Method:      params.Payment.Method,
		CustomerID:  customerID,
		AmountCents: params.Payment.AmountCents,
		DueDate:     params.Payment.DueDate,
		Description: params.Payment.Description,
		Metadata: map[string]string{
			"ecommerce_id": params.EcommerceID,
			"cart_id":      cart.ID,
			"user_id":      user.ID,
		},
	})
	if err != nil {
		return nil, gatewayError(err, op, "payment gateway rejected payment")
	}

	// 4. The response must carry what the customer needs to pay.
	if err := payment.Validate(params.Payment.Method); err != nil {
		return nil, &domain.Error{Code: ErrIncompletePayment.Code, Message: ErrIncompletePayment.Message, Op: op, Err: err}
	}

	// 5. Snapshot. Items carry their products so the order outlives catalog edits.
	now := s.now()
	order := &domain.Order{
		EcommerceID: params.EcommerceID,
		UserID:      user.ID,
		Status:      domain.OrderStatusPending,
		Payment:     paymentData(params.Payment, customerID, payment),
		Items:       append([]domain.LineItem(nil), cart.Items...),
		TotalCents:  params.Payment.AmountCents,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// 6. Persist, then consume the cart. A cart left behind stays checkout-able.
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, domain.Internal(err, op, "failed to save order")
	}

	if err := s.carts.Delete(ctx, cart.EcommerceID, cart.ID); err != nil {
		s.logger.Error("failed to delete cart after checkout",
			"ecommerce_id", cart.EcommerceID,
			"cart_id", cart.ID,
			"order_id", order.ID,
			"error", err)
	} else if s.metrics != nil {
		s.metrics.CartDeleted.WithLabelValues(cart.EcommerceID, "checkout").Inc()
	}
	s.invalidateCart(cart.EcommerceID, cart.ID)

	if s.metrics != nil {
		method := string(order.Payment.Method)
		s.metrics.OrdersCreated.WithLabelValues(order.EcommerceID, method).Inc()
		s.metrics.OrderValue.WithLabelValues(order.EcommerceID, method).Observe(float64(order.TotalCents))
		s.metrics.OrderItemCount.WithLabelValues(order.EcommerceID).Observe(float64(len(order.Items)))
	}

	s.logger.Info("order created",
		"ecommerce_id", order.EcommerceID,
		"order_id", order.ID,
		"payment_method", order.Payment.Method,
		"total_cents", order.TotalCents)

	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

// GetOrderByID loads an order and reconciles it if it is still pending.
func (s *orderService) GetOrderByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error) {
	const op = "order.get"

	if ecommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}

	order, err := s.loadOrder(ctx, op, ecommerceID, orderID)
	if err != nil {
		return nil, err
	}

	return s.reconcile(ctx, op, order, SourceRequest)
}

// Reconcile implements OrderService.
func (s *orderService) Reconcile(ctx context.Context, order *domain.Order, source string) (*domain.Order, error) {
	return s.reconcile(ctx, "order.reconcile", order, source)
}

// reconcile moves a pending order to paid once its gateway reports the
// payment settled. Orders in any other status are returned unchanged
// without a gateway call.
func (s *orderService) reconcile(ctx context.Context, op string, order *domain.Order, source string) (*domain.Order, error) {
	if order.Status != domain.OrderStatusPending {
		return order, nil
	}
	if order.Payment.GatewayPaymentID == "" {
		return nil, ErrMissingPaymentRef.WithOp(op)
	}

	// Orders written before card support carry no method.
	method := order.Payment.Method
	if method == "" {
		method = domain.PaymentMethodPix
	}

	gw, err := s.gateways.For(method)
	if err != nil {
		return nil, domain.Internal(err, op, "no gateway configured for order payment")
	}

	status, err := gw.GetPaymentStatus(ctx, order.Payment.GatewayPaymentID)
	if err != nil {
		s.recordReconcile(source, "error")
		return nil, gatewayError(err, op, "failed to check payment status")
	}

	if !status.IsSettled() {
		s.recordReconcile(source, "pending")
		return order, nil
	}

	// Only a still-pending order becomes paid. A status set while the gateway
	// was being asked wins.
	paid := *order
	paid.Status = domain.OrderStatusPaid
	paid.UpdatedAt = s.now()
	written, err := s.orders.UpdateStatusIf(ctx, &paid, domain.OrderStatusPending)
	if err != nil {
		s.recordReconcile(source, "error")
		return nil, domain.Internal(err, op, "failed to save order")
	}
	if !written {
		s.recordReconcile(source, "superseded")
		s.logger.Info("order changed during reconciliation",
			"ecommerce_id", order.EcommerceID,
			"order_id", order.ID,
			"source", source)
		return s.loadOrder(ctx, op, order.EcommerceID, order.ID)
	}
	order = &paid

	s.recordReconcile(source, "settled")
	if s.metrics != nil {
		s.metrics.PaymentsSettled.WithLabelValues(order.EcommerceID, string(method)).Inc()
		s.metrics.OrderStatusChange.WithLabelValues(order.EcommerceID, string(order.Status)).Inc()
	}

	s.logger.Info("order payment settled",
		"ecommerce_id", order.EcommerceID,
		"order_id", order.ID,
		"source", source)

	s.publish(ctx, events.OrderPaid, order)
	return order, nil
}

// ChangeOrderStatus sets the order's status. Any known status may follow any
// other; only membership in the status set is checked.
func (s *orderService) ChangeOrderStatus(ctx context.Context, ecommerceID, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	const op = "order.change_status"

	if !status.Valid() {
		return nil, ErrInvalidOrderStatus.WithOp(op)
	}
	if ecommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}

	order, err := s.loadOrder(ctx, op, ecommerceID, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = status
	order.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, notFoundAs(err, ErrOrderNotFound, op, "failed to save order")
	}

	if s.metrics != nil {
		s.metrics.OrderStatusChange.WithLabelValues(order.EcommerceID, string(status)).Inc()
	}

	s.logger.Info("order status changed",
		"ecommerce_id", order.EcommerceID,
		"order_id", order.ID,
		"from", previous,
		"to", status)

	s.publish(ctx, events.OrderStatusChanged, order)
	return order, nil
}

// ListOrdersByUser implements OrderService.
func (s *orderService) ListOrdersByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error) {
	const op = "order.list_by_user"

	if ecommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}
	if userID == "" {
		return nil, domain.Invalid(op, "user ID is required")
	}

	orders, err := s.orders.FindByUser(ctx, ecommerceID, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// ListPending implements OrderService.
func (s *orderService) ListPending(ctx context.Context, limit int) ([]domain.Order, error) {
	orders, err := s.orders.FindByStatus(ctx, domain.OrderStatusPending, limit)
	if err != nil {
		return nil, domain.Internal(err, "order.list_pending", "failed to list pending orders")
	}
	return orders, nil
}

func (s *orderService) loadOrder(ctx context.Context, op, ecommerceID, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, ErrOrderNotFound.WithOp(op)
	}
	order, err := s.orders.FindByID(ctx, ecommerceID, orderID)
	if err != nil {
		return nil, notFoundAs(err, ErrOrderNotFound, op, "failed to load order")
	}
	return order, nil
}

func (s *orderService) publish(ctx context.Context, eventType string, order *domain.Order) {
	if err := s.events.Publish(ctx, events.NewOrderEvent(eventType, order, s.now())); err != nil {
		s.logger.Warn("failed to publish order event",
			"event", eventType,
			"order_id", order.ID,
			"error", err)
	}
}

func (s *orderService) recordReconcile(source, result string) {
	if s.metrics != nil {
		s.metrics.Reconciliations.WithLabelValues(source, result).Inc()
	}
}

func (s *orderService) invalidateCart(ecommerceID, cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ecommerceID, cartID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "cart_id", cartID, "error", err)
	}
}

// paymentData fills the branch of PaymentData that matches the method.
func paymentData(req PaymentRequest, customerID string, p *billing.Payment) domain.PaymentData {
	data := domain.PaymentData{
		Method:            req.Method,
		GatewayPaymentID:  p.ID,
		GatewayCustomerID: customerID,
		AmountCents:       req.AmountCents,
		DueDate:           req.DueDate,
	}
	switch req.Method {
	case domain.PaymentMethodPix:
		data.Pix = &domain.PixData{
			QRCodeImage:   p.QRCodeImage,
			CopyPasteCode: p.CopyPasteCode,
		}
	case domain.PaymentMethodCard:
		data.Card = &domain.CardData{ClientSecret: p.ClientSecret}
	}
	return data
}

// gatewayError wraps a gateway failure as an external service error so
// callers never see provider-specific error shapes.
func gatewayError(err error, op, message string) error {
	switch {
	case errors.Is(err, billing.ErrUnavailable):
		message = "payment gateway temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		message = "payment gateway timed out"
	}

	var gwErr *billing.GatewayError
	if errors.As(err, &gwErr) && gwErr.IsDeclined() {
		message = fmt.Sprintf("%s: %s", message, gwErr.Message)
	}
	return domain.External(err, op, message)
}

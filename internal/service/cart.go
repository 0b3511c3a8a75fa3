package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/cloudmerce/internal/cache"
	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/telemetry"
)

// CodeCartNotFound is reported by GetCart when the cart does not exist.
const CodeCartNotFound = "cart_not_found"

// CartService provides business logic for shopping cart operations
type CartService interface {
	AddItem(ctx context.Context, params AddItemParams) (*domain.Cart, error)
	ChangeQuantity(ctx context.Context, params ChangeQuantityParams) (*ChangeQuantityResult, error)
	GetCart(ctx context.Context, ecommerceID, cartID string) (*CartResult, error)
	AssignUser(ctx context.Context, ecommerceID, cartID, userID string) (*domain.Cart, error)
}

// AddItemParams contains parameters for adding a product to a cart.
// An empty CartID starts a new cart for the ecommerce.
type AddItemParams struct {
	EcommerceID string
	CartID      string
	ProductID   string
	Quantity    int
	Fields      []domain.FieldSelection
}

// ChangeQuantityParams addresses a line item either by CartItemID or by
// ProductID plus Fields. CartItemID wins when both are set.
type ChangeQuantityParams struct {
	EcommerceID string
	CartID      string
	CartItemID  string
	ProductID   string
	Quantity    int
	Fields      []domain.FieldSelection
}

// ChangeQuantityResult is either the updated cart or a deleted-cart marker.
type ChangeQuantityResult struct {
	Cart    *domain.Cart
	Deleted bool
	Message string
}

// CartResult reports a missing cart as a value rather than an error.
type CartResult struct {
	Cart  *domain.Cart
	Found bool
	Code  string
}

// CartServiceConfig holds the collaborators of the cart service.
type CartServiceConfig struct {
	Carts    domain.CartRepository
	Products domain.ProductRepository
	Users    domain.UserRepository

	// Cache is optional; nil disables read caching.
	Cache cache.CartCache

	// Metrics is optional.
	Metrics *telemetry.BusinessMetrics

	Logger *slog.Logger
}

type cartService struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	users    domain.UserRepository
	cache    cache.CartCache
	metrics  *telemetry.BusinessMetrics
	logger   *slog.Logger
	sfg      singleflight.Group
	now      func() time.Time
}

// NewCartService creates a new CartService instance
func NewCartService(cfg CartServiceConfig) (CartService, error) {
	if cfg.Carts == nil || cfg.Products == nil || cfg.Users == nil {
		return nil, errors.New("cart service: carts, products and users repositories are required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &cartService{
		carts:    cfg.Carts,
		products: cfg.Products,
		users:    cfg.Users,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddItem adds quantity units of a product configuration to a cart.
// A matching line item is incremented; otherwise a new one is appended at the
// product's current price.
func (s *cartService) AddItem(ctx context.Context, params AddItemParams) (*domain.Cart, error) {
	const op = "cart.add_item"

	if params.EcommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}
	if params.ProductID == "" {
		return nil, ErrProductRequired.WithOp(op)
	}
	if params.Quantity < 1 {
		return nil, ErrInvalidQuantity.WithOp(op)
	}
	if err := validateSelections(op, params.Fields); err != nil {
		return nil, err
	}

	var (
		cart    *domain.Cart
		created bool
		err     error
	)
	if params.CartID == "" {
		cart = domain.NewCart(params.EcommerceID, s.now())
		created = true
	} else {
		cart, err = s.loadCart(ctx, op, params.EcommerceID, params.CartID)
		if err != nil {
			return nil, err
		}
	}

	product, err := s.products.FindByID(ctx, params.ProductID)
	if err != nil {
		return nil, notFoundAs(err, ErrProductNotFound, op, "failed to load product")
	}

	if item := cart.FindItem(params.ProductID, params.Fields); item != nil {
		item.Quantity += params.Quantity
		if len(params.Fields) > 0 {
			item.FieldValues = cloneSelections(params.Fields)
		}
	} else {
		cart.Items = append(cart.Items, domain.LineItem{
			ID:          uuid.NewString(),
			ProductID:   product.ID,
			Product:     product,
			FieldValues: cloneSelections(params.Fields),
			Quantity:    params.Quantity,
			PriceCents:  product.PriceCents,
		})
	}
	cart.UpdatedAt = s.now()

	if created {
		if err := s.carts.Create(ctx, cart); err != nil {
			return nil, domain.Internal(err, op, "failed to create cart")
		}
	} else {
		if err := s.carts.Update(ctx, cart); err != nil {
			return nil, notFoundAs(err, ErrCartNotFound, op, "failed to save cart")
		}
		s.invalidateCache(cart.EcommerceID, cart.ID)
	}

	if s.metrics != nil {
		if created {
			s.metrics.CartCreated.WithLabelValues(cart.EcommerceID).Inc()
		}
		s.metrics.CartUpdated.WithLabelValues(cart.EcommerceID, "add").Inc()
		s.metrics.CartItemsAdd.WithLabelValues(cart.EcommerceID).Add(float64(params.Quantity))
	}

	s.populate(ctx, cart)
	return cart, nil
}

// ChangeQuantity sets the quantity of one line item. Removing the last unit
// of a single-item cart deletes the cart.
func (s *cartService) ChangeQuantity(ctx context.Context, params ChangeQuantityParams) (*ChangeQuantityResult, error) {
	const op = "cart.change_quantity"

	if params.EcommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}
	if params.Quantity < 0 {
		return nil, ErrNegativeQuantity.WithOp(op)
	}
	if params.CartItemID == "" && params.ProductID == "" {
		return nil, ErrItemTargetRequired.WithOp(op)
	}
	if err := validateSelections(op, params.Fields); err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, op, params.EcommerceID, params.CartID)
	if err != nil {
		return nil, err
	}

	wouldEmpty := cart.WouldEmpty(params.Quantity)

	if params.CartItemID != "" {
		if cart.ItemByID(params.CartItemID) == nil {
			return nil, ErrCartItemNotFound.WithOp(op)
		}
		if wouldEmpty {
			return s.deleteEmptied(ctx, op, cart)
		}
		cart.RemoveItem(params.CartItemID)
	} else {
		item := cart.FindItem(params.ProductID, params.Fields)
		if item == nil {
			return nil, ErrCartItemNotFound.WithOp(op)
		}
		if wouldEmpty {
			return s.deleteEmptied(ctx, op, cart)
		}
		if params.Quantity == 0 {
			cart.RemoveItem(item.ID)
		} else {
			item.Quantity = params.Quantity
		}
	}
	cart.UpdatedAt = s.now()

	if err := s.carts.Update(ctx, cart); err != nil {
		return nil, notFoundAs(err, ErrCartNotFound, op, "failed to save cart")
	}
	s.invalidateCache(cart.EcommerceID, cart.ID)

	if s.metrics != nil {
		action := "set_quantity"
		if params.Quantity == 0 || params.CartItemID != "" {
			action = "remove"
		}
		s.metrics.CartUpdated.WithLabelValues(cart.EcommerceID, action).Inc()
	}

	s.populate(ctx, cart)
	return &ChangeQuantityResult{Cart: cart}, nil
}

func (s *cartService) deleteEmptied(ctx context.Context, op string, cart *domain.Cart) (*ChangeQuantityResult, error) {
	if err := s.carts.Delete(ctx, cart.EcommerceID, cart.ID); err != nil {
		return nil, notFoundAs(err, ErrCartNotFound, op, "failed to delete cart")
	}
	s.invalidateCache(cart.EcommerceID, cart.ID)

	if s.metrics != nil {
		s.metrics.CartDeleted.WithLabelValues(cart.EcommerceID, "emptied").Inc()
	}

	s.logger.Debug("cart deleted after last item removed",
		"ecommerce_id", cart.EcommerceID,
		"cart_id", cart.ID)

	return &ChangeQuantityResult{Deleted: true, Message: "Cart deleted"}, nil
}

// GetCart returns the cart with products populated. A missing cart is
// reported through CartResult.Found, never as an error.
func (s *cartService) GetCart(ctx context.Context, ecommerceID, cartID string) (*CartResult, error) {
	const op = "cart.get"

	if ecommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}

	cached, err := s.cache.Get(ctx, ecommerceID, cartID)
	if err == nil {
		return &CartResult{Cart: cached, Found: true}, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cart cache read failed", "cart_id", cartID, "error", err)
	}

	// Concurrent misses for the same cart share one store read.
	v, err, _ := s.sfg.Do(ecommerceID+":"+cartID, func() (any, error) {
		cart, err := s.carts.FindByID(ctx, ecommerceID, cartID)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return (*domain.Cart)(nil), nil
			}
			return nil, domain.Internal(err, op, "failed to load cart")
		}

		s.populate(ctx, cart)
		if err := s.cache.Set(ctx, cart); err != nil {
			s.logger.Warn("cart cache write failed", "cart_id", cartID, "error", err)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	cart := v.(*domain.Cart)
	if cart == nil {
		return &CartResult{Found: false, Code: CodeCartNotFound}, nil
	}
	return &CartResult{Cart: cart, Found: true}, nil
}

// AssignUser records the user who owns the cart, ahead of checkout.
func (s *cartService) AssignUser(ctx context.Context, ecommerceID, cartID, userID string) (*domain.Cart, error) {
	const op = "cart.assign_user"

	if ecommerceID == "" {
		return nil, domain.ErrTenantRequired.WithOp(op)
	}
	if userID == "" {
		return nil, domain.Invalid(op, "user ID is required")
	}

	cart, err := s.loadCart(ctx, op, ecommerceID, cartID)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, notFoundAs(err, ErrUserNotFound, op, "failed to load user")
	}

	cart.UserID = userID
	cart.UpdatedAt = s.now()
	if err := s.carts.Update(ctx, cart); err != nil {
		return nil, notFoundAs(err, ErrCartNotFound, op, "failed to save cart")
	}
	s.invalidateCache(ecommerceID, cartID)

	if s.metrics != nil {
		s.metrics.CartUpdated.WithLabelValues(ecommerceID, "assign_user").Inc()
	}

	s.populate(ctx, cart)
	return cart, nil
}

func (s *cartService) loadCart(ctx context.Context, op, ecommerceID, cartID string) (*domain.Cart, error) {
	if cartID == "" {
		return nil, ErrCartNotFound.WithOp(op)
	}
	cart, err := s.carts.FindByID(ctx, ecommerceID, cartID)
	if err != nil {
		return nil, notFoundAs(err, ErrCartNotFound, op, "failed to load cart")
	}
	return cart, nil
}

// populate attaches products for the response. A failure only costs the
// caller the product details, so it is logged rather than returned.
func (s *cartService) populate(ctx context.Context, cart *domain.Cart) {
	if err := domain.PopulateItems(ctx, s.products, cart.Items); err != nil {
		s.logger.Warn("failed to populate cart products",
			"cart_id", cart.ID,
			"error", err)
	}
}

func (s *cartService) invalidateCache(ecommerceID, cartID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ecommerceID, cartID); err != nil {
		s.logger.Warn("cart cache invalidate failed", "cart_id", cartID, "error", err)
	}
}

func validateSelections(op string, fields []domain.FieldSelection) error {
	for _, f := range fields {
		if f.FieldLabel == "" {
			return ErrInvalidFieldSelection.WithOp(op)
		}
	}
	return nil
}

func cloneSelections(fields []domain.FieldSelection) []domain.FieldSelection {
	if len(fields) == 0 {
		return nil
	}
	return append([]domain.FieldSelection(nil), fields...)
}

// notFoundAs maps a store NotFound to the given sentinel and wraps anything
// else as an internal error.
func notFoundAs(err error, sentinel *domain.Error, op, message string) error {
	if domain.IsCode(err, domain.ENOTFOUND) {
		return sentinel.WithOp(op)
	}
	return domain.Internal(err, op, message)
}

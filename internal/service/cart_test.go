package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cloudmerce/internal/cache"
	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/telemetry"
)

const testEcommerce = "shop-1"

var (
	testNow  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mug      = &domain.Product{ID: "p1", EcommerceID: testEcommerce, Name: "Mug", PriceCents: 2500}
	tshirt   = &domain.Product{ID: "p2", EcommerceID: testEcommerce, Name: "T-shirt", PriceCents: 4990}
	sizeM    = []domain.FieldSelection{{FieldLabel: "size", Value: "M"}}
	sizeL    = []domain.FieldSelection{{FieldLabel: "size", Value: "L"}}
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
	fixedNow = func() time.Time { return testNow }
)

type cartFixture struct {
	svc     *cartService
	carts   *mockCartRepo
	cache   *recordingCache
	metrics *telemetry.BusinessMetrics
}

func newCartFixture(t *testing.T, carts ...*domain.Cart) *cartFixture {
	t.Helper()

	f := &cartFixture{
		carts:   newMockCartRepo(carts...),
		cache:   newRecordingCache(),
		metrics: telemetry.NewBusinessMetrics("test", prometheus.NewRegistry()),
	}
	svc, err := NewCartService(CartServiceConfig{
		Carts:    f.carts,
		Products: newMockProductRepo(mug, tshirt),
		Users:    newMockUserRepo(&domain.User{ID: "u1", Name: "Ana"}),
		Cache:    f.cache,
		Metrics:  f.metrics,
		Logger:   discard,
	})
	require.NoError(t, err)

	f.svc = svc.(*cartService)
	f.svc.now = fixedNow
	return f
}

func emptyCart(id string) *domain.Cart {
	return &domain.Cart{ID: id, EcommerceID: testEcommerce, Status: domain.CartStatusActive}
}

func cartWith(id string, items ...domain.LineItem) *domain.Cart {
	c := emptyCart(id)
	c.Items = items
	return c
}

func TestNewCartService_RequiresRepositories(t *testing.T) {
	_, err := NewCartService(CartServiceConfig{Carts: newMockCartRepo()})
	assert.Error(t, err)
}

func TestCartService_AddItem_NewCart(t *testing.T) {
	f := newCartFixture(t)

	cart, err := f.svc.AddItem(context.Background(), AddItemParams{
		EcommerceID: testEcommerce,
		ProductID:   "p1",
		Quantity:    2,
		Fields:      sizeM,
	})
	require.NoError(t, err)

	require.NotEmpty(t, cart.ID)
	require.Len(t, cart.Items, 1)
	item := cart.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(2500), item.PriceCents)
	assert.Equal(t, sizeM, item.FieldValues)
	assert.NotEmpty(t, item.ID)
	require.NotNil(t, item.Product)
	assert.Equal(t, "Mug", item.Product.Name)
	assert.Equal(t, testNow, cart.UpdatedAt)

	stored := f.carts.stored(cart.ID)
	require.NotNil(t, stored)
	assert.Len(t, stored.Items, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CartCreated.WithLabelValues(testEcommerce)))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CartItemsAdd.WithLabelValues(testEcommerce)))
}

func TestCartService_AddItem_ExampleScenario(t *testing.T) {
	f := newCartFixture(t, emptyCart("c1"))
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 2, Fields: sizeM})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	cart, err = f.svc.AddItem(ctx, AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 1, Fields: sizeM})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "matching configuration must not create a second line item")
	assert.Equal(t, 3, cart.Items[0].Quantity)

	// Quantity 3 is not a last unit, so the cart survives with no items.
	res, err := f.svc.ChangeQuantity(ctx, ChangeQuantityParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Fields: sizeM, Quantity: 0})
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	require.NotNil(t, res.Cart)
	assert.Empty(t, res.Cart.Items)

	stored := f.carts.stored("c1")
	require.NotNil(t, stored)
	assert.Empty(t, stored.Items)
}

func TestCartService_AddItem_DifferentSelectionsAreDistinctItems(t *testing.T) {
	f := newCartFixture(t, emptyCart("c1"))
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 1, Fields: sizeM})
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 1, Fields: sizeL})
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.NotEqual(t, cart.Items[0].ID, cart.Items[1].ID)
}

func TestCartService_AddItem_MatchOverwritesSelections(t *testing.T) {
	existing := domain.LineItem{ID: "li-1", ProductID: "p1", FieldValues: sizeM, Quantity: 1, PriceCents: 2000}
	f := newCartFixture(t, cartWith("c1", existing))

	// The stored selection is a subset of the request, so the item matches
	// and the request's selections replace the stored ones.
	requested := []domain.FieldSelection{{FieldLabel: "size", Value: "M"}, {FieldLabel: "color", Value: "red"}}
	cart, err := f.svc.AddItem(context.Background(), AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 2, Fields: requested})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, requested, cart.Items[0].FieldValues)
	assert.Equal(t, int64(2000), cart.Items[0].PriceCents, "captured price is kept")
}

func TestCartService_AddItem_Errors(t *testing.T) {
	tests := []struct {
		name   string
		params AddItemParams
		want   error
	}{
		{
			name:   "missing ecommerce",
			params: AddItemParams{ProductID: "p1", Quantity: 1},
			want:   domain.ErrTenantRequired,
		},
		{
			name:   "zero quantity",
			params: AddItemParams{EcommerceID: testEcommerce, ProductID: "p1", Quantity: 0},
			want:   ErrInvalidQuantity,
		},
		{
			name:   "missing product id",
			params: AddItemParams{EcommerceID: testEcommerce, Quantity: 1},
			want:   ErrProductRequired,
		},
		{
			name:   "empty field label",
			params: AddItemParams{EcommerceID: testEcommerce, ProductID: "p1", Quantity: 1, Fields: []domain.FieldSelection{{Value: "M"}}},
			want:   ErrInvalidFieldSelection,
		},
		{
			name:   "unknown cart",
			params: AddItemParams{EcommerceID: testEcommerce, CartID: "nope", ProductID: "p1", Quantity: 1},
			want:   ErrCartNotFound,
		},
		{
			name:   "cart of another ecommerce",
			params: AddItemParams{EcommerceID: "shop-2", CartID: "c1", ProductID: "p1", Quantity: 1},
			want:   ErrCartNotFound,
		},
		{
			name:   "unknown product",
			params: AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "ghost", Quantity: 1},
			want:   ErrProductNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t, emptyCart("c1"))

			_, err := f.svc.AddItem(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "cart.add_item", domain.ErrorOp(err))

			stored := f.carts.stored("c1")
			require.NotNil(t, stored)
			assert.Empty(t, stored.Items)
		})
	}
}

func TestCartService_AddItem_UnknownProductLeavesNoOrphanCart(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddItem(context.Background(), AddItemParams{EcommerceID: testEcommerce, ProductID: "ghost", Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, f.carts.calls())
}

func TestCartService_AddItem_InvalidatesCache(t *testing.T) {
	f := newCartFixture(t, emptyCart("c1"))
	require.NoError(t, f.cache.Set(context.Background(), emptyCart("c1")))

	_, err := f.svc.AddItem(context.Background(), AddItemParams{EcommerceID: testEcommerce, CartID: "c1", ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	assert.False(t, f.cache.has(testEcommerce, "c1"))
}

func TestCartService_ChangeQuantity(t *testing.T) {
	one := func() domain.LineItem {
		return domain.LineItem{ID: "li-1", ProductID: "p1", FieldValues: sizeM, Quantity: 1, PriceCents: 2500}
	}
	two := func() domain.LineItem {
		return domain.LineItem{ID: "li-2", ProductID: "p2", Quantity: 4, PriceCents: 4990}
	}

	tests := []struct {
		name        string
		cart        *domain.Cart
		params      ChangeQuantityParams
		wantDeleted bool
		wantItems   map[string]int // line item id -> quantity
	}{
		{
			name:        "last unit of single-item cart by product deletes cart",
			cart:        cartWith("c1", one()),
			params:      ChangeQuantityParams{ProductID: "p1", Fields: sizeM, Quantity: 0},
			wantDeleted: true,
		},
		{
			name:        "last unit of single-item cart by item id deletes cart",
			cart:        cartWith("c1", one()),
			params:      ChangeQuantityParams{CartItemID: "li-1", Quantity: 0},
			wantDeleted: true,
		},
		{
			name:      "zero on one of several items removes only that item",
			cart:      cartWith("c1", one(), two()),
			params:    ChangeQuantityParams{ProductID: "p1", Fields: sizeM, Quantity: 0},
			wantItems: map[string]int{"li-2": 4},
		},
		{
			name:      "positive quantity overwrites",
			cart:      cartWith("c1", one(), two()),
			params:    ChangeQuantityParams{ProductID: "p2", Quantity: 7},
			wantItems: map[string]int{"li-1": 1, "li-2": 7},
		},
		{
			name:      "item id mode removes the item",
			cart:      cartWith("c1", one(), two()),
			params:    ChangeQuantityParams{CartItemID: "li-2", Quantity: 3},
			wantItems: map[string]int{"li-1": 1},
		},
		{
			name:      "positive quantity on sole unit keeps cart",
			cart:      cartWith("c1", one()),
			params:    ChangeQuantityParams{ProductID: "p1", Fields: sizeM, Quantity: 5},
			wantItems: map[string]int{"li-1": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t, tt.cart)
			tt.params.EcommerceID = testEcommerce
			tt.params.CartID = "c1"

			res, err := f.svc.ChangeQuantity(context.Background(), tt.params)
			require.NoError(t, err)

			stored := f.carts.stored("c1")
			if tt.wantDeleted {
				assert.True(t, res.Deleted)
				assert.Nil(t, res.Cart)
				assert.NotEmpty(t, res.Message)
				assert.Nil(t, stored)
				assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CartDeleted.WithLabelValues(testEcommerce, "emptied")))
				return
			}

			assert.False(t, res.Deleted)
			require.NotNil(t, res.Cart)
			require.NotNil(t, stored)
			got := map[string]int{}
			for _, li := range stored.Items {
				got[li.ID] = li.Quantity
			}
			assert.Equal(t, tt.wantItems, got)
			assert.Equal(t, testNow, stored.UpdatedAt)
		})
	}
}

func TestCartService_ChangeQuantity_Errors(t *testing.T) {
	item := domain.LineItem{ID: "li-1", ProductID: "p1", FieldValues: sizeM, Quantity: 2}

	tests := []struct {
		name   string
		params ChangeQuantityParams
		want   error
	}{
		{"negative quantity", ChangeQuantityParams{ProductID: "p1", Quantity: -1}, ErrNegativeQuantity},
		{"no target", ChangeQuantityParams{Quantity: 1}, ErrItemTargetRequired},
		{"unknown item id", ChangeQuantityParams{CartItemID: "nope", Quantity: 0}, ErrCartItemNotFound},
		{"unmatched selections", ChangeQuantityParams{ProductID: "p1", Fields: sizeL, Quantity: 1}, ErrCartItemNotFound},
		{"unknown cart", ChangeQuantityParams{CartID: "other", ProductID: "p1", Quantity: 1}, ErrCartNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCartFixture(t, cartWith("c1", item))
			tt.params.EcommerceID = testEcommerce
			if tt.params.CartID == "" {
				tt.params.CartID = "c1"
			}

			_, err := f.svc.ChangeQuantity(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.want)

			stored := f.carts.stored("c1")
			require.NotNil(t, stored)
			assert.Equal(t, 2, stored.Items[0].Quantity)
		})
	}
}

func TestCartService_GetCart(t *testing.T) {
	item := domain.LineItem{ID: "li-1", ProductID: "p1", Quantity: 1, PriceCents: 2500}

	t.Run("found is populated and cached", func(t *testing.T) {
		f := newCartFixture(t, cartWith("c1", item))

		res, err := f.svc.GetCart(context.Background(), testEcommerce, "c1")
		require.NoError(t, err)
		assert.True(t, res.Found)
		require.NotNil(t, res.Cart.Items[0].Product)
		assert.Equal(t, "Mug", res.Cart.Items[0].Product.Name)
		assert.True(t, f.cache.has(testEcommerce, "c1"))
	})

	t.Run("cache hit skips the store", func(t *testing.T) {
		f := newCartFixture(t, cartWith("c1", item))
		ctx := context.Background()

		_, err := f.svc.GetCart(ctx, testEcommerce, "c1")
		require.NoError(t, err)
		_, err = f.svc.GetCart(ctx, testEcommerce, "c1")
		require.NoError(t, err)

		assert.Equal(t, []string{"FindByID(c1)"}, f.carts.calls())
	})

	t.Run("missing cart is a result, not an error", func(t *testing.T) {
		f := newCartFixture(t)

		res, err := f.svc.GetCart(context.Background(), testEcommerce, "nope")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Nil(t, res.Cart)
		assert.Equal(t, CodeCartNotFound, res.Code)
	})

	t.Run("store failure is an error", func(t *testing.T) {
		f := newCartFixture(t)
		f.carts.FindByIDFunc = func(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
			return nil, errors.New("connection reset")
		}

		_, err := f.svc.GetCart(context.Background(), testEcommerce, "c1")
		require.Error(t, err)
		assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	})

	t.Run("concurrent misses share one read", func(t *testing.T) {
		f := newCartFixture(t, cartWith("c1", item))
		release := make(chan struct{})
		var reads int
		var mu sync.Mutex
		f.carts.FindByIDFunc = func(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
			mu.Lock()
			reads++
			mu.Unlock()
			<-release
			return cartWith("c1", item), nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := f.svc.GetCart(context.Background(), testEcommerce, "c1")
				assert.NoError(t, err)
				assert.True(t, res.Found)
			}()
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.LessOrEqual(t, reads, 5)
		assert.GreaterOrEqual(t, reads, 1)
	})
}

func TestCartService_AssignUser(t *testing.T) {
	t.Run("sets user", func(t *testing.T) {
		f := newCartFixture(t, emptyCart("c1"))

		cart, err := f.svc.AssignUser(context.Background(), testEcommerce, "c1", "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", cart.UserID)
		assert.Equal(t, "u1", f.carts.stored("c1").UserID)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newCartFixture(t, emptyCart("c1"))

		_, err := f.svc.AssignUser(context.Background(), testEcommerce, "c1", "ghost")
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, f.carts.stored("c1").UserID)
	})

	t.Run("unknown cart", func(t *testing.T) {
		f := newCartFixture(t)

		_, err := f.svc.AssignUser(context.Background(), testEcommerce, "c1", "u1")
		assert.ErrorIs(t, err, ErrCartNotFound)
	})
}

func TestCartService_GetCart_ConsumedDuringReadIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	carts := newMockCartRepo(cartWith("c1", domain.LineItem{ID: "li-1", ProductID: "p1", Quantity: 1, PriceCents: 2500}))
	svc, err := NewCartService(CartServiceConfig{
		Carts:    carts,
		Products: newMockProductRepo(mug),
		Users:    newMockUserRepo(),
		Cache:    cache.NewRedisCache(client, time.Minute),
		Logger:   discard,
	})
	require.NoError(t, err)
	ctx := context.Background()

	// The read loads the cart, then checkout consumes it and invalidates the
	// cache before the read gets to write the cache.
	carts.FindByIDFunc = func(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
		carts.FindByIDFunc = nil
		stale := cloneCart(carts.carts[cartID])
		delete(carts.carts, cartID)
		svc.(*cartService).invalidateCache(ecommerceID, cartID)
		return &stale, nil
	}

	first, err := svc.GetCart(ctx, testEcommerce, "c1")
	require.NoError(t, err)
	assert.True(t, first.Found)

	again, err := svc.GetCart(ctx, testEcommerce, "c1")
	require.NoError(t, err)
	assert.False(t, again.Found, "a consumed cart must not be served from cache")
	assert.Equal(t, CodeCartNotFound, again.Code)
}

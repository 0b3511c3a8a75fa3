package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/cloudmerce/internal/domain"
	"github.com/dukerupert/cloudmerce/internal/service"
)

func sampleCart() *domain.Cart {
	return &domain.Cart{
		ID:          "c1",
		EcommerceID: "shop-1",
		Status:      domain.CartStatusActive,
		Items: []domain.LineItem{{
			ID:          "li-1",
			ProductID:   "p1",
			Quantity:    2,
			PriceCents:  2500,
			FieldValues: []domain.FieldSelection{{FieldLabel: "Size", Value: "M"}},
		}},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCartHandler_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		carts := &mockCartService{
			GetCartFunc: func(ctx context.Context, ecommerceID, cartID string) (*service.CartResult, error) {
				assert.Equal(t, "shop-1", ecommerceID)
				assert.Equal(t, "c1", cartID)
				return &service.CartResult{Cart: sampleCart(), Found: true}, nil
			},
		}

		rec := do(t, newTestMux(carts, nil, nil), http.MethodGet, "/api/shop-1/cart/c1", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CartResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Found)
		require.NotNil(t, resp.Cart)
		assert.Equal(t, "c1", resp.Cart.ID)
		assert.Len(t, resp.Cart.Items, 1)
	})

	t.Run("not found is a normal result", func(t *testing.T) {
		carts := &mockCartService{
			GetCartFunc: func(ctx context.Context, ecommerceID, cartID string) (*service.CartResult, error) {
				return &service.CartResult{Found: false, Code: service.CodeCartNotFound}, nil
			},
		}

		rec := do(t, newTestMux(carts, nil, nil), http.MethodGet, "/api/shop-1/cart/missing", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CartResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Found)
		assert.Equal(t, service.CodeCartNotFound, resp.Code)
		assert.Nil(t, resp.Cart)
	})

	t.Run("store failure", func(t *testing.T) {
		carts := &mockCartService{
			GetCartFunc: func(ctx context.Context, ecommerceID, cartID string) (*service.CartResult, error) {
				return nil, domain.Internal(nil, "cart.get", "failed to load cart")
			},
		}

		rec := do(t, newTestMux(carts, nil, nil), http.MethodGet, "/api/shop-1/cart/c1", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestCartHandler_AddItem(t *testing.T) {
	var got service.AddItemParams
	carts := &mockCartService{
		AddItemFunc: func(ctx context.Context, params service.AddItemParams) (*domain.Cart, error) {
			got = params
			return sampleCart(), nil
		},
	}

	body := `{"productId":"p1","quantity":2,"fieldValues":[{"fieldLabel":"Size","value":"M"}]}`
	rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, service.AddItemParams{
		EcommerceID: "shop-1",
		ProductID:   "p1",
		Quantity:    2,
		Fields:      []domain.FieldSelection{{FieldLabel: "Size", Value: "M"}},
	}, got)

	var cart domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	assert.Equal(t, "c1", cart.ID)
}

func TestCartHandler_AddItem_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{
			name:   "missing product and quantity",
			body:   `{"cartId":"c1"}`,
			fields: []string{"productId", "quantity"},
		},
		{
			name:   "negative quantity",
			body:   `{"productId":"p1","quantity":-1}`,
			fields: []string{"quantity"},
		},
		{
			name:   "blank field selection",
			body:   `{"productId":"p1","quantity":1,"fieldValues":[{"fieldLabel":"Size","value":""}]}`,
			fields: []string{"fieldValues[0].value"},
		},
		{
			name: "malformed json",
			body: `{"productId":`,
		},
		{
			name: "unknown field",
			body: `{"productId":"p1","quantity":1,"sku":"x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mockCartService{}
			rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, carts.calls)

			var resp errorEnvelope
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, domain.EINVALID, resp.Error.Code)
			for _, f := range tt.fields {
				assert.Contains(t, resp.Error.Fields, f)
			}
		})
	}
}

func TestCartHandler_AddItem_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"product not found", service.ErrProductNotFound, http.StatusNotFound},
		{"cart not found", service.ErrCartNotFound, http.StatusNotFound},
		{"invalid selection", service.ErrInvalidFieldSelection, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mockCartService{
				AddItemFunc: func(ctx context.Context, params service.AddItemParams) (*domain.Cart, error) {
					return nil, tt.err
				},
			}
			rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items", `{"productId":"p1","quantity":1}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCartHandler_ChangeQuantity(t *testing.T) {
	t.Run("updated cart", func(t *testing.T) {
		var got service.ChangeQuantityParams
		carts := &mockCartService{
			ChangeQuantityFunc: func(ctx context.Context, params service.ChangeQuantityParams) (*service.ChangeQuantityResult, error) {
				got = params
				return &service.ChangeQuantityResult{Cart: sampleCart()}, nil
			},
		}

		body := `{"cartId":"c1","productId":"p1","quantity":0,"fieldValues":[{"fieldLabel":"Size","value":"M"}]}`
		rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items/quantity", body)
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "shop-1", got.EcommerceID)
		assert.Equal(t, "c1", got.CartID)
		assert.Equal(t, 0, got.Quantity)
		assert.Equal(t, []domain.FieldSelection{{FieldLabel: "Size", Value: "M"}}, got.Fields)

		var resp ChangeQuantityResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.False(t, resp.Deleted)
		assert.NotNil(t, resp.Cart)
	})

	t.Run("deleted cart marker", func(t *testing.T) {
		carts := &mockCartService{
			ChangeQuantityFunc: func(ctx context.Context, params service.ChangeQuantityParams) (*service.ChangeQuantityResult, error) {
				assert.Equal(t, "li-1", params.CartItemID)
				return &service.ChangeQuantityResult{Deleted: true, Message: "Cart deleted"}, nil
			},
		}

		rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items/quantity",
			`{"cartId":"c1","cartItemId":"li-1","quantity":0}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ChangeQuantityResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Deleted)
		assert.Equal(t, "Cart deleted", resp.Message)
		assert.Nil(t, resp.Cart)
	})

	t.Run("quantity is required", func(t *testing.T) {
		carts := &mockCartService{}
		rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items/quantity",
			`{"cartId":"c1","productId":"p1"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Contains(t, resp.Error.Fields, "quantity")
		assert.Zero(t, carts.calls)
	})

	t.Run("item must be addressed", func(t *testing.T) {
		carts := &mockCartService{}
		rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items/quantity",
			`{"cartId":"c1","quantity":3}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp errorEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Contains(t, resp.Error.Fields, "productId")
	})

	t.Run("item not found", func(t *testing.T) {
		carts := &mockCartService{
			ChangeQuantityFunc: func(ctx context.Context, params service.ChangeQuantityParams) (*service.ChangeQuantityResult, error) {
				return nil, service.ErrCartItemNotFound
			},
		}
		rec := do(t, newTestMux(carts, nil, nil), http.MethodPut, "/api/shop-1/cart/items/quantity",
			`{"cartId":"c1","cartItemId":"nope","quantity":1}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCartHandler_AssignUser(t *testing.T) {
	carts := &mockCartService{
		AssignUserFunc: func(ctx context.Context, ecommerceID, cartID, userID string) (*domain.Cart, error) {
			assert.Equal(t, "shop-1", ecommerceID)
			assert.Equal(t, "c1", cartID)
			assert.Equal(t, "u1", userID)
			cart := sampleCart()
			cart.UserID = userID
			return cart, nil
		},
	}
	mux := newTestMux(carts, nil, nil)

	rec := do(t, mux, http.MethodPut, "/api/shop-1/cart/c1/user", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var cart domain.Cart
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cart))
	assert.Equal(t, "u1", cart.UserID)

	rec = do(t, mux, http.MethodPut, "/api/shop-1/cart/c1/user", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package domain

import (
	"context"
	"time"
)

// CartStatusActive is the only status a stored cart ever has. Carts are
// deleted rather than transitioned once emptied or checked out.
const CartStatusActive = "active"

// Cart is a per-tenant collection of line items prior to checkout.
type Cart struct {
	ID          string     `json:"id"`
	EcommerceID string     `json:"ecommerceId"`
	Status      string     `json:"status"`
	UserID      string     `json:"userId,omitempty"`
	Items       []LineItem `json:"items"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// LineItem is one entry in a cart or an order snapshot.
//
// PriceCents is captured when the item is first inserted and is not refreshed
// when the product price later changes. On a cart, Product is only set when the
// item was loaded with populated references and is never persisted. On an
// order it is the snapshot taken at checkout and is stored with the item.
type LineItem struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"productId"`
	Product     *Product         `json:"product,omitempty"`
	FieldValues []FieldSelection `json:"fieldValues"`
	Quantity    int              `json:"quantity"`
	PriceCents  int64            `json:"priceCents"`
}

// FieldSelection is a customer's chosen value for one product option.
type FieldSelection struct {
	FieldLabel string `json:"fieldLabel"`
	Value      string `json:"value"`
}

// SubtotalCents returns the captured price times quantity.
func (li LineItem) SubtotalCents() int64 {
	return li.PriceCents * int64(li.Quantity)
}

// NewCart returns an empty active cart for the given ecommerce.
func NewCart(ecommerceID string, now time.Time) *Cart {
	return &Cart{
		EcommerceID: ecommerceID,
		Status:      CartStatusActive,
		Items:       []LineItem{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MatchesSelections reports whether a stored line item is identified by the
// requested product and field selections.
//
// Every stored selection must be present in the request with an equal value.
// Extra requested selections that were never stored do not prevent a match,
// so the relation is not symmetric.
func (li LineItem) MatchesSelections(productID string, requested []FieldSelection) bool {
	if li.ProductID != productID {
		return false
	}
	for _, stored := range li.FieldValues {
		found := false
		for _, req := range requested {
			if req.FieldLabel == stored.FieldLabel {
				found = req.Value == stored.Value
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FindItem returns the first line item matching the product and selections,
// or nil. The returned pointer aliases the cart's slice.
func (c *Cart) FindItem(productID string, selections []FieldSelection) *LineItem {
	for i := range c.Items {
		if c.Items[i].MatchesSelections(productID, selections) {
			return &c.Items[i]
		}
	}
	return nil
}

// ItemByID returns the line item with the given id, or nil.
func (c *Cart) ItemByID(itemID string) *LineItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveItem drops the line item with the given id. It reports whether an
// item was removed.
func (c *Cart) RemoveItem(itemID string) bool {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// WouldEmpty reports whether setting some item to newQuantity removes the
// cart's last unit. It must be evaluated before the cart is mutated.
func (c *Cart) WouldEmpty(newQuantity int) bool {
	return len(c.Items) == 1 && c.Items[0].Quantity == 1 && newQuantity == 0
}

// TotalCents sums the captured subtotal of every item.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, li := range c.Items {
		total += li.SubtotalCents()
	}
	return total
}

// ItemCount sums quantities across items.
func (c *Cart) ItemCount() int {
	n := 0
	for _, li := range c.Items {
		n += li.Quantity
	}
	return n
}

// CartRepository persists carts. All lookups are scoped to an ecommerce; a
// cart belonging to a different tenant is reported as not found.
type CartRepository interface {
	// FindByID returns the cart or a NotFound error.
	FindByID(ctx context.Context, ecommerceID, cartID string) (*Cart, error)

	// Create stores a new cart and assigns its ID.
	Create(ctx context.Context, cart *Cart) error

	// Update replaces a stored cart. Returns NotFound if it no longer exists.
	Update(ctx context.Context, cart *Cart) error

	// Delete removes a cart. Returns NotFound if it does not exist.
	Delete(ctx context.Context, ecommerceID, cartID string) error
}

package domain

import (
	"context"
)

// =============================================================================
// PRODUCT DOMAIN TYPES
// =============================================================================

// Products are managed by the storefront admin; this service only reads them.

// ProductField describes a customer-selectable option (size, color, engraving).
type ProductField struct {
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Options []string `json:"options,omitempty"`
}

// Product is a catalog entry owned by one ecommerce.
type Product struct {
	ID          string         `json:"id"`
	EcommerceID string         `json:"ecommerceId"`
	ProductType string         `json:"productType"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Images      []string       `json:"images"`
	PriceCents  int64          `json:"priceCents"`
	Fields      []ProductField `json:"fields"`
}

// ProductRepository reads products.
type ProductRepository interface {
	// FindByID returns the product or a NotFound error.
	FindByID(ctx context.Context, productID string) (*Product, error)

	// FindByIDs returns the products that exist among ids, keyed by id.
	// Missing ids are simply absent from the map.
	FindByIDs(ctx context.Context, ids []string) (map[string]*Product, error)
}

// PopulateItems attaches products to line items in place. Items whose product
// no longer exists keep a nil Product.
func PopulateItems(ctx context.Context, products ProductRepository, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, li := range items {
		if _, ok := seen[li.ProductID]; ok {
			continue
		}
		seen[li.ProductID] = struct{}{}
		ids = append(ids, li.ProductID)
	}

	byID, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Product = byID[items[i].ProductID]
	}
	return nil
}

package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// CartRepository implements domain.CartRepository.
type CartRepository struct {
	db DBTX
}

// Compile-time check that CartRepository implements domain.CartRepository.
var _ domain.CartRepository = (*CartRepository)(nil)

// NewCartRepository creates a cart repository over db.
func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

const getCart = `SELECT id, ecommerce_id, status, user_id, items, created_at, updated_at
FROM carts WHERE id = $1 AND ecommerce_id = $2`

// FindByID loads a cart within an ecommerce.
func (r *CartRepository) FindByID(ctx context.Context, ecommerceID, cartID string) (*domain.Cart, error) {
	const op = "postgres.cart.find"

	id, err := parseID(op, "cart", cartID)
	if err != nil {
		return nil, err
	}

	var (
		cart   domain.Cart
		rowID  uuid.UUID
		userID pgtype.Text
		items  []byte
	)
	err = r.db.QueryRow(ctx, getCart, id, ecommerceID).Scan(
		&rowID, &cart.EcommerceID, &cart.Status, &userID, &items, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "cart", cartID)
		}
		return nil, domain.Internal(err, op, "failed to get cart")
	}

	cart.ID = rowID.String()
	cart.UserID = userID.String
	if cart.Items, err = loadItems(items); err != nil {
		return nil, domain.Internal(err, op, "failed to decode cart items")
	}
	return &cart, nil
}

const createCart = `INSERT INTO carts (id, ecommerce_id, status, user_id, items, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Create inserts a cart and sets its ID.
func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	const op = "postgres.cart.create"

	items, err := storedItems(cart.Items, false)
	if err != nil {
		return domain.Internal(err, op, "failed to encode cart items")
	}

	id := uuid.New()
	_, err = r.db.Exec(ctx, createCart,
		id, cart.EcommerceID, cart.Status, nullText(cart.UserID), items, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to create cart")
	}
	cart.ID = id.String()
	return nil
}

const updateCart = `UPDATE carts SET status = $3, user_id = $4, items = $5, updated_at = $6
WHERE id = $1 AND ecommerce_id = $2`

// Update replaces the cart's mutable fields.
func (r *CartRepository) Update(ctx context.Context, cart *domain.Cart) error {
	const op = "postgres.cart.update"

	id, err := parseID(op, "cart", cart.ID)
	if err != nil {
		return err
	}
	items, err := storedItems(cart.Items, false)
	if err != nil {
		return domain.Internal(err, op, "failed to encode cart items")
	}

	tag, err := r.db.Exec(ctx, updateCart,
		id, cart.EcommerceID, cart.Status, nullText(cart.UserID), items, cart.UpdatedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to update cart")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "cart", cart.ID)
	}
	return nil
}

// Delete removes a cart.
func (r *CartRepository) Delete(ctx context.Context, ecommerceID, cartID string) error {
	const op = "postgres.cart.delete"

	id, err := parseID(op, "cart", cartID)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id = $1 AND ecommerce_id = $2`, id, ecommerceID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete cart")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "cart", cartID)
	}
	return nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

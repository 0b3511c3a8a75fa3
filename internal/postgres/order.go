package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// OrderRepository implements domain.OrderRepository.
type OrderRepository struct {
	db DBTX
}

// Compile-time check that OrderRepository implements domain.OrderRepository.
var _ domain.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository creates an order repository over db.
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, ecommerce_id, user_id, status, payment, items, total_cents, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o       domain.Order
		id      uuid.UUID
		status  string
		payment []byte
		items   []byte
	)
	if err := row.Scan(&id, &o.EcommerceID, &o.UserID, &status, &payment, &items, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}

	o.ID = id.String()
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return o, err
	}
	var err error
	o.Items, err = loadItems(items)
	return o, err
}

// FindByID loads an order within an ecommerce.
func (r *OrderRepository) FindByID(ctx context.Context, ecommerceID, orderID string) (*domain.Order, error) {
	const op = "postgres.order.find"

	id, err := parseID(op, "order", orderID)
	if err != nil {
		return nil, err
	}

	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND ecommerce_id = $2`, id, ecommerceID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "order", orderID)
		}
		return nil, domain.Internal(err, op, "failed to get order")
	}
	return &o, nil
}

// FindByUser lists a user's orders, newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, ecommerceID, userID string) ([]domain.Order, error) {
	return r.list(ctx, "postgres.order.find_by_user",
		`SELECT `+orderColumns+` FROM orders WHERE ecommerce_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
		ecommerceID, userID)
}

// FindByStatus lists orders in a status across tenants, oldest first.
// A non-positive limit returns every match.
func (r *OrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	return r.list(ctx, "postgres.order.find_by_status",
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(status), lim)
}

func (r *OrderRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list orders")
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode order")
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate orders")
	}
	return orders, nil
}

// Create inserts an order and sets its ID.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	const op = "postgres.order.create"

	payment, err := json.Marshal(order.Payment)
	if err != nil {
		return domain.Internal(err, op, "failed to encode payment")
	}
	items, err := storedItems(order.Items, true)
	if err != nil {
		return domain.Internal(err, op, "failed to encode order items")
	}

	id := uuid.New()
	_, err = r.db.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, order.EcommerceID, order.UserID, string(order.Status), payment, items,
		order.TotalCents, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to create order")
	}
	order.ID = id.String()
	return nil
}

// Update writes the order's status and payment data. Items are immutable.
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	const op = "postgres.order.update"

	id, err := parseID(op, "order", order.ID)
	if err != nil {
		return err
	}
	payment, err := json.Marshal(order.Payment)
	if err != nil {
		return domain.Internal(err, op, "failed to encode payment")
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, payment = $4, updated_at = $5 WHERE id = $1 AND ecommerce_id = $2`,
		id, order.EcommerceID, string(order.Status), payment, order.UpdatedAt)
	if err != nil {
		return domain.Internal(err, op, "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(op, "order", order.ID)
	}
	return nil
}

// UpdateStatusIf implements domain.OrderRepository.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	const op = "postgres.order.update_status_if"

	id, err := parseID(op, "order", order.ID)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND ecommerce_id = $2 AND status = $5`,
		id, order.EcommerceID, string(order.Status), order.UpdatedAt, string(from))
	if err != nil {
		return false, domain.Internal(err, op, "failed to update order status")
	}
	return tag.RowsAffected() == 1, nil
}

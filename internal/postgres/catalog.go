package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

// =============================================================================
// PRODUCTS
// =============================================================================

// ProductRepository implements domain.ProductRepository.
type ProductRepository struct {
	db DBTX
}

var _ domain.ProductRepository = (*ProductRepository)(nil)

const productColumns = `id, ecommerce_id, product_type, name, description, images, price_cents, fields`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p      domain.Product
		id     uuid.UUID
		images []byte
		fields []byte
	)
	if err := row.Scan(&id, &p.EcommerceID, &p.ProductType, &p.Name, &p.Description, &images, &p.PriceCents, &fields); err != nil {
		return nil, err
	}
	p.ID = id.String()
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &p.Fields); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByID loads a product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (*domain.Product, error) {
	const op = "postgres.product.find"

	id, err := parseID(op, "product", productID)
	if err != nil {
		return nil, err
	}

	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "product", productID)
		}
		return nil, domain.Internal(err, op, "failed to get product")
	}
	return p, nil
}

// FindByIDs loads the products that exist among ids in one query.
func (r *ProductRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	const op = "postgres.product.find_many"

	uuids := make([]string, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			uuids = append(uuids, u.String())
		}
	}
	out := make(map[string]*domain.Product, len(uuids))
	if len(uuids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, uuids)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list products")
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to decode product")
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to iterate products")
	}
	return out, nil
}

// Insert stores a product. Used for seeding and tests.
func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	const op = "postgres.product.insert"

	images, err := json.Marshal(nonNil(p.Images))
	if err != nil {
		return domain.Internal(err, op, "failed to encode images")
	}
	fields, err := json.Marshal(nonNil(p.Fields))
	if err != nil {
		return domain.Internal(err, op, "failed to encode fields")
	}

	id := uuid.New()
	_, err = r.db.Exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, p.EcommerceID, p.ProductType, p.Name, p.Description, images, p.PriceCents, fields)
	if err != nil {
		return domain.Internal(err, op, "failed to insert product")
	}
	p.ID = id.String()
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// =============================================================================
// USERS
// =============================================================================

// UserRepository implements domain.UserRepository.
type UserRepository struct {
	db DBTX
}

var _ domain.UserRepository = (*UserRepository)(nil)

// FindByID loads a user.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	const op = "postgres.user.find"

	id, err := parseID(op, "user", userID)
	if err != nil {
		return nil, err
	}

	var (
		u       domain.User
		rowID   uuid.UUID
		address []byte
	)
	err = r.db.QueryRow(ctx,
		`SELECT id, whitelabel_id, name, email, tax_id, phone, address FROM users WHERE id = $1`, id,
	).Scan(&rowID, &u.WhitelabelID, &u.Name, &u.Email, &u.TaxID, &u.Phone, &address)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", userID)
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}

	u.ID = rowID.String()
	if err := json.Unmarshal(address, &u.Address); err != nil {
		return nil, domain.Internal(err, op, "failed to decode address")
	}
	return &u, nil
}

// Insert stores a user. Used for seeding and tests.
func (r *UserRepository) Insert(ctx context.Context, u *domain.User) error {
	const op = "postgres.user.insert"

	address, err := json.Marshal(u.Address)
	if err != nil {
		return domain.Internal(err, op, "failed to encode address")
	}

	id := uuid.New()
	_, err = r.db.Exec(ctx,
		`INSERT INTO users (id, whitelabel_id, name, email, tax_id, phone, address) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, u.WhitelabelID, u.Name, u.Email, u.TaxID, u.Phone, address)
	if err != nil {
		return domain.Internal(err, op, "failed to insert user")
	}
	u.ID = id.String()
	return nil
}

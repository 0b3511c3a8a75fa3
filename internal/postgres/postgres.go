// Package postgres implements the domain repositories on PostgreSQL.
//
// Carts and orders keep their line items as JSONB documents so both stores
// share one data model. Schema changes are goose migrations embedded in the
// binary.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dukerupert/cloudmerce/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX is the subset of pgx used by the repositories. Satisfied by
// *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// RunMigrations executes all pending database migrations.
func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return migrate(db)
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Store bundles the repositories that share one pool.
type Store struct {
	pool     *pgxpool.Pool
	Carts    *CartRepository
	Orders   *OrderRepository
	Products *ProductRepository
	Users    *UserRepository
}

// NewStore creates repositories over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:     pool,
		Carts:    &CartRepository{db: pool},
		Orders:   &OrderRepository{db: pool},
		Products: &ProductRepository{db: pool},
		Users:    &UserRepository{db: pool},
	}
}

// Ping checks connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// parseID validates a UUID. Malformed ids cannot exist in the table, so they
// are reported as not found.
func parseID(op, resource, id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, domain.NotFound(op, resource, id)
	}
	return u, nil
}

// storedItems encodes line items for a JSONB column. Carts keep only product
// ids; orders keep the product snapshot taken at checkout.
func storedItems(items []domain.LineItem, withProducts bool) ([]byte, error) {
	out := make([]domain.LineItem, len(items))
	for i, li := range items {
		if !withProducts {
			li.Product = nil
		}
		if li.FieldValues == nil {
			li.FieldValues = []domain.FieldSelection{}
		}
		out[i] = li
	}
	return json.Marshal(out)
}

func loadItems(raw []byte) ([]domain.LineItem, error) {
	items := []domain.LineItem{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

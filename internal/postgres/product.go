package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantran/selene/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that ProductStore implements domain.ProductStore.
var _ domain.ProductStore = (*ProductStore)(nil)

// NewProductStore creates a new PostgreSQL-backed product store.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// GetProduct returns a single product by id.
func (s *ProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var p domain.Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, price_cents, stock_quantity FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.PriceCents, &p.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "product.get", "failed to load product")
	}
	return &p, nil
}

// DecrementStock reduces stock by quantity with an optimistic guard: the
// update only matches rows holding at least the requested quantity, so a
// concurrent oversell leaves the row untouched and reports
// ErrInsufficientStock.
func (s *ProductStore) DecrementStock(ctx context.Context, id uuid.UUID, quantity int32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $2, updated_at = now()
		 WHERE id = $1 AND stock_quantity >= $2`, id, quantity)
	if err != nil {
		return domain.Internal(err, "product.decrement_stock", "failed to decrement stock")
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing product from an oversell.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
			return domain.Internal(err, "product.decrement_stock", "failed to check product")
		}
		if !exists {
			return domain.ErrProductNotFound
		}
		return domain.ErrInsufficientStock
	}
	return nil
}

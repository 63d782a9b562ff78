package domain

import (
	"context"

	"github.com/google/uuid"
)

// Product-related domain errors.
var (
	ErrProductNotFound = &Error{Code: ENOTFOUND, Message: "Product not found"}
)

// Product carries the fields the order core reads. Catalog management is
// a separate surface.
type Product struct {
	ID            uuid.UUID
	Name          string
	PriceCents    int64
	StockQuantity int32
}

// ProductStore is the persistence collaborator for product stock.
type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)

	// DecrementStock reduces stock by quantity, guarded by an optimistic
	// stock_quantity >= quantity check. Returns ErrInsufficientStock when
	// the guard fails and ErrProductNotFound when the product is gone.
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int32) error
}

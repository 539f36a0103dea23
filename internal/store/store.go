// Package store provides an interface for product storage operations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Product represents a product record as persisted by the store.
type Product struct {
	ID                uuid.UUID
	Name              string
	Description       string
	StockQuantity     int64
	LowStockThreshold int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateParams holds the fields for inserting a new product.
type CreateParams struct {
	Name              string
	Description       string
	StockQuantity     int64
	LowStockThreshold int64
}

// UpdateParams holds the fields for a partial product update.
// Nil fields are left untouched by the store.
type UpdateParams struct {
	Name              *string
	Description       *string
	StockQuantity     *int64
	LowStockThreshold *int64
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// Create adds a new product to the system.
	// Returns ErrInvalidProduct if a field constraint is violated.
	Create(ctx context.Context, params CreateParams) (*Product, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// FindLowStock returns the products where stock_quantity < low_stock_threshold,
	// evaluated as a single store-side predicate.
	FindLowStock(ctx context.Context) ([]Product, error)

	// Update applies the non-nil fields of params to an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID,
	// ErrInvalidProduct if an updated field violates a constraint.
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Product, error)

	// IncreaseStock atomically adds amount to a product's stock quantity.
	// Returns ErrProductNotFound if no product exists with the given ID.
	IncreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*Product, error)

	// DecreaseStock atomically subtracts amount from a product's stock quantity,
	// matching the record only if its current quantity is at least amount.
	// Returns ErrProductNotFound if no product exists with the given ID,
	// ErrInsufficientStock if the product exists but holds less than amount.
	DecreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*Product, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteAll removes every product and returns the number of records removed.
	DeleteAll(ctx context.Context) (int64, error)
}

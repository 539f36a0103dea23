package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	perrors "github.com/inventa/inventory/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// checkViolation is the SQLSTATE for a CHECK constraint violation.
const checkViolation = "23514"

const productColumns = "id, name, description, stock_quantity, low_stock_threshold, created_at, updated_at"

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{
		db: dbp,
	}
}

// Create adds a new product to the system.
// Returns ErrInvalidProduct if a field constraint is violated.
func (p *PgStore) Create(ctx context.Context, params CreateParams) (*Product, error) {
	query := `INSERT INTO products (name, description, stock_quantity, low_stock_threshold)
	          VALUES ($1, $2, $3, $4)
	          RETURNING ` + productColumns
	product, err := p.scanRow(p.db.QueryRow(ctx, query,
		params.Name, params.Description, params.StockQuantity, params.LowStockThreshold))
	if err != nil {
		if isCheckViolation(err) {
			return nil, perrors.ErrInvalidProduct
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return product, nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := p.scanRow(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// FindAll retrieves all products in insertion order.
// It returns a slice of products, which may be empty if no products exist.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at, id`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	defer rows.Close()
	return p.scanRows(rows)
}

// FindLowStock retrieves the products where stock_quantity < low_stock_threshold.
// The comparison runs store-side so the result is a single consistent snapshot.
func (p *PgStore) FindLowStock(ctx context.Context) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
	          WHERE stock_quantity < low_stock_threshold
	          ORDER BY created_at, id`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find low stock products: %w", err)
	}
	defer rows.Close()
	return p.scanRows(rows)
}

// Update applies the non-nil fields of params to an existing product.
// Returns ErrProductNotFound if no product exists with the given ID,
// ErrInvalidProduct if an updated field violates a constraint.
func (p *PgStore) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Product, error) {
	query := `UPDATE products
	          SET name                = COALESCE($2, name),
	              description         = COALESCE($3, description),
	              stock_quantity      = COALESCE($4, stock_quantity),
	              low_stock_threshold = COALESCE($5, low_stock_threshold),
	              updated_at          = now()
	          WHERE id = $1
	          RETURNING ` + productColumns
	product, err := p.scanRow(p.db.QueryRow(ctx, query,
		id, params.Name, params.Description, params.StockQuantity, params.LowStockThreshold))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		if isCheckViolation(err) {
			return nil, perrors.ErrInvalidProduct
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return product, nil
}

// IncreaseStock atomically adds amount to a product's stock quantity.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) IncreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*Product, error) {
	query := `UPDATE products
	          SET stock_quantity = stock_quantity + $2,
	              updated_at     = now()
	          WHERE id = $1
	          RETURNING ` + productColumns
	product, err := p.scanRow(p.db.QueryRow(ctx, query, id, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to increase stock: %w", err)
	}
	return product, nil
}

// DecreaseStock subtracts amount in a single conditional update: the row matches
// only while its current quantity covers the amount, so concurrent decrements
// can never drive stock_quantity negative.
func (p *PgStore) DecreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*Product, error) {
	query := `UPDATE products
	          SET stock_quantity = stock_quantity - $2,
	              updated_at     = now()
	          WHERE id = $1 AND stock_quantity >= $2
	          RETURNING ` + productColumns
	product, err := p.scanRow(p.db.QueryRow(ctx, query, id, amount))
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to decrease stock: %w", err)
	}

	// The conditional update matched nothing: either the product does not
	// exist or it holds less stock than requested. A delete between the
	// update and this check can misreport insufficient stock as not found;
	// the non-negativity guarantee does not depend on it.
	var exists bool
	if err := p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check product existence: %w", err)
	}
	if !exists {
		return nil, perrors.ErrProductNotFound
	}
	return nil, perrors.ErrInsufficientStock
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product by ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

// DeleteAll removes every product and returns the number of records removed.
func (p *PgStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM products`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all products: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PgStore) scanRow(row pgx.Row) (*Product, error) {
	var product Product
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.StockQuantity,
		&product.LowStockThreshold,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *PgStore) scanRows(rows pgx.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		product, err := p.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation
}

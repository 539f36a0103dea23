// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/inventa/inventory/internal/store"
	"github.com/inventa/inventory/pkg/messaging"
	"github.com/inventa/inventory/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// defaultLowStockThreshold is applied when a product is created without one.
const defaultLowStockThreshold = 5

// ProductService defines the methods for managing products and their stock.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// Create adds a new product to the system.
	// Returns ErrInvalidProduct if a field constraint is violated.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// FindByID retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error)

	// FindAll returns all products in insertion order.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]ProductDto, error)

	// FindLowStock returns the products whose stock quantity is below their
	// low-stock threshold, evaluated at query time.
	FindLowStock(ctx context.Context) ([]ProductDto, error)

	// Update applies the fields present in the DTO to an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id uuid.UUID, product ProductUpdateDto) (*ProductDto, error)

	// IncreaseStock atomically adds amount to a product's stock quantity.
	// Returns ErrProductNotFound if no product exists with the given ID.
	IncreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*ProductDto, error)

	// DecreaseStock atomically subtracts amount from a product's stock quantity.
	// Returns ErrProductNotFound if no product exists with the given ID,
	// ErrInsufficientStock if the product holds less stock than amount.
	DecreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*ProductDto, error)

	// DeleteByID removes a product by its ID.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id uuid.UUID) error

	// DeleteAll removes every product and returns the number of records removed.
	DeleteAll(ctx context.Context) (int64, error)
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository         store.ProductStore
	publisher          messaging.Publisher
	adjustmentsCounter metric.Int64Counter
}

// NewService creates a new instance of ProductService with the provided repository and publisher.
func NewService(repo store.ProductStore, publisher messaging.Publisher) *Service {
	meter := otel.Meter("inventory-service")
	adjustmentsCounter, err := meter.Int64Counter("stock_adjustments",
		metric.WithDescription("Total number of applied stock adjustments"))
	if err != nil {
		panic(fmt.Sprintf("failed to create stock_adjustments counter: %v", err))
	}
	return &Service{
		repository:         repo,
		publisher:          publisher,
		adjustmentsCounter: adjustmentsCounter,
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
// StockQuantity is a pointer so that an absent field is rejected while an
// explicit zero is accepted.
type ProductCreateDto struct {
	Name              string `json:"name"                validate:"required,max=200"`
	Description       string `json:"description"`
	StockQuantity     *int64 `json:"stock_quantity"      validate:"required,gte=0"`
	LowStockThreshold *int64 `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// ProductUpdateDto represents a partial product update. Only non-nil fields
// are applied; absent fields are never overwritten.
type ProductUpdateDto struct {
	Name              *string `json:"name"                validate:"omitempty,min=1,max=200"`
	Description       *string `json:"description"`
	StockQuantity     *int64  `json:"stock_quantity"      validate:"omitempty,gte=0"`
	LowStockThreshold *int64  `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

// StockAdjustDto represents the body of an increase-stock or decrease-stock request.
type StockAdjustDto struct {
	Stock *int64 `json:"stock" validate:"required,gt=0"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description,omitempty"`
	StockQuantity     int64     `json:"stock_quantity"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Create creates a new product and returns it as a ProductDto.
// The low-stock threshold defaults to 5 when not supplied.
func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	threshold := int64(defaultLowStockThreshold)
	if product.LowStockThreshold != nil {
		threshold = *product.LowStockThreshold
	}
	p, err := s.repository.Create(ctx, store.CreateParams{
		Name:              product.Name,
		Description:       product.Description,
		StockQuantity:     *product.StockQuantity,
		LowStockThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return toDto(p), nil
}

// FindByID retrieves a product by its ID and returns it as a ProductDto.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*ProductDto, error) {
	product, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}

	return toDto(product), nil
}

// FindAll retrieves a list of all products and returns them as ProductDTOs.
// Returns an empty slice if no products exist or error if the retrieval fails.
func (s *Service) FindAll(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return toDtos(products), nil
}

// FindLowStock retrieves the products below their low-stock threshold.
// Returns an empty slice if no products qualify.
func (s *Service) FindLowStock(ctx context.Context) ([]ProductDto, error) {
	products, err := s.repository.FindLowStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch low stock products: %w", err)
	}
	return toDtos(products), nil
}

// Update applies the fields present in the DTO and returns the updated product.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) Update(ctx context.Context, id uuid.UUID, product ProductUpdateDto) (*ProductDto, error) {
	updated, err := s.repository.Update(ctx, id, store.UpdateParams{
		Name:              product.Name,
		Description:       product.Description,
		StockQuantity:     product.StockQuantity,
		LowStockThreshold: product.LowStockThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update product with ID %s: %w", id, err)
	}

	return toDto(updated), nil
}

// IncreaseStock adds amount to a product's stock quantity and returns the updated product.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) IncreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*ProductDto, error) {
	product, err := s.repository.IncreaseStock(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to increase stock for product with ID %s: %w", id, err)
	}
	s.adjustmentsCounter.Add(ctx, 1)

	return toDto(product), nil
}

// DecreaseStock subtracts amount from a product's stock quantity and returns the updated product.
// Returns ErrProductNotFound if no product exists with the given ID,
// ErrInsufficientStock if the product holds less stock than amount.
func (s *Service) DecreaseStock(ctx context.Context, id uuid.UUID, amount int64) (*ProductDto, error) {
	product, err := s.repository.DecreaseStock(ctx, id, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to decrease stock for product with ID %s: %w", id, err)
	}
	s.adjustmentsCounter.Add(ctx, 1)

	if product.StockQuantity < product.LowStockThreshold {
		event := events.LowStockEvent{
			ProductID:         product.ID,
			Name:              product.Name,
			StockQuantity:     product.StockQuantity,
			LowStockThreshold: product.LowStockThreshold,
			OccurredAt:        time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			slog.ErrorContext(ctx, "Failed to publish LowStockEvent", "product_id", product.ID, "error", err)
		}
	}

	return toDto(product), nil
}

// DeleteByID deletes a product by its ID.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return s.repository.DeleteByID(ctx, id)
}

// DeleteAll removes every product and returns the number of records removed.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	count, err := s.repository.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete all products: %w", err)
	}
	return count, nil
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:                product.ID.String(),
		Name:              product.Name,
		Description:       product.Description,
		StockQuantity:     product.StockQuantity,
		LowStockThreshold: product.LowStockThreshold,
		CreatedAt:         product.CreatedAt,
		UpdatedAt:         product.UpdatedAt,
	}
}

func toDtos(products []store.Product) []ProductDto {
	productDTOs := make([]ProductDto, len(products))
	for i, item := range products {
		productDTOs[i] = *toDto(&item)
	}
	return productDTOs
}

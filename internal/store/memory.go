package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	perrors "github.com/inventa/inventory/internal/errors"
)

// inMemory implements ProductStore using an in-memory map.
// All mutations run under a single mutex, so the check-and-subtract of
// DecreaseStock is as indivisible here as the conditional UPDATE is in Postgres.
type inMemory struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
	order    []uuid.UUID
}

// NewInMemoryStore creates a new instance of ProductStore backed by memory.
func NewInMemoryStore() ProductStore {
	return &inMemory{
		products: make(map[uuid.UUID]Product),
	}
}

// Create adds a new product and returns it.
func (s *inMemory) Create(_ context.Context, params CreateParams) (*Product, error) {
	if params.StockQuantity < 0 || params.LowStockThreshold < 0 {
		return nil, perrors.ErrInvalidProduct
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	product := Product{
		ID:                uuid.New(),
		Name:              params.Name,
		Description:       params.Description,
		StockQuantity:     params.StockQuantity,
		LowStockThreshold: params.LowStockThreshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.products[product.ID] = product
	s.order = append(s.order, product.ID)

	return &product, nil
}

// FindByID retrieves a product by its ID.
func (s *inMemory) FindByID(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &product, nil
}

// FindAll retrieves all products in insertion order.
func (s *inMemory) FindAll(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0, len(s.order))
	for _, id := range s.order {
		list = append(list, s.products[id])
	}
	return list, nil
}

// FindLowStock retrieves the products where stock quantity is below the threshold.
func (s *inMemory) FindLowStock(_ context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Product, 0)
	for _, id := range s.order {
		if product := s.products[id]; product.StockQuantity < product.LowStockThreshold {
			list = append(list, product)
		}
	}
	return list, nil
}

// Update applies the non-nil fields of params to an existing product.
func (s *inMemory) Update(_ context.Context, id uuid.UUID, params UpdateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	if params.Name != nil {
		product.Name = *params.Name
	}
	if params.Description != nil {
		product.Description = *params.Description
	}
	if params.StockQuantity != nil {
		product.StockQuantity = *params.StockQuantity
	}
	if params.LowStockThreshold != nil {
		product.LowStockThreshold = *params.LowStockThreshold
	}
	if product.StockQuantity < 0 || product.LowStockThreshold < 0 {
		return nil, perrors.ErrInvalidProduct
	}
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return &product, nil
}

// IncreaseStock adds amount to a product's stock quantity.
func (s *inMemory) IncreaseStock(_ context.Context, id uuid.UUID, amount int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	product.StockQuantity += amount
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return &product, nil
}

// DecreaseStock subtracts amount only while the current quantity covers it.
func (s *inMemory) DecreaseStock(_ context.Context, id uuid.UUID, amount int64) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	if product.StockQuantity < amount {
		return nil, perrors.ErrInsufficientStock
	}
	product.StockQuantity -= amount
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product
	return &product, nil
}

// DeleteByID deletes a product by its ID.
func (s *inMemory) DeleteByID(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return perrors.ErrProductNotFound
	}
	delete(s.products, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteAll removes every product and returns the number of records removed.
func (s *inMemory) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.products))
	s.products = make(map[uuid.UUID]Product)
	s.order = nil
	return count, nil
}

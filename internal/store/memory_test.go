package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	perrors "github.com/inventa/inventory/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestProduct(t *testing.T, s ProductStore, name string, stock, threshold int64) *Product {
	t.Helper()
	product, err := s.Create(context.Background(), CreateParams{
		Name:              name,
		StockQuantity:     stock,
		LowStockThreshold: threshold,
	})
	require.NoError(t, err)
	return product
}

func Test_InMemoryStore_Create(t *testing.T) {
	// given
	s := NewInMemoryStore()
	// when
	product := newTestProduct(t, s, "Bolt", 10, 5)
	// then
	assert.NotEqual(t, uuid.Nil, product.ID)
	assert.Equal(t, "Bolt", product.Name)
	assert.Equal(t, int64(10), product.StockQuantity)
	assert.Equal(t, int64(5), product.LowStockThreshold)
	assert.False(t, product.CreatedAt.IsZero())
	assert.False(t, product.UpdatedAt.IsZero())
}

func Test_InMemoryStore_Create_RejectsNegativeValues(t *testing.T) {
	s := NewInMemoryStore()

	_, err := s.Create(context.Background(), CreateParams{Name: "Bolt", StockQuantity: -1})
	assert.ErrorIs(t, err, perrors.ErrInvalidProduct)

	_, err = s.Create(context.Background(), CreateParams{Name: "Bolt", StockQuantity: 1, LowStockThreshold: -1})
	assert.ErrorIs(t, err, perrors.ErrInvalidProduct)
}

func Test_InMemoryStore_FindAll_PreservesInsertionOrder(t *testing.T) {
	// given
	s := NewInMemoryStore()
	first := newTestProduct(t, s, "first", 1, 5)
	second := newTestProduct(t, s, "second", 2, 5)
	third := newTestProduct(t, s, "third", 3, 5)
	// when
	list, err := s.FindAll(context.Background())
	// then
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, third.ID, list[2].ID)
}

func Test_InMemoryStore_FindLowStock(t *testing.T) {
	// given
	s := NewInMemoryStore()
	newTestProduct(t, s, "plenty", 10, 5)
	low := newTestProduct(t, s, "scarce", 3, 5)
	newTestProduct(t, s, "boundary", 5, 5)
	// when
	list, err := s.FindLowStock(context.Background())
	// then
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, low.ID, list[0].ID)
}

func Test_InMemoryStore_Update_PartialFields(t *testing.T) {
	// given
	s := NewInMemoryStore()
	product := newTestProduct(t, s, "Bolt", 10, 5)
	// when
	updated, err := s.Update(context.Background(), product.ID, UpdateParams{Name: ptr("Nut")})
	// then
	require.NoError(t, err)
	assert.Equal(t, "Nut", updated.Name)
	assert.Equal(t, int64(10), updated.StockQuantity, "stock quantity should be untouched")
	assert.Equal(t, int64(5), updated.LowStockThreshold, "threshold should be untouched")
}

func Test_InMemoryStore_Update_Errors(t *testing.T) {
	s := NewInMemoryStore()
	product := newTestProduct(t, s, "Bolt", 10, 5)

	_, err := s.Update(context.Background(), uuid.New(), UpdateParams{Name: ptr("Nut")})
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)

	_, err = s.Update(context.Background(), product.ID, UpdateParams{StockQuantity: ptr(int64(-1))})
	assert.ErrorIs(t, err, perrors.ErrInvalidProduct)

	// failed update must not mutate the record
	found, err := s.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), found.StockQuantity)
}

func Test_InMemoryStore_IncreaseStock(t *testing.T) {
	// given
	s := NewInMemoryStore()
	product := newTestProduct(t, s, "Bolt", 10, 5)
	// when
	updated, err := s.IncreaseStock(context.Background(), product.ID, 7)
	// then
	require.NoError(t, err)
	assert.Equal(t, int64(17), updated.StockQuantity)

	_, err = s.IncreaseStock(context.Background(), uuid.New(), 7)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
}

func Test_InMemoryStore_DecreaseStock(t *testing.T) {
	// given
	s := NewInMemoryStore()
	product := newTestProduct(t, s, "Bolt", 10, 5)

	// when - exact quantity is allowed
	updated, err := s.DecreaseStock(context.Background(), product.ID, 10)
	// then
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.StockQuantity)

	// when - further decrement is refused and does not mutate
	_, err = s.DecreaseStock(context.Background(), product.ID, 1)
	assert.ErrorIs(t, err, perrors.ErrInsufficientStock)
	found, err := s.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), found.StockQuantity)

	_, err = s.DecreaseStock(context.Background(), uuid.New(), 1)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
}

// Concurrent decrements requesting more than the available quantity must never
// drive the stock negative, and the applied total must never exceed it.
func Test_InMemoryStore_DecreaseStock_Concurrent(t *testing.T) {
	// given
	s := NewInMemoryStore()
	const (
		initial = int64(100)
		amount  = int64(3)
		workers = 50
	)
	product := newTestProduct(t, s, "Bolt", initial, 5)

	// when
	var successes atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			if _, err := s.DecreaseStock(context.Background(), product.ID, amount); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	// then
	found, err := s.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, found.StockQuantity, int64(0), "stock must never go negative")
	assert.LessOrEqual(t, successes.Load()*amount, initial, "applied total must not exceed initial stock")
	assert.Equal(t, initial-successes.Load()*amount, found.StockQuantity)
}

func Test_InMemoryStore_DeleteByID(t *testing.T) {
	s := NewInMemoryStore()
	product := newTestProduct(t, s, "Bolt", 10, 5)

	require.NoError(t, s.DeleteByID(context.Background(), product.ID))
	assert.ErrorIs(t, s.DeleteByID(context.Background(), product.ID), perrors.ErrProductNotFound)

	list, err := s.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func Test_InMemoryStore_DeleteAll(t *testing.T) {
	// given
	s := NewInMemoryStore()
	newTestProduct(t, s, "one", 1, 5)
	newTestProduct(t, s, "two", 2, 5)
	// when
	count, err := s.DeleteAll(context.Background())
	// then
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	list, err := s.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	perrors "github.com/inventa/inventory/internal/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "INVENTORY_SKIP_INTEGRATION_TESTS"

// ProductStoreSuite is a test suite for the PgStore implementation.
type ProductStoreSuite struct {
	suite.Suite                             // Embedding testify suite for structured testing
	pgContainer *postgres.PostgresContainer // PostgreSQL container for integration tests
	dbPool      *pgxpool.Pool               // PostgreSQL connection pool for integration tests
	store       ProductStore                //
	logger      *slog.Logger                // Logger for the test suite
	ctx         context.Context             // Context for the test suite, used for cancellation and timeouts
}

// SetupSuite initializes the test suite by setting up a PostgreSQL container.
func (s *ProductStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	dbName := "inventory_db"
	dbUser := "user"
	dbPassword := "password"

	// 1. Start a PostgreSQL container with the specified configuration. Wait for the container to be ready.
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		// Wait for a specific log message indicating the database service is ready.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		// Ensure the container is ready to accept connections on the default PostgreSQL port.
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	// 2. Get the connection string from the container
	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 3. create a new pgxpool instance using the connection string
	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	// 3.1 Ping the database to ensure the connection is established
	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		err = s.dbPool.Ping(s.ctx)
		if err == nil {
			break
		}
		time.Sleep(time.Second * 2)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	// 4. Database migration
	wd, _ := os.Getwd()
	migrationsPath := filepath.Join(wd, "../../migrations")
	sourceURL := "file://" + migrationsPath
	m, err := migrate.New(sourceURL, connStr)
	require.NoError(s.T(), err, "Failed to create migrate instance")
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		require.NoError(s.T(), err, "Failed to apply migrations")
	}
	s.logger.Info("Migrations applied for integration tests")

	s.store = NewPgStore(s.dbPool)
	s.logger.Info("Initialization complete for ProductStoreSuite")
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *ProductStoreSuite) TearDownSuite() {
	s.logger.Info("Tearing down suite...")
	if s.dbPool != nil {
		s.dbPool.Close()
		s.logger.Info("DB pool closed.")
	}
	if s.pgContainer != nil {
		s.logger.Info("Terminating PostgreSQL container...")
		err := s.pgContainer.Terminate(s.ctx)
		if err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		} else {
			s.logger.Info("PostgreSQL container terminated.")
		}
	}
}

// SetupTest prepares the database for each test by truncating the products table.
func (s *ProductStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products")
	require.NoError(s.T(), err, "Failed to truncate products table")
}

// TestProductStoreIntegration runs the PgStore integration tests.
func TestProductStoreIntegration(t *testing.T) {
	// Skip integration tests if the environment variable is set
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	// Run the test suite
	suite.Run(t, new(ProductStoreSuite))
}

// createProduct is a helper function to create a product for testing purposes.
func (s *ProductStoreSuite) createProduct(name string, stock, threshold int64) *Product {
	s.T().Helper()
	product, err := s.store.Create(s.ctx, CreateParams{
		Name:              name,
		StockQuantity:     stock,
		LowStockThreshold: threshold,
	})
	require.NoError(s.T(), err, "createProduct helper failed to create product")
	return product
}

func (s *ProductStoreSuite) TestCreate() {
	s.SetupTest()
	// when
	created, err := s.store.Create(s.ctx, CreateParams{
		Name:              "Bolt",
		Description:       "M8 bolt",
		StockQuantity:     10,
		LowStockThreshold: 5,
	})

	// then
	require.NoError(s.T(), err, "Create should not return an error")
	require.NotEqual(s.T(), uuid.Nil, created.ID, "Created product ID should be set")
	require.Equal(s.T(), "Bolt", created.Name)
	require.Equal(s.T(), "M8 bolt", created.Description)
	require.Equal(s.T(), int64(10), created.StockQuantity)
	require.Equal(s.T(), int64(5), created.LowStockThreshold)
	require.False(s.T(), created.CreatedAt.IsZero(), "CreatedAt should be set")
	require.False(s.T(), created.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func (s *ProductStoreSuite) TestCreate_NegativeStockRejected() {
	s.SetupTest()
	// when
	_, err := s.store.Create(s.ctx, CreateParams{Name: "Bolt", StockQuantity: -1, LowStockThreshold: 5})
	// then
	require.ErrorIs(s.T(), err, perrors.ErrInvalidProduct)
}

func (s *ProductStoreSuite) TestFindByID() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)
	// when
	found, err := s.store.FindByID(s.ctx, created.ID)
	// then
	require.NoError(s.T(), err)
	require.Equal(s.T(), created.ID, found.ID)
	require.Equal(s.T(), created.Name, found.Name)

	_, err = s.store.FindByID(s.ctx, uuid.New())
	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestFindAll_InsertionOrder() {
	s.SetupTest()
	// given
	first := s.createProduct("first", 1, 5)
	second := s.createProduct("second", 2, 5)
	// when
	list, err := s.store.FindAll(s.ctx)
	// then
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 2)
	require.Equal(s.T(), first.ID, list[0].ID)
	require.Equal(s.T(), second.ID, list[1].ID)
}

func (s *ProductStoreSuite) TestFindLowStock() {
	s.SetupTest()
	// given
	s.createProduct("plenty", 10, 5)
	low := s.createProduct("scarce", 3, 5)
	s.createProduct("boundary", 5, 5)
	// when
	list, err := s.store.FindLowStock(s.ctx)
	// then
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	require.Equal(s.T(), low.ID, list[0].ID)
}

func (s *ProductStoreSuite) TestUpdate_PartialFields() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)
	name := "Nut"
	// when
	updated, err := s.store.Update(s.ctx, created.ID, UpdateParams{Name: &name})
	// then
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Nut", updated.Name)
	require.Equal(s.T(), int64(10), updated.StockQuantity, "stock quantity should be untouched")
	require.Equal(s.T(), int64(5), updated.LowStockThreshold, "threshold should be untouched")
	require.True(s.T(), updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))
}

func (s *ProductStoreSuite) TestUpdate_Errors() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)
	name := "Nut"
	negative := int64(-1)

	// when / then
	_, err := s.store.Update(s.ctx, uuid.New(), UpdateParams{Name: &name})
	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)

	_, err = s.store.Update(s.ctx, created.ID, UpdateParams{StockQuantity: &negative})
	require.ErrorIs(s.T(), err, perrors.ErrInvalidProduct)

	// failed update must not mutate the record
	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(10), found.StockQuantity)
}

func (s *ProductStoreSuite) TestIncreaseStock() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)
	// when
	updated, err := s.store.IncreaseStock(s.ctx, created.ID, 7)
	// then
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(17), updated.StockQuantity)

	_, err = s.store.IncreaseStock(s.ctx, uuid.New(), 7)
	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestDecreaseStock() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)

	// when - exact quantity is allowed
	updated, err := s.store.DecreaseStock(s.ctx, created.ID, 10)
	// then
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(0), updated.StockQuantity)

	// when - further decrement is refused and does not mutate
	_, err = s.store.DecreaseStock(s.ctx, created.ID, 1)
	require.ErrorIs(s.T(), err, perrors.ErrInsufficientStock)
	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(0), found.StockQuantity)

	_, err = s.store.DecreaseStock(s.ctx, uuid.New(), 1)
	require.ErrorIs(s.T(), err, perrors.ErrProductNotFound)
}

// Concurrent decrements requesting more than the available quantity must never
// drive the stock negative, and the applied total must never exceed it.
func (s *ProductStoreSuite) TestDecreaseStock_Concurrent() {
	s.SetupTest()
	// given
	const (
		initial = int64(100)
		amount  = int64(3)
		workers = 50
	)
	created := s.createProduct("Bolt", initial, 5)

	// when
	var successes atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			if _, err := s.store.DecreaseStock(s.ctx, created.ID, amount); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	// then
	found, err := s.store.FindByID(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.GreaterOrEqual(s.T(), found.StockQuantity, int64(0), "stock must never go negative")
	assert.LessOrEqual(s.T(), successes.Load()*amount, initial, "applied total must not exceed initial stock")
	assert.Equal(s.T(), initial-successes.Load()*amount, found.StockQuantity)
}

func (s *ProductStoreSuite) TestDeleteByID() {
	s.SetupTest()
	// given
	created := s.createProduct("Bolt", 10, 5)
	// when / then
	require.NoError(s.T(), s.store.DeleteByID(s.ctx, created.ID))
	require.ErrorIs(s.T(), s.store.DeleteByID(s.ctx, created.ID), perrors.ErrProductNotFound)
}

func (s *ProductStoreSuite) TestDeleteAll() {
	s.SetupTest()
	// given
	s.createProduct("one", 1, 5)
	s.createProduct("two", 2, 5)
	// when
	count, err := s.store.DeleteAll(s.ctx)
	// then
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(2), count)

	list, err := s.store.FindAll(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), list)
}

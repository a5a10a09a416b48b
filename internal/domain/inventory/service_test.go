package inventory

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/storefront/internal/domain/product"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&product.Category{}, &product.Product{}, &product.ProductColor{}))
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, stock int, active bool) *product.Product {
	t.Helper()
	prod := &product.Product{Name: "Widget", Price: 5000, Stock: stock, CategoryID: 1, IsActive: active}
	require.NoError(t, db.Create(prod).Error)
	return prod
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var prod product.Product
	require.NoError(t, db.Unscoped().First(&prod, id).Error)
	return prod.Stock
}

func TestReserveDecrementsStock(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 10, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []Line{{ProductID: prod.ID, ProductName: prod.Name, Quantity: 4}})
	})
	require.NoError(t, err)
	assert.Equal(t, 6, stockOf(t, db, prod.ID))
}

func TestReserveInsufficientStockRollsBack(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	first := seedProduct(t, db, 10, true)
	second := seedProduct(t, db, 1, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []Line{
			{ProductID: first.ID, Quantity: 5},
			{ProductID: second.ID, Quantity: 2},
		})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// All or nothing: the first decrement rolled back with the failure
	assert.Equal(t, 10, stockOf(t, db, first.ID))
	assert.Equal(t, 1, stockOf(t, db, second.ID))
}

func TestReserveRejectsInactiveProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 10, false)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []Line{{ProductID: prod.ID, Quantity: 1}})
	})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestReserveRejectsUnknownProduct(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []Line{{ProductID: 999, ProductName: "Ghost", Quantity: 1}})
	})
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestReserveExactStockToZero(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 3, true)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []Line{{ProductID: prod.ID, Quantity: 3}})
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, db, prod.ID))
}

func TestCheckDoesNotMutate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 5, true)

	require.NoError(t, svc.Check([]Line{{ProductID: prod.ID, Quantity: 5}}))
	assert.Equal(t, 5, stockOf(t, db, prod.ID))

	err := svc.Check([]Line{{ProductID: prod.ID, Quantity: 6}})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestRestockSurvivesSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 2, true)
	require.NoError(t, db.Delete(prod).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Restock(tx, []Line{{ProductID: prod.ID, Quantity: 3}})
	})
	require.NoError(t, err)
	assert.Equal(t, 5, stockOf(t, db, prod.ID))
}

func TestReserveRestockRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	prod := seedProduct(t, db, 7, true)
	lines := []Line{{ProductID: prod.ID, Quantity: 4}}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, lines)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Restock(tx, lines)
	}))
	assert.Equal(t, 7, stockOf(t, db, prod.ID))
}

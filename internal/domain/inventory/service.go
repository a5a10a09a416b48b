// internal/domain/inventory/service.go
package inventory

import (
	"errors"
	"fmt"

	"github.com/your-org/storefront/internal/domain/product"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientStock is returned when a line cannot be covered by stock
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductUnavailable is returned when a product is deleted or inactive
	ErrProductUnavailable = errors.New("product unavailable")
)

// Line is one stock mutation request
type Line struct {
	ProductID   uint
	ProductName string
	Quantity    int
}

// Service guards all stock mutations. Reserve and Restock are the only
// stock-mutating paths in the system and must run inside the same
// transaction as the order/payment mutation they accompany.
type Service struct {
	db *gorm.DB
}

// NewService creates a new inventory service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Reserve checks and decrements stock for every line, all-or-nothing within
// the caller's transaction. Each product row is locked before the check, and
// the decrement is conditional on remaining stock so concurrent commits
// cannot oversell.
func (s *Service) Reserve(tx *gorm.DB, lines []Line) error {
	for _, line := range lines {
		var prod product.Product
		err := withRowLock(tx).
			Where("id = ?", line.ProductID).
			First(&prod).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %q (id %d): %w", line.ProductName, line.ProductID, ErrProductUnavailable)
			}
			return fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
		}

		if !prod.IsActive {
			return fmt.Errorf("product %q is no longer available: %w", prod.Name, ErrProductUnavailable)
		}

		if prod.Stock < line.Quantity {
			return fmt.Errorf("product %q has %d in stock, %d requested: %w",
				prod.Name, prod.Stock, line.Quantity, ErrInsufficientStock)
		}

		result := tx.Model(&product.Product{}).
			Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
			UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
		if result.Error != nil {
			return fmt.Errorf("failed to decrement stock for product %d: %w", line.ProductID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("product %q stock changed under us: %w", prod.Name, ErrInsufficientStock)
		}
	}

	return nil
}

// Check verifies every line could be covered by live stock without mutating
// anything. Used by the prepare phase, where nothing may be persisted yet.
func (s *Service) Check(lines []Line) error {
	for _, line := range lines {
		var prod product.Product
		err := s.db.Where("id = ?", line.ProductID).First(&prod).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %q (id %d): %w", line.ProductName, line.ProductID, ErrProductUnavailable)
			}
			return fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
		}
		if !prod.IsActive {
			return fmt.Errorf("product %q is no longer available: %w", prod.Name, ErrProductUnavailable)
		}
		if prod.Stock < line.Quantity {
			return fmt.Errorf("product %q has %d in stock, %d requested: %w",
				prod.Name, prod.Stock, line.Quantity, ErrInsufficientStock)
		}
	}
	return nil
}

// withRowLock adds SELECT ... FOR UPDATE where the dialect supports it.
// SQLite has no row locks; its writes are serialized anyway.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Restock returns quantities to the stock pool on cancel or refund. It works
// by product id and succeeds even when the product was since soft-deleted.
func (s *Service) Restock(tx *gorm.DB, lines []Line) error {
	for _, line := range lines {
		result := tx.Unscoped().Model(&product.Product{}).
			Where("id = ?", line.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", line.Quantity))
		if result.Error != nil {
			return fmt.Errorf("failed to restock product %d: %w", line.ProductID, result.Error)
		}
	}

	return nil
}

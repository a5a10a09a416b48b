// internal/domain/cart/service.go
package cart

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/discount"
	"github.com/your-org/storefront/internal/domain/product"
	"gorm.io/gorm"
)

var (
	// ErrProductNotFound is returned when the requested product does not exist
	ErrProductNotFound = errors.New("product not found")
	// ErrColorNotAvailable is returned for a color the product does not offer
	ErrColorNotAvailable = errors.New("color not available for this product")
	// ErrItemNotFound is returned when the cart has no matching line
	ErrItemNotFound = errors.New("item not found in cart")
	// ErrQuantityLimit is returned when a line would exceed the per-line cap
	ErrQuantityLimit = errors.New("quantity limit exceeded")
	// ErrInsufficientStock is returned when a line exceeds live stock
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Service handles cart business logic
type Service struct {
	db        *gorm.DB
	config    *config.Config
	discounts *discount.Service
	log       *logrus.Logger
}

// NewService creates a new cart service
func NewService(db *gorm.DB, cfg *config.Config, discounts *discount.Service, log *logrus.Logger) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		discounts: discounts,
		log:       log,
	}
}

// AddItemRequest represents an add-to-cart request
type AddItemRequest struct {
	ProductID     uint   `json:"product_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,min=1"`
	SelectedColor string `json:"selected_color"`
}

// GetOrCreate returns the cart for a session, creating an empty one on first touch
func (s *Service) GetOrCreate(sessionID string) (*Cart, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	var c Cart
	err := s.db.Preload("Items").Preload("Items.Product").
		Where("session_id = ?", sessionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = Cart{SessionID: sessionID, Items: []CartItem{}}
		if err := s.db.Create(&c).Error; err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
		return &c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	return &c, nil
}

// AddItem adds a product line to the cart, summing quantities for an existing
// (product, color) line. The combined quantity is validated against live
// stock and the configured per-line cap.
func (s *Service) AddItem(sessionID string, req *AddItemRequest) (*Cart, error) {
	prod, err := s.loadProduct(req.ProductID)
	if err != nil {
		return nil, err
	}

	if req.SelectedColor != "" && !prod.HasColor(req.SelectedColor) {
		return nil, fmt.Errorf("product %q: %w", prod.Name, ErrColorNotAvailable)
	}

	c, err := s.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	newQuantity := req.Quantity
	existing := findItem(c.Items, req.ProductID, req.SelectedColor)
	if existing != nil {
		newQuantity += existing.Quantity
	}

	if err := s.checkLineQuantity(prod, newQuantity); err != nil {
		return nil, err
	}

	if existing != nil {
		existing.Quantity = newQuantity
		if err := s.db.Save(existing).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	} else {
		item := CartItem{
			CartID:          c.ID,
			ProductID:       prod.ID,
			SelectedColor:   req.SelectedColor,
			Quantity:        req.Quantity,
			UnitPrice:       prod.FinalPrice(),
			OriginalPrice:   prod.Price,
			DiscountPercent: prod.DiscountPercent,
		}
		if err := s.db.Create(&item).Error; err != nil {
			return nil, fmt.Errorf("failed to create cart item: %w", err)
		}
	}

	return s.recomputeAndReload(sessionID)
}

// UpdateItemQuantity sets the quantity of a line; zero or less removes it
func (s *Service) UpdateItemQuantity(sessionID string, productID uint, selectedColor string, quantity int) (*Cart, error) {
	c, err := s.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	item := findItem(c.Items, productID, selectedColor)
	if item == nil {
		return nil, ErrItemNotFound
	}

	if quantity <= 0 {
		if err := s.db.Delete(&CartItem{}, item.ID).Error; err != nil {
			return nil, fmt.Errorf("failed to remove cart item: %w", err)
		}
		return s.recomputeAndReload(sessionID)
	}

	prod, err := s.loadProduct(productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLineQuantity(prod, quantity); err != nil {
		return nil, err
	}

	item.Quantity = quantity
	if err := s.db.Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.recomputeAndReload(sessionID)
}

// RemoveItem removes a line from the cart
func (s *Service) RemoveItem(sessionID string, productID uint, selectedColor string) (*Cart, error) {
	return s.UpdateItemQuantity(sessionID, productID, selectedColor, 0)
}

// Clear removes all items, the discount and totals from the session's cart
func (s *Service) Clear(sessionID string) error {
	return s.ClearTx(s.db, sessionID)
}

// ClearTx clears the cart inside an existing transaction, so order commit can
// destroy the cart atomically with order creation.
func (s *Service) ClearTx(tx *gorm.DB, sessionID string) error {
	var c Cart
	err := tx.Where("session_id = ?", sessionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart for clearing: %w", err)
	}

	if err := tx.Where("cart_id = ?", c.ID).Delete(&CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	return tx.Model(&Cart{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"sub_total":       0,
		"discount_code":   "",
		"discount_amount": 0,
		"total":           0,
	}).Error
}

// ApplyDiscount validates a code against the current subtotal and stores it
// on the cart. The validation result is returned so the caller can surface
// the rejection reason verbatim.
func (s *Service) ApplyDiscount(sessionID, code string) (*Cart, *discount.ValidationResult, error) {
	c, err := s.GetOrCreate(sessionID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.discounts.Validate(code, sessionID, c.SubTotal)
	if err != nil {
		return nil, nil, err
	}
	if !result.IsValid {
		return c, result, nil
	}

	c.DiscountCode = result.Code
	if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).
		Update("discount_code", result.Code).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to store discount code: %w", err)
	}

	updated, err := s.recomputeAndReload(sessionID)
	return updated, result, err
}

// RemoveDiscount clears the stored discount code
func (s *Service) RemoveDiscount(sessionID string) (*Cart, error) {
	c, err := s.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).
		Update("discount_code", "").Error; err != nil {
		return nil, fmt.Errorf("failed to remove discount code: %w", err)
	}

	return s.recomputeAndReload(sessionID)
}

// Validate re-checks every line against live stock and deletion, silently
// dropping lines that no longer hold, and recomputes totals.
func (s *Service) Validate(sessionID string) (*Cart, error) {
	c, err := s.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	for i := range c.Items {
		item := &c.Items[i]
		prod, err := s.loadProduct(item.ProductID)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"session_id": sessionID,
				"product_id": item.ProductID,
			}).Info("Dropping unavailable product from cart")
			if err := s.db.Delete(&CartItem{}, item.ID).Error; err != nil {
				return nil, fmt.Errorf("failed to drop cart item: %w", err)
			}
			continue
		}

		if prod.Stock < item.Quantity {
			if prod.Stock <= 0 {
				if err := s.db.Delete(&CartItem{}, item.ID).Error; err != nil {
					return nil, fmt.Errorf("failed to drop cart item: %w", err)
				}
				continue
			}
			item.Quantity = prod.Stock
			if err := s.db.Save(item).Error; err != nil {
				return nil, fmt.Errorf("failed to cap cart item quantity: %w", err)
			}
		}
	}

	return s.recomputeAndReload(sessionID)
}

// Merge absorbs the source session's cart into the target session's cart,
// summing quantities on matching (product, color) lines capped at the
// per-line limit and live stock, then destroys the source cart.
func (s *Service) Merge(sourceSessionID, targetSessionID string) (*Cart, error) {
	var source Cart
	err := s.db.Preload("Items").Where("session_id = ?", sourceSessionID).First(&source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(source.Items) == 0) {
		return s.GetOrCreate(targetSessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source cart: %w", err)
	}

	target, err := s.GetOrCreate(targetSessionID)
	if err != nil {
		return nil, err
	}

	for _, srcItem := range source.Items {
		prod, err := s.loadProduct(srcItem.ProductID)
		if err != nil {
			continue // Dead products are not carried over
		}

		existing := findItem(target.Items, srcItem.ProductID, srcItem.SelectedColor)
		if existing != nil {
			merged := existing.Quantity + srcItem.Quantity
			if cap := s.maxLineQuantity(prod); merged > cap {
				merged = cap
			}
			existing.Quantity = merged
			if err := s.db.Save(existing).Error; err != nil {
				return nil, fmt.Errorf("failed to merge cart item: %w", err)
			}
		} else {
			qty := srcItem.Quantity
			if cap := s.maxLineQuantity(prod); qty > cap {
				qty = cap
			}
			moved := CartItem{
				CartID:          target.ID,
				ProductID:       srcItem.ProductID,
				SelectedColor:   srcItem.SelectedColor,
				Quantity:        qty,
				UnitPrice:       prod.FinalPrice(),
				OriginalPrice:   prod.Price,
				DiscountPercent: prod.DiscountPercent,
			}
			if err := s.db.Create(&moved).Error; err != nil {
				return nil, fmt.Errorf("failed to move cart item: %w", err)
			}
		}
	}

	if err := s.db.Where("cart_id = ?", source.ID).Delete(&CartItem{}).Error; err != nil {
		return nil, fmt.Errorf("failed to clear source cart items: %w", err)
	}
	if err := s.db.Delete(&Cart{}, source.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to delete source cart: %w", err)
	}

	return s.recomputeAndReload(targetSessionID)
}

// Snapshot produces the immutable priced view consumed by order creation.
// Totals are recomputed first so the snapshot reflects live prices.
func (s *Service) Snapshot(sessionID string) (*Snapshot, error) {
	c, err := s.recomputeAndReload(sessionID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		SessionID:      c.SessionID,
		Items:          make([]SnapshotItem, 0, len(c.Items)),
		SubTotal:       c.SubTotal,
		DiscountCode:   c.DiscountCode,
		DiscountAmount: c.DiscountAmount,
		Total:          c.Total,
	}

	for _, item := range c.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		snap.Items = append(snap.Items, SnapshotItem{
			ProductID:       item.ProductID,
			ProductName:     name,
			SelectedColor:   item.SelectedColor,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			OriginalPrice:   item.OriginalPrice,
			DiscountPercent: item.DiscountPercent,
			LineTotal:       item.LineTotal(),
		})
	}

	return snap, nil
}

// Private helper methods

// recomputeAndReload refreshes unit prices from live products, re-validates
// the stored discount against the new subtotal (silently clearing it when it
// no longer applies) and persists the cart totals.
func (s *Service) recomputeAndReload(sessionID string) (*Cart, error) {
	var c Cart
	err := s.db.Preload("Items").Preload("Items.Product").
		Where("session_id = ?", sessionID).First(&c).Error
	if err != nil {
		return nil, fmt.Errorf("failed to reload cart: %w", err)
	}

	var subtotal int64
	for i := range c.Items {
		item := &c.Items[i]
		if prod, err := s.loadProduct(item.ProductID); err == nil {
			if item.UnitPrice != prod.FinalPrice() || item.OriginalPrice != prod.Price {
				item.UnitPrice = prod.FinalPrice()
				item.OriginalPrice = prod.Price
				item.DiscountPercent = prod.DiscountPercent
				if err := s.db.Save(item).Error; err != nil {
					return nil, fmt.Errorf("failed to refresh cart item price: %w", err)
				}
			}
		}
		subtotal += item.LineTotal()
	}

	discountAmount := int64(0)
	discountCode := c.DiscountCode
	if discountCode != "" {
		result, err := s.discounts.Validate(discountCode, sessionID, subtotal)
		if err != nil {
			return nil, err
		}
		if result.IsValid {
			discountAmount = result.Amount
		} else {
			// Invalid discounts are silently cleared on recomputation
			discountCode = ""
		}
	}

	total := subtotal - discountAmount
	if total < 0 {
		total = 0
	}

	if err := s.db.Model(&Cart{}).Where("id = ?", c.ID).Updates(map[string]interface{}{
		"sub_total":       subtotal,
		"discount_code":   discountCode,
		"discount_amount": discountAmount,
		"total":           total,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to persist cart totals: %w", err)
	}

	c.SubTotal = subtotal
	c.DiscountCode = discountCode
	c.DiscountAmount = discountAmount
	c.Total = total

	return &c, nil
}

func (s *Service) loadProduct(productID uint) (*product.Product, error) {
	var prod product.Product
	err := s.db.Preload("Colors").
		Where("id = ? AND is_active = ?", productID, true).
		First(&prod).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &prod, nil
}

func (s *Service) checkLineQuantity(prod *product.Product, quantity int) error {
	if quantity > s.config.Cart.MaxQuantityPerItem {
		return fmt.Errorf("at most %d units of %q per order: %w",
			s.config.Cart.MaxQuantityPerItem, prod.Name, ErrQuantityLimit)
	}
	if quantity > prod.Stock {
		return fmt.Errorf("product %q has only %d in stock: %w", prod.Name, prod.Stock, ErrInsufficientStock)
	}
	return nil
}

func (s *Service) maxLineQuantity(prod *product.Product) int {
	cap := s.config.Cart.MaxQuantityPerItem
	if prod.Stock < cap {
		cap = prod.Stock
	}
	return cap
}

func findItem(items []CartItem, productID uint, selectedColor string) *CartItem {
	for i := range items {
		if items[i].ProductID == productID && items[i].SelectedColor == selectedColor {
			return &items[i]
		}
	}
	return nil
}

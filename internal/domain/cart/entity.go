// internal/domain/cart/entity.go
package cart

import (
	"time"

	"github.com/your-org/storefront/internal/domain/product"
)

// Cart represents a guest's working basket, keyed by the browser session id.
// Totals are recomputed and persisted on every mutation.
type Cart struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SessionID      string    `gorm:"uniqueIndex;not null;size:64" json:"session_id"`
	SubTotal       int64     `gorm:"not null;default:0" json:"sub_total"`        // In cents
	DiscountCode   string    `gorm:"size:50" json:"discount_code"`
	DiscountAmount int64     `gorm:"not null;default:0" json:"discount_amount"`
	Total          int64     `gorm:"not null;default:0" json:"total"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relationships
	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
}

// CartItem is a (cart, product, color) line with price snapshots taken at the
// last totals recomputation.
type CartItem struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CartID          uint      `gorm:"not null;uniqueIndex:idx_cart_product_color" json:"cart_id"`
	ProductID       uint      `gorm:"not null;uniqueIndex:idx_cart_product_color;index" json:"product_id"`
	SelectedColor   string    `gorm:"size:50;uniqueIndex:idx_cart_product_color" json:"selected_color"`
	Quantity        int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice       int64     `gorm:"not null" json:"unit_price"`     // Final price in cents
	OriginalPrice   int64     `gorm:"not null" json:"original_price"` // Pre-discount price in cents
	DiscountPercent int       `gorm:"default:0" json:"discount_percent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Product *product.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName overrides
func (Cart) TableName() string     { return "carts" }
func (CartItem) TableName() string { return "cart_items" }

// LineTotal returns quantity times the snapshotted unit price
func (i *CartItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Snapshot is the immutable priced view of a cart consumed by order creation.
type Snapshot struct {
	SessionID      string         `json:"session_id"`
	Items          []SnapshotItem `json:"items"`
	SubTotal       int64          `json:"sub_total"`
	DiscountCode   string         `json:"discount_code,omitempty"`
	DiscountAmount int64          `json:"discount_amount"`
	Total          int64          `json:"total"`
}

// SnapshotItem is one priced line of a cart snapshot.
type SnapshotItem struct {
	ProductID       uint   `json:"product_id"`
	ProductName     string `json:"product_name"`
	SelectedColor   string `json:"selected_color,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       int64  `json:"unit_price"`
	OriginalPrice   int64  `json:"original_price"`
	DiscountPercent int    `json:"discount_percent"`
	LineTotal       int64  `json:"line_total"`
}

// internal/domain/discount/entity.go
package discount

import (
	"time"

	"gorm.io/gorm"
)

// DiscountType represents how a discount value is interpreted
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Discount represents a discount code
type Discount struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	Code               string       `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Type               DiscountType `gorm:"not null" json:"type"`
	Value              int64        `gorm:"not null" json:"value"` // Percent for percentage type, cents for fixed
	MinimumOrderAmount int64        `gorm:"default:0" json:"minimum_order_amount"`
	StartDate          time.Time    `gorm:"not null" json:"start_date"`
	ExpiryDate         *time.Time   `json:"expiry_date"`
	IsActive           bool         `gorm:"default:true" json:"is_active"`
	UsageLimit         int          `gorm:"default:0" json:"usage_limit"` // 0 means unlimited
	UsageLimitPerGuest int          `gorm:"default:0" json:"usage_limit_per_guest"`
	UsageCount         int          `gorm:"default:0" json:"usage_count"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// DiscountUsage tracks per-session consumption of a discount code,
// independent of the discount's global usage counter.
type DiscountUsage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DiscountID uint      `gorm:"not null;uniqueIndex:idx_discount_session" json:"discount_id"`
	SessionID  string    `gorm:"not null;size:64;uniqueIndex:idx_discount_session" json:"session_id"`
	GuestEmail string    `gorm:"size:255" json:"guest_email"`
	UsageCount int       `gorm:"not null;default:0" json:"usage_count"`
	FirstUsedAt time.Time `json:"first_used_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// TableName overrides
func (Discount) TableName() string      { return "discounts" }
func (DiscountUsage) TableName() string { return "discount_usages" }

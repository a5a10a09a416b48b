// internal/domain/shipping/entity.go
package shipping

import (
	"time"

	"gorm.io/gorm"
)

// City represents a shipping destination with a configured delivery cost.
// Orders snapshot the city name and cost so later edits never alter history.
type City struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Cost      int64          `gorm:"not null" json:"cost"` // In cents
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (City) TableName() string { return "shipping_cities" }

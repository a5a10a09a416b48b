// internal/domain/shipping/service.go
package shipping

import (
	"fmt"

	"gorm.io/gorm"
)

// Service exposes the shipping city catalog
type Service struct {
	db *gorm.DB
}

// NewService creates a new shipping service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ListActive returns the active shipping cities ordered by name
func (s *Service) ListActive() ([]City, error) {
	var cities []City
	err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&cities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return cities, nil
}

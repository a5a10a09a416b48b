// internal/domain/discount/service.go
package discount

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotEligible is returned by RecordUsage when a defensive re-validation
// inside the commit transaction finds the code no longer usable.
var ErrNotEligible = errors.New("discount not eligible")

// ValidationResult is the outcome of validating a code against a cart
type ValidationResult struct {
	IsValid    bool   `json:"is_valid"`
	Reason     string `json:"reason,omitempty"`
	DiscountID uint   `json:"discount_id,omitempty"`
	Code       string `json:"code,omitempty"`
	Percentage int64  `json:"percentage,omitempty"` // Set for percentage type only
	Amount     int64  `json:"amount"`               // In cents
}

// Service handles discount code validation and usage accounting
type Service struct {
	db *gorm.DB
}

// NewService creates a new discount service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Validate checks a code against its activity window, usage caps and minimum
// order constraint, and computes the discount amount for the given subtotal.
// Checks run in order and the first failure short-circuits.
func (s *Service) Validate(code, sessionID string, subtotal int64) (*ValidationResult, error) {
	if strings.TrimSpace(code) == "" {
		return invalid("Discount code is required"), nil
	}

	var disc Discount
	err := s.db.Where("LOWER(code) = LOWER(?)", code).First(&disc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("Invalid discount code"), nil
		}
		return nil, fmt.Errorf("failed to look up discount code: %w", err)
	}

	now := time.Now().UTC()

	if !disc.IsActive {
		return invalid("This discount code is not active"), nil
	}
	if disc.StartDate.After(now) {
		return invalid("This discount code is not active yet"), nil
	}
	if disc.ExpiryDate != nil && !disc.ExpiryDate.After(now) {
		return invalid("This discount code has expired"), nil
	}
	if disc.UsageLimit > 0 && disc.UsageCount >= disc.UsageLimit {
		return invalid("This discount code has reached its usage limit"), nil
	}

	if disc.UsageLimitPerGuest > 0 {
		used, err := s.guestUsageCount(s.db, disc.ID, sessionID)
		if err != nil {
			return nil, err
		}
		if used >= disc.UsageLimitPerGuest {
			return invalid(perGuestCapMessage(disc.UsageLimitPerGuest)), nil
		}
	}

	if disc.MinimumOrderAmount > 0 && subtotal < disc.MinimumOrderAmount {
		return invalid(fmt.Sprintf("A minimum order of %.2f is required for this discount",
			float64(disc.MinimumOrderAmount)/100)), nil
	}

	result := &ValidationResult{
		IsValid:    true,
		DiscountID: disc.ID,
		Code:       disc.Code,
		Amount:     ComputeAmount(&disc, subtotal),
	}
	if disc.Type == DiscountTypePercentage {
		result.Percentage = disc.Value
	}

	return result, nil
}

// ComputeAmount calculates the discount amount in cents for a subtotal.
// Percentage amounts use banker's rounding to the nearest cent so repeated
// recomputations are deterministic; the result never exceeds the subtotal.
func ComputeAmount(disc *Discount, subtotal int64) int64 {
	var amount int64
	switch disc.Type {
	case DiscountTypePercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(disc.Value)).
			Div(decimal.NewFromInt(100)).
			RoundBank(0).
			IntPart()
	case DiscountTypeFixedAmount:
		amount = disc.Value
	}

	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// RecordUsage upserts the per-guest usage row and increments the discount's
// global counter inside the caller's transaction. Caps are re-checked here
// because the apply-time validation may be arbitrarily stale by commit time.
func (s *Service) RecordUsage(tx *gorm.DB, code, sessionID, guestEmail string) error {
	var disc Discount
	err := withRowLock(tx).
		Where("LOWER(code) = LOWER(?)", code).
		First(&disc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("discount code %q: %w", code, ErrNotEligible)
		}
		return fmt.Errorf("failed to load discount for usage recording: %w", err)
	}

	if disc.UsageLimit > 0 && disc.UsageCount >= disc.UsageLimit {
		return fmt.Errorf("discount %q usage limit exhausted: %w", disc.Code, ErrNotEligible)
	}

	now := time.Now().UTC()

	var usage DiscountUsage
	err = tx.Where("discount_id = ? AND session_id = ?", disc.ID, sessionID).First(&usage).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		usage = DiscountUsage{
			DiscountID:  disc.ID,
			SessionID:   sessionID,
			GuestEmail:  guestEmail,
			UsageCount:  1,
			FirstUsedAt: now,
			LastUsedAt:  now,
		}
		if err := tx.Create(&usage).Error; err != nil {
			return fmt.Errorf("failed to create discount usage: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to load discount usage: %w", err)
	default:
		if disc.UsageLimitPerGuest > 0 && usage.UsageCount >= disc.UsageLimitPerGuest {
			return fmt.Errorf("discount %q per-guest limit exhausted: %w", disc.Code, ErrNotEligible)
		}
		usage.UsageCount++
		usage.LastUsedAt = now
		if guestEmail != "" {
			usage.GuestEmail = guestEmail
		}
		if err := tx.Save(&usage).Error; err != nil {
			return fmt.Errorf("failed to update discount usage: %w", err)
		}
	}

	if err := tx.Model(&Discount{}).
		Where("id = ?", disc.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		return fmt.Errorf("failed to increment discount usage count: %w", err)
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

func (s *Service) guestUsageCount(db *gorm.DB, discountID uint, sessionID string) (int, error) {
	var usage DiscountUsage
	err := db.Where("discount_id = ? AND session_id = ?", discountID, sessionID).First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load discount usage: %w", err)
	}
	return usage.UsageCount, nil
}

func invalid(reason string) *ValidationResult {
	return &ValidationResult{IsValid: false, Reason: reason}
}

func perGuestCapMessage(cap int) string {
	if cap == 1 {
		return "This discount code can only be used once per customer"
	}
	return fmt.Sprintf("This discount code can only be used %d times per customer", cap)
}

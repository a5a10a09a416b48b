// internal/domain/order/preparation.go
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/your-org/storefront/internal/domain/cart"
)

// PrepCache is the TTL'd key/value store holding prepared orders between the
// prepare call and the completion trigger (client redirect or webhook).
type PrepCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Remove(ctx context.Context, keys ...string) error
}

// Preparation is the full intended-order state captured before any durable
// write happens. Everything needed to materialize the order later must live
// here, because by completion time the cart may already be gone.
type Preparation struct {
	OrderNumber     string             `json:"order_number"`
	SessionID       string             `json:"session_id"`
	GuestName       string             `json:"guest_name"`
	GuestEmail      string             `json:"guest_email"`
	GuestPhone      string             `json:"guest_phone"`
	ShippingAddress string             `json:"shipping_address"`
	ShippingCityID  uint               `json:"shipping_city_id"`
	ShippingCity    string             `json:"shipping_city"`
	ShippingCost    int64              `json:"shipping_cost"`
	PaymentMethod   PaymentMethod      `json:"payment_method"`
	Notes           string             `json:"notes,omitempty"`
	Snapshot        cart.Snapshot      `json:"snapshot"`
	TotalAmount     int64              `json:"total_amount"`
	PaymentKey      string             `json:"payment_key,omitempty"`
	ProviderOrderID string             `json:"provider_order_id,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

// PreparationStore persists preparations under two keys, one per session and
// one per order number, so completion can be triggered either by the client
// redirect (which knows the session) or by a gateway webhook (which only
// knows the order number).
type PreparationStore struct {
	cache PrepCache
	ttl   time.Duration
}

func NewPreparationStore(cache PrepCache, ttl time.Duration) *PreparationStore {
	return &PreparationStore{cache: cache, ttl: ttl}
}

func prepSessionKey(sessionID string) string {
	return fmt.Sprintf("order:prep:session:%s", sessionID)
}

func prepNumberKey(orderNumber string) string {
	return fmt.Sprintf("order:prep:number:%s", orderNumber)
}

// Save writes both keys. The two writes are independent, so a failure between
// them can leave only one key populated; readers fall back from the session
// key to the number key to tolerate that window.
func (s *PreparationStore) Save(ctx context.Context, prep *Preparation) error {
	if err := s.cache.Set(ctx, prepSessionKey(prep.SessionID), prep, s.ttl); err != nil {
		return fmt.Errorf("failed to cache preparation by session: %w", err)
	}
	if err := s.cache.Set(ctx, prepNumberKey(prep.OrderNumber), prep, s.ttl); err != nil {
		return fmt.Errorf("failed to cache preparation by order number: %w", err)
	}
	return nil
}

// FindBySession returns the preparation cached for a session, if any.
func (s *PreparationStore) FindBySession(ctx context.Context, sessionID string) (*Preparation, bool, error) {
	var prep Preparation
	found, err := s.cache.Get(ctx, prepSessionKey(sessionID), &prep)
	if err != nil || !found {
		return nil, false, err
	}
	return &prep, true, nil
}

// FindByNumber returns the preparation cached for an order number, if any.
func (s *PreparationStore) FindByNumber(ctx context.Context, orderNumber string) (*Preparation, bool, error) {
	var prep Preparation
	found, err := s.cache.Get(ctx, prepNumberKey(orderNumber), &prep)
	if err != nil || !found {
		return nil, false, err
	}
	return &prep, true, nil
}

// Remove deletes both keys of a preparation.
func (s *PreparationStore) Remove(ctx context.Context, prep *Preparation) error {
	return s.cache.Remove(ctx, prepSessionKey(prep.SessionID), prepNumberKey(prep.OrderNumber))
}

// internal/domain/order/entity.go
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod represents how the customer pays
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodWallet         PaymentMethod = "wallet"
)

// ParsePaymentMethod validates a payment method string at the API boundary.
// Statuses and methods are never re-parsed deeper in the pipeline.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCashOnDelivery, PaymentMethodCard, PaymentMethodWallet:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// Order represents a durable guest order. Financial and shipping fields are
// snapshots taken at commit time and are never recalculated.
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderNumber string      `gorm:"uniqueIndex;not null;size:32" json:"order_number"`
	SessionID   string      `gorm:"index;size:64" json:"session_id"`
	Status      OrderStatus `gorm:"not null;default:'pending'" json:"status"`

	// Guest contact
	GuestName  string `gorm:"not null;size:255" json:"guest_name"`
	GuestEmail string `gorm:"not null;size:255;index" json:"guest_email"`
	GuestPhone string `gorm:"size:20" json:"guest_phone"`

	// Shipping snapshot
	ShippingAddress string `gorm:"not null;size:500" json:"shipping_address"`
	ShippingCityID  *uint  `gorm:"index" json:"shipping_city_id"`
	ShippingCity    string `gorm:"not null;size:100" json:"shipping_city"`
	ShippingCost    int64  `gorm:"not null" json:"shipping_cost"`

	// Financial snapshot, all in cents
	SubtotalAmount int64  `gorm:"not null" json:"subtotal_amount"`
	DiscountAmount int64  `gorm:"default:0" json:"discount_amount"`
	DiscountCode   string `gorm:"size:50" json:"discount_code"`
	OriginalAmount int64  `gorm:"not null" json:"original_amount"` // Pre-discount total
	TotalAmount    int64  `gorm:"not null" json:"total_amount"`

	// Append-only, timestamped note lines
	Notes string `gorm:"type:text" json:"notes"`

	// Admin lifecycle timestamps
	ShippedAt   *time.Time `json:"shipped_at"`
	DeliveredAt *time.Time `json:"delivered_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	Payment *Payment    `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payment,omitempty"`
}

// OrderItem is an immutable snapshot of a purchased line
type OrderItem struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OrderID         uint      `gorm:"not null;index" json:"order_id"`
	ProductID       uint      `gorm:"not null;index" json:"product_id"`
	ProductName     string    `gorm:"not null;size:255" json:"product_name"`
	SelectedColor   string    `gorm:"size:50" json:"selected_color"`
	Quantity        int       `gorm:"not null" json:"quantity"`
	UnitPrice       int64     `gorm:"not null" json:"unit_price"`
	DiscountPercent int       `gorm:"default:0" json:"discount_percent"`
	TotalPrice      int64     `gorm:"not null" json:"total_price"`
	CreatedAt       time.Time `json:"created_at"`
}

// Payment is the one-to-one payment record for an order, created in the same
// unit of work as the order itself.
type Payment struct {
	ID                    uint          `gorm:"primaryKey" json:"id"`
	OrderID               uint          `gorm:"not null;uniqueIndex" json:"order_id"`
	Method                PaymentMethod `gorm:"not null;size:30" json:"method"`
	Status                PaymentStatus `gorm:"not null;default:'pending'" json:"status"`
	OriginalAmount        int64         `gorm:"not null" json:"original_amount"`
	DiscountAmount        int64         `gorm:"default:0" json:"discount_amount"`
	Amount                int64         `gorm:"not null" json:"amount"` // Final charged amount
	Provider              string        `gorm:"size:50" json:"provider"`
	ProviderTransactionID string        `gorm:"size:100;index" json:"provider_transaction_id"`
	PaymentKey            string        `gorm:"type:text" json:"-"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
	CompletedAt           *time.Time    `json:"completed_at"`
}

// TableName overrides
func (Order) TableName() string     { return "orders" }
func (OrderItem) TableName() string { return "order_items" }
func (Payment) TableName() string   { return "payments" }

// NewOrderNumber generates a globally unique order number,
// format ORD-{yyyyMMdd}-{8 uppercase hex chars}.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// AppendNote appends a timestamped line to the order's free-text notes
func (o *Order) AppendNote(note string, at time.Time) {
	line := fmt.Sprintf("[%s] %s", at.UTC().Format(time.RFC3339), note)
	if o.Notes == "" {
		o.Notes = line
		return
	}
	o.Notes = o.Notes + "\n" + line
}

// IsTerminal reports whether the order reached a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCancelled || o.Status == OrderStatusRefunded
}

// CanBeCancelled checks if order can still be cancelled by staff
func (o *Order) CanBeCancelled() bool {
	switch o.Status {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return false
	default:
		return true
	}
}

// CanBeRefunded checks if order can be refunded
func (o *Order) CanBeRefunded() bool {
	return o.Status == OrderStatusDelivered
}

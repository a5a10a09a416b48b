// internal/domain/order/admin_service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/pkg/email"
)

// ErrInvalidTransition is returned when a staff mutation is not allowed from
// the order's current status.
var ErrInvalidTransition = errors.New("invalid order status transition")

// AdminService owns staff-side order mutations. Every mutation runs in its
// own transaction and appends a timestamped note line to the order.
type AdminService struct {
	db        *gorm.DB
	cfg       *config.Config
	inventory *inventory.Service
	mailer    Mailer
	log       *logrus.Logger
}

// NewAdminService creates a new admin order service
func NewAdminService(db *gorm.DB, cfg *config.Config, inv *inventory.Service, mailer Mailer, log *logrus.Logger) *AdminService {
	return &AdminService{db: db, cfg: cfg, inventory: inv, mailer: mailer, log: log}
}

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	GuestEmail    string
	Page          int
	PerPage       int
}

// List returns orders newest first with the given filter applied.
func (s *AdminService) List(filter ListFilter) ([]Order, int64, error) {
	query := s.db.Model(&Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.GuestEmail != "" {
		query = query.Where("LOWER(guest_email) = LOWER(?)", filter.GuestEmail)
	}
	if filter.PaymentStatus != "" {
		query = query.Joins("JOIN payments ON payments.order_id = orders.id").
			Where("payments.status = ?", filter.PaymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var orders []Order
	err := query.Preload("Items").Preload("Payment").
		Order("orders.created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// Get loads a single order by id with its items and payment.
func (s *AdminService) Get(orderID uint) (*Order, error) {
	var order Order
	err := s.db.Preload("Items").Preload("Payment").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// MarkShipped moves a pending or processing order to shipped, stamping the
// shipping date and notifying the customer.
func (s *AdminService) MarkShipped(orderID uint, shippedAt *time.Time) (*Order, error) {
	var order *Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		order = loaded

		if order.Status != OrderStatusPending && order.Status != OrderStatusProcessing {
			return fmt.Errorf("cannot ship order in status %q: %w", order.Status, ErrInvalidTransition)
		}

		now := time.Now()
		when := now
		if shippedAt != nil {
			when = *shippedAt
		}
		order.Status = OrderStatusShipped
		order.ShippedAt = &when
		order.AppendNote(fmt.Sprintf("Order shipped on %s", when.Format("2006-01-02")), now)

		return tx.Save(order).Error
	})
	if err != nil {
		return nil, err
	}

	go s.sendShippedEmail(order)
	return order, nil
}

// MarkDelivered moves a shipped order to delivered. An order delivered
// without ever being marked shipped gets a shipping date backfilled one day
// before delivery. Cash on delivery payments settle here.
func (s *AdminService) MarkDelivered(orderID uint, deliveredAt *time.Time) (*Order, error) {
	var order *Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		order = loaded

		switch order.Status {
		case OrderStatusShipped, OrderStatusPending, OrderStatusProcessing:
		default:
			return fmt.Errorf("cannot deliver order in status %q: %w", order.Status, ErrInvalidTransition)
		}

		now := time.Now()
		when := now
		if deliveredAt != nil {
			when = *deliveredAt
		}
		order.Status = OrderStatusDelivered
		order.DeliveredAt = &when
		if order.ShippedAt == nil {
			backfill := when.AddDate(0, 0, -1)
			order.ShippedAt = &backfill
		}
		order.AppendNote(fmt.Sprintf("Order delivered on %s", when.Format("2006-01-02")), now)

		if order.Payment != nil &&
			order.Payment.Method == PaymentMethodCashOnDelivery &&
			order.Payment.Status == PaymentStatusPending {
			order.Payment.Status = PaymentStatusSucceeded
			order.Payment.CompletedAt = &now
			if err := tx.Save(order.Payment).Error; err != nil {
				return fmt.Errorf("failed to settle cash payment: %w", err)
			}
		}

		return tx.Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel aborts an order that has not shipped, returning its stock and
// settling the payment record according to whether money was taken.
func (s *AdminService) Cancel(orderID uint, reason string) (*Order, error) {
	var order *Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		order = loaded

		if !order.CanBeCancelled() {
			return fmt.Errorf("cannot cancel order in status %q: %w", order.Status, ErrInvalidTransition)
		}

		if err := s.inventory.Restock(tx, itemLines(order.Items)); err != nil {
			return err
		}

		now := time.Now()
		order.Status = OrderStatusCancelled
		note := "Order cancelled"
		if reason != "" {
			note = fmt.Sprintf("Order cancelled: %s", reason)
		}
		order.AppendNote(note, now)

		if order.Payment != nil {
			switch order.Payment.Status {
			case PaymentStatusPending:
				order.Payment.Status = PaymentStatusCancelled
			case PaymentStatusSucceeded:
				// Money was captured; the financial record must show it
				// flowing back.
				order.Payment.Status = PaymentStatusRefunded
			}
			if err := tx.Save(order.Payment).Error; err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}

		return tx.Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Refund reverses a delivered order: stock returns and both the order and
// its payment move to refunded.
func (s *AdminService) Refund(orderID uint, reason string) (*Order, error) {
	var order *Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loaded, err := lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		order = loaded

		if !order.CanBeRefunded() {
			return fmt.Errorf("cannot refund order in status %q: %w", order.Status, ErrInvalidTransition)
		}

		if err := s.inventory.Restock(tx, itemLines(order.Items)); err != nil {
			return err
		}

		now := time.Now()
		order.Status = OrderStatusRefunded
		note := "Order refunded"
		if reason != "" {
			note = fmt.Sprintf("Order refunded: %s", reason)
		}
		order.AppendNote(note, now)

		if order.Payment != nil {
			order.Payment.Status = PaymentStatusRefunded
			if err := tx.Save(order.Payment).Error; err != nil {
				return fmt.Errorf("failed to update payment: %w", err)
			}
		}

		return tx.Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func lockOrder(tx *gorm.DB, orderID uint) (*Order, error) {
	var order Order
	err := tx.Preload("Items").Preload("Payment").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func itemLines(items []OrderItem) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, inventory.Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return lines
}

func (s *AdminService) sendShippedEmail(order *Order) {
	shipped := time.Now()
	if order.ShippedAt != nil {
		shipped = *order.ShippedAt
	}
	data := email.OrderShippedData{
		StoreName:   s.cfg.App.Name,
		GuestName:   order.GuestName,
		GuestEmail:  order.GuestEmail,
		OrderNumber: order.OrderNumber,
		ShippedDate: shipped.Format("2006-01-02"),
	}
	if err := s.mailer.SendOrderShipped(context.Background(), data); err != nil {
		s.log.WithError(err).WithField("order_number", order.OrderNumber).
			Warn("Failed to send shipped notification email")
	}
}

// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/discount"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/shipping"
	"github.com/your-org/storefront/internal/pkg/email"
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup
	ErrOrderNotFound = errors.New("order not found")
	// ErrCartEmpty is returned when checkout starts on an empty cart
	ErrCartEmpty = errors.New("cart is empty")
	// ErrCityNotFound is returned when the shipping city does not exist or is inactive
	ErrCityNotFound = errors.New("shipping city not found")
	// ErrPreparationExpired is returned when no prepared order exists for the trigger
	ErrPreparationExpired = errors.New("order data not found or expired")
	// ErrPaymentNotCompleted is returned when completion is triggered without a
	// successful gateway payment
	ErrPaymentNotCompleted = errors.New("payment not completed")
)

// Gateway is the payment provider surface the order pipeline depends on.
// Satisfied by payment.PaymobService.
type Gateway interface {
	InitiatePayment(ctx context.Context, req *payment.InitiateRequest) (*payment.InitiateResult, error)
	ExecuteWalletPayment(ctx context.Context, paymentKey, phoneNumber string) (*payment.WalletResult, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*payment.TransactionStatus, error)
}

// Mailer sends transactional order emails. Satisfied by email.EmailService.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, data email.OrderConfirmationData) error
	SendOrderShipped(ctx context.Context, data email.OrderShippedData) error
}

// Service owns order placement and the payment completion state machine.
type Service struct {
	db        *gorm.DB
	cfg       *config.Config
	carts     *cart.Service
	discounts *discount.Service
	inventory *inventory.Service
	gateway   Gateway
	preps     *PreparationStore
	mailer    Mailer
	log       *logrus.Logger
}

// NewService creates a new order service
func NewService(
	db *gorm.DB,
	cfg *config.Config,
	carts *cart.Service,
	discounts *discount.Service,
	inv *inventory.Service,
	gateway Gateway,
	preps *PreparationStore,
	mailer Mailer,
	log *logrus.Logger,
) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		carts:     carts,
		discounts: discounts,
		inventory: inv,
		gateway:   gateway,
		preps:     preps,
		mailer:    mailer,
		log:       log,
	}
}

// PlaceOrderRequest carries guest contact and shipping input for checkout.
// The payment method is validated at the API boundary.
type PlaceOrderRequest struct {
	GuestName       string
	GuestEmail      string
	GuestPhone      string
	ShippingAddress string
	ShippingCityID  uint
	ShippingCost    int64 // Client hint; ignored unless positive
	PaymentMethod   PaymentMethod
	Notes           string
}

// PreparedOrder is what the client needs to continue an online payment.
type PreparedOrder struct {
	OrderNumber    string `json:"order_number"`
	PaymentKey     string `json:"payment_key,omitempty"`
	IframeURL      string `json:"iframe_url,omitempty"`
	RedirectTarget string `json:"redirect_target"`
	TotalAmount    int64  `json:"total_amount"`
}

// Confirmation is the client-facing view of a committed order.
type Confirmation struct {
	OrderNumber    string             `json:"order_number"`
	Status         OrderStatus        `json:"status"`
	PaymentStatus  PaymentStatus      `json:"payment_status"`
	PaymentMethod  PaymentMethod      `json:"payment_method"`
	GuestName      string             `json:"guest_name"`
	GuestEmail     string             `json:"guest_email"`
	ShippingCity   string             `json:"shipping_city"`
	SubtotalAmount int64              `json:"subtotal_amount"`
	DiscountAmount int64              `json:"discount_amount"`
	DiscountCode   string             `json:"discount_code,omitempty"`
	ShippingCost   int64              `json:"shipping_cost"`
	TotalAmount    int64              `json:"total_amount"`
	Items          []ConfirmationItem `json:"items"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ConfirmationItem is one purchased line in a confirmation.
type ConfirmationItem struct {
	ProductName   string `json:"product_name"`
	SelectedColor string `json:"selected_color,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
	TotalPrice    int64  `json:"total_price"`
}

// PlaceOrder commits an order synchronously in a single transaction: cart
// snapshot, stock reservation, payment row, discount usage and cart clearing
// all succeed or roll back together. Used for cash on delivery, and tolerant
// of card key acquisition failing mid-flow.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, req *PlaceOrderRequest) (*Confirmation, error) {
	snap, err := s.carts.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if len(snap.Items) == 0 {
		return nil, ErrCartEmpty
	}

	city, err := s.resolveCity(req.ShippingCityID)
	if err != nil {
		return nil, err
	}
	shippingCost := req.ShippingCost
	if shippingCost <= 0 {
		shippingCost = city.Cost
	}

	now := time.Now()
	order := s.buildOrder(sessionID, req, snap, city, shippingCost, now)

	// Card through the synchronous path: try to attach a payment key up
	// front. A gateway failure here must not lose the order.
	pay := s.buildPayment(req.PaymentMethod, snap, order.TotalAmount)
	if req.PaymentMethod == PaymentMethodCard {
		result, gwErr := s.gateway.InitiatePayment(ctx, &payment.InitiateRequest{
			AmountCents:         order.TotalAmount,
			MerchantOrderNumber: order.OrderNumber,
			Wallet:              false,
			Customer:            s.billingDetails(req, city.Name),
		})
		if gwErr != nil {
			s.log.WithError(gwErr).WithField("order_number", order.OrderNumber).
				Warn("Payment key acquisition failed, committing order with failed payment")
			pay.Status = PaymentStatusFailed
			pay.Provider = payment.ProviderName + "-failed"
		} else {
			pay.PaymentKey = result.PaymentKey
			pay.ProviderTransactionID = result.ProviderOrderID
		}
	}
	order.Payment = pay

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if err := s.inventory.Reserve(tx, snapshotLines(snap)); err != nil {
			return err
		}
		if snap.DiscountCode != "" {
			if err := s.discounts.RecordUsage(tx, snap.DiscountCode, sessionID, req.GuestEmail); err != nil {
				return err
			}
		}
		return s.carts.ClearTx(tx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	go s.sendConfirmationEmail(order)

	return s.toConfirmation(order), nil
}

// PrepareOrderForPayment runs all checkout validation without persisting
// anything durable, acquires the gateway payment key, and caches the full
// intended order under both its session and its order number. A gateway
// failure aborts with no side effects beyond the gateway's own state.
func (s *Service) PrepareOrderForPayment(ctx context.Context, sessionID string, req *PlaceOrderRequest) (*PreparedOrder, error) {
	snap, err := s.carts.Snapshot(sessionID)
	if err != nil {
		return nil, err
	}
	if len(snap.Items) == 0 {
		return nil, ErrCartEmpty
	}

	city, err := s.resolveCity(req.ShippingCityID)
	if err != nil {
		return nil, err
	}
	shippingCost := req.ShippingCost
	if shippingCost <= 0 {
		shippingCost = city.Cost
	}

	if err := s.inventory.Check(snapshotLines(snap)); err != nil {
		return nil, err
	}

	now := time.Now()
	prep := &Preparation{
		OrderNumber:     NewOrderNumber(now),
		SessionID:       sessionID,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingCityID:  city.ID,
		ShippingCity:    city.Name,
		ShippingCost:    shippingCost,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		Snapshot:        *snap,
		TotalAmount:     snap.Total + shippingCost,
		CreatedAt:       now,
	}

	out := &PreparedOrder{
		OrderNumber: prep.OrderNumber,
		TotalAmount: prep.TotalAmount,
	}

	if req.PaymentMethod == PaymentMethodCard || req.PaymentMethod == PaymentMethodWallet {
		result, err := s.gateway.InitiatePayment(ctx, &payment.InitiateRequest{
			AmountCents:         prep.TotalAmount,
			MerchantOrderNumber: prep.OrderNumber,
			Wallet:              req.PaymentMethod == PaymentMethodWallet,
			Customer:            s.billingDetails(req, city.Name),
		})
		if err != nil {
			return nil, err
		}
		prep.PaymentKey = result.PaymentKey
		prep.ProviderOrderID = result.ProviderOrderID
		out.PaymentKey = result.PaymentKey
		if req.PaymentMethod == PaymentMethodCard {
			out.IframeURL = s.iframeURL(result.PaymentKey)
			out.RedirectTarget = out.IframeURL
		} else {
			out.RedirectTarget = fmt.Sprintf("/checkout/wallet?order=%s", prep.OrderNumber)
		}
	} else {
		out.RedirectTarget = fmt.Sprintf("/checkout/complete?order=%s", prep.OrderNumber)
	}

	if err := s.preps.Save(ctx, prep); err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteOrder materializes a cached preparation into a durable order.
// Idempotent: repeated triggers for the same order number return the
// confirmation of the first successful completion. The cache entry is only
// removed after the transaction commits, so a rolled-back attempt can be
// retried until the TTL runs out.
func (s *Service) CompleteOrder(ctx context.Context, sessionID, orderNumber string, paymentSuccess bool) (*Confirmation, error) {
	prep, found, err := s.preps.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if found && orderNumber != "" && prep.OrderNumber != orderNumber {
		found = false
	}
	if !found && orderNumber != "" {
		prep, found, err = s.preps.FindByNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		// The preparation may be gone because a racing trigger already
		// committed and cleaned up. Fall back to the durable record.
		if orderNumber != "" {
			if existing, lookErr := s.loadOrderByNumber(orderNumber); lookErr == nil {
				return s.toConfirmation(existing), nil
			}
		}
		return nil, ErrPreparationExpired
	}

	if existing, lookErr := s.loadOrderByNumber(prep.OrderNumber); lookErr == nil {
		return s.toConfirmation(existing), nil
	}

	if prep.PaymentMethod != PaymentMethodCashOnDelivery && !paymentSuccess {
		return nil, ErrPaymentNotCompleted
	}

	order := s.orderFromPreparation(prep)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			if isDuplicateKey(err) {
				return errDuplicateOrder
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Stock at this point is best-effort: the customer has already
		// paid, so a line whose product vanished or ran dry is logged
		// and left undecremented rather than failing the commit.
		for _, item := range prep.Snapshot.Items {
			line := []inventory.Line{{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
			}}
			if err := s.inventory.Reserve(tx, line); err != nil {
				if errors.Is(err, inventory.ErrProductUnavailable) || errors.Is(err, inventory.ErrInsufficientStock) {
					s.log.WithError(err).WithFields(logrus.Fields{
						"order_number": prep.OrderNumber,
						"product_id":   item.ProductID,
					}).Warn("Skipping stock decrement for completed order")
					continue
				}
				return err
			}
		}

		if prep.Snapshot.DiscountCode != "" {
			err := s.discounts.RecordUsage(tx, prep.Snapshot.DiscountCode, prep.SessionID, prep.GuestEmail)
			if err != nil {
				if errors.Is(err, discount.ErrNotEligible) {
					// The payment already went through at the discounted
					// total; a cap exhausted in the meantime cannot be
					// charged back, only logged.
					s.log.WithError(err).WithField("order_number", prep.OrderNumber).
						Warn("Discount no longer eligible at completion time")
				} else {
					return err
				}
			}
		}

		return s.carts.ClearTx(tx, prep.SessionID)
	})
	if errors.Is(err, errDuplicateOrder) {
		existing, lookErr := s.loadOrderByNumber(prep.OrderNumber)
		if lookErr != nil {
			return nil, lookErr
		}
		return s.toConfirmation(existing), nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.preps.Remove(ctx, prep); err != nil {
		s.log.WithError(err).WithField("order_number", prep.OrderNumber).
			Warn("Failed to remove preparation cache entries")
	}

	go s.sendConfirmationEmail(order)

	return s.toConfirmation(order), nil
}

// errDuplicateOrder signals inside the completion transaction that a racing
// trigger won the insert.
var errDuplicateOrder = errors.New("order already exists")

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// GetOrderConfirmation looks up a committed order by number. When guestEmail
// is non-empty it must match the order's email; a mismatch is reported as
// not found rather than leaking the order's existence.
func (s *Service) GetOrderConfirmation(orderNumber, guestEmail string) (*Confirmation, error) {
	order, err := s.loadOrderByNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	if guestEmail != "" && !strings.EqualFold(order.GuestEmail, guestEmail) {
		return nil, ErrOrderNotFound
	}
	return s.toConfirmation(order), nil
}

// GetPaymentToken returns the payment key for an order's pending online
// payment, lazily re-acquiring one from the gateway when the stored key is
// missing. Only the payment row is patched; the order snapshot is untouched.
func (s *Service) GetPaymentToken(ctx context.Context, orderNumber string) (*PreparedOrder, error) {
	order, err := s.loadOrderByNumber(orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Payment == nil || order.Payment.Method == PaymentMethodCashOnDelivery {
		return nil, fmt.Errorf("order %s has no online payment: %w", orderNumber, ErrOrderNotFound)
	}
	if order.Payment.Status == PaymentStatusSucceeded {
		return nil, fmt.Errorf("order %s is already paid: %w", orderNumber, ErrPaymentNotCompleted)
	}

	if order.Payment.PaymentKey == "" {
		result, err := s.gateway.InitiatePayment(ctx, &payment.InitiateRequest{
			AmountCents:         order.TotalAmount,
			MerchantOrderNumber: order.OrderNumber,
			Wallet:              order.Payment.Method == PaymentMethodWallet,
			Customer: payment.BillingDetails{
				FirstName:   order.GuestName,
				Email:       order.GuestEmail,
				PhoneNumber: order.GuestPhone,
				Street:      order.ShippingAddress,
				City:        order.ShippingCity,
				Country:     "EG",
			},
		})
		if err != nil {
			return nil, err
		}
		updates := map[string]interface{}{
			"payment_key":             result.PaymentKey,
			"provider_transaction_id": result.ProviderOrderID,
			"provider":                payment.ProviderName,
			"status":                  PaymentStatusPending,
		}
		if err := s.db.Model(order.Payment).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to store refreshed payment key: %w", err)
		}
		order.Payment.PaymentKey = result.PaymentKey
	}

	out := &PreparedOrder{
		OrderNumber: order.OrderNumber,
		PaymentKey:  order.Payment.PaymentKey,
		TotalAmount: order.TotalAmount,
	}
	if order.Payment.Method == PaymentMethodCard {
		out.IframeURL = s.iframeURL(order.Payment.PaymentKey)
		out.RedirectTarget = out.IframeURL
	}
	return out, nil
}

// ExecuteWalletPayment submits a wallet charge for a prepared order using the
// customer's mobile wallet number.
func (s *Service) ExecuteWalletPayment(ctx context.Context, sessionID, orderNumber, phoneNumber string) (*payment.WalletResult, error) {
	prep, found, err := s.preps.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if found && orderNumber != "" && prep.OrderNumber != orderNumber {
		found = false
	}
	if !found && orderNumber != "" {
		prep, found, err = s.preps.FindByNumber(ctx, orderNumber)
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, ErrPreparationExpired
	}
	if prep.PaymentKey == "" {
		return nil, ErrPaymentNotCompleted
	}
	return s.gateway.ExecuteWalletPayment(ctx, prep.PaymentKey, phoneNumber)
}

// AttachProviderTransaction stamps the gateway transaction id on an order's
// payment row, overwriting the provider order id stored at preparation time.
func (s *Service) AttachProviderTransaction(orderNumber, transactionID string) error {
	order, err := s.loadOrderByNumber(orderNumber)
	if err != nil {
		return err
	}
	if order.Payment == nil {
		return fmt.Errorf("order %s has no payment record: %w", orderNumber, ErrOrderNotFound)
	}
	return s.db.Model(order.Payment).
		Update("provider_transaction_id", transactionID).Error
}

// VerifyPayment polls the gateway for a transaction's authoritative status.
func (s *Service) VerifyPayment(ctx context.Context, transactionID string) (*payment.TransactionStatus, error) {
	return s.gateway.VerifyTransaction(ctx, transactionID)
}

// Private helpers

func (s *Service) resolveCity(cityID uint) (*shipping.City, error) {
	var city shipping.City
	err := s.db.Where("id = ? AND is_active = ?", cityID, true).First(&city).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCityNotFound
		}
		return nil, fmt.Errorf("failed to load shipping city: %w", err)
	}
	return &city, nil
}

func (s *Service) loadOrderByNumber(orderNumber string) (*Order, error) {
	var order Order
	err := s.db.Preload("Items").Preload("Payment").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (s *Service) buildOrder(sessionID string, req *PlaceOrderRequest, snap *cart.Snapshot, city *shipping.City, shippingCost int64, now time.Time) *Order {
	cityID := city.ID
	order := &Order{
		OrderNumber:     NewOrderNumber(now),
		SessionID:       sessionID,
		Status:          OrderStatusPending,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		ShippingAddress: req.ShippingAddress,
		ShippingCityID:  &cityID,
		ShippingCity:    city.Name,
		ShippingCost:    shippingCost,
		SubtotalAmount:  snap.SubTotal,
		DiscountAmount:  snap.DiscountAmount,
		DiscountCode:    snap.DiscountCode,
		OriginalAmount:  snap.SubTotal + shippingCost,
		TotalAmount:     snap.Total + shippingCost,
	}
	if req.Notes != "" {
		order.AppendNote(req.Notes, now)
	}
	order.Items = snapshotItems(snap)
	return order
}

func (s *Service) buildPayment(method PaymentMethod, snap *cart.Snapshot, total int64) *Payment {
	pay := &Payment{
		Method:         method,
		Status:         PaymentStatusPending,
		OriginalAmount: total + snap.DiscountAmount,
		DiscountAmount: snap.DiscountAmount,
		Amount:         total,
	}
	if method == PaymentMethodCashOnDelivery {
		pay.Provider = "cash"
	} else {
		pay.Provider = payment.ProviderName
	}
	return pay
}

func (s *Service) orderFromPreparation(prep *Preparation) *Order {
	now := time.Now()
	cityID := prep.ShippingCityID
	order := &Order{
		OrderNumber:     prep.OrderNumber,
		SessionID:       prep.SessionID,
		Status:          OrderStatusPending,
		GuestName:       prep.GuestName,
		GuestEmail:      prep.GuestEmail,
		GuestPhone:      prep.GuestPhone,
		ShippingAddress: prep.ShippingAddress,
		ShippingCityID:  &cityID,
		ShippingCity:    prep.ShippingCity,
		ShippingCost:    prep.ShippingCost,
		SubtotalAmount:  prep.Snapshot.SubTotal,
		DiscountAmount:  prep.Snapshot.DiscountAmount,
		DiscountCode:    prep.Snapshot.DiscountCode,
		OriginalAmount:  prep.Snapshot.SubTotal + prep.ShippingCost,
		TotalAmount:     prep.TotalAmount,
	}
	if prep.Notes != "" {
		order.AppendNote(prep.Notes, now)
	}
	order.Items = snapshotItems(&prep.Snapshot)

	pay := &Payment{
		Method:                prep.PaymentMethod,
		Status:                PaymentStatusPending,
		OriginalAmount:        prep.TotalAmount + prep.Snapshot.DiscountAmount,
		DiscountAmount:        prep.Snapshot.DiscountAmount,
		Amount:                prep.TotalAmount,
		Provider:              payment.ProviderName,
		ProviderTransactionID: prep.ProviderOrderID,
		PaymentKey:            prep.PaymentKey,
	}
	if prep.PaymentMethod == PaymentMethodCashOnDelivery {
		pay.Provider = "cash"
	} else {
		pay.Status = PaymentStatusSucceeded
		pay.CompletedAt = &now
	}
	order.Payment = pay
	return order
}

func snapshotItems(snap *cart.Snapshot) []OrderItem {
	items := make([]OrderItem, 0, len(snap.Items))
	for _, it := range snap.Items {
		items = append(items, OrderItem{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			SelectedColor:   it.SelectedColor,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPercent: it.DiscountPercent,
			TotalPrice:      it.LineTotal,
		})
	}
	return items
}

func snapshotLines(snap *cart.Snapshot) []inventory.Line {
	lines := make([]inventory.Line, 0, len(snap.Items))
	for _, it := range snap.Items {
		lines = append(lines, inventory.Line{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
		})
	}
	return lines
}

func (s *Service) billingDetails(req *PlaceOrderRequest, cityName string) payment.BillingDetails {
	first, last := splitName(req.GuestName)
	return payment.BillingDetails{
		FirstName:   first,
		LastName:    last,
		Email:       req.GuestEmail,
		PhoneNumber: req.GuestPhone,
		Street:      req.ShippingAddress,
		City:        cityName,
		Country:     "EG",
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (s *Service) iframeURL(paymentKey string) string {
	return fmt.Sprintf("%s/acceptance/iframes/%s?payment_token=%s",
		strings.TrimSuffix(s.cfg.Paymob.BaseURL, "/api")+"/api",
		s.cfg.Paymob.IframeID, paymentKey)
}

func (s *Service) toConfirmation(order *Order) *Confirmation {
	conf := &Confirmation{
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		GuestName:      order.GuestName,
		GuestEmail:     order.GuestEmail,
		ShippingCity:   order.ShippingCity,
		SubtotalAmount: order.SubtotalAmount,
		DiscountAmount: order.DiscountAmount,
		DiscountCode:   order.DiscountCode,
		ShippingCost:   order.ShippingCost,
		TotalAmount:    order.TotalAmount,
		Items:          make([]ConfirmationItem, 0, len(order.Items)),
		CreatedAt:      order.CreatedAt,
	}
	if order.Payment != nil {
		conf.PaymentStatus = order.Payment.Status
		conf.PaymentMethod = order.Payment.Method
	}
	for _, it := range order.Items {
		conf.Items = append(conf.Items, ConfirmationItem{
			ProductName:   it.ProductName,
			SelectedColor: it.SelectedColor,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			TotalPrice:    it.TotalPrice,
		})
	}
	return conf
}

// sendConfirmationEmail delivers the confirmation asynchronously. Email
// failures never affect the order.
func (s *Service) sendConfirmationEmail(order *Order) {
	method := ""
	if order.Payment != nil {
		method = string(order.Payment.Method)
	}
	data := email.OrderConfirmationData{
		StoreName:      s.cfg.App.Name,
		GuestName:      order.GuestName,
		GuestEmail:     order.GuestEmail,
		OrderNumber:    order.OrderNumber,
		Subtotal:       formatCents(order.SubtotalAmount),
		DiscountAmount: formatCents(order.DiscountAmount),
		ShippingCost:   formatCents(order.ShippingCost),
		Total:          formatCents(order.TotalAmount),
		PaymentMethod:  method,
	}
	for _, it := range order.Items {
		data.Items = append(data.Items, email.OrderEmailItem{
			Name:      it.ProductName,
			Color:     it.SelectedColor,
			Quantity:  it.Quantity,
			LineTotal: formatCents(it.TotalPrice),
		})
	}
	if err := s.mailer.SendOrderConfirmation(context.Background(), data); err != nil {
		s.log.WithError(err).WithField("order_number", order.OrderNumber).
			Warn("Failed to send order confirmation email")
	}
}

// formatCents renders an amount in cents as a decimal string for display.
func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

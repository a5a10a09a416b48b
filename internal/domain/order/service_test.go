package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/discount"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/domain/shipping"
	"github.com/your-org/storefront/internal/pkg/email"
)

// fakePrepCache mimics the redis wrapper: values are stored as JSON
type fakePrepCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakePrepCache() *fakePrepCache {
	return &fakePrepCache{data: map[string][]byte{}}
}

func (f *fakePrepCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakePrepCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakePrepCache) Remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakePrepCache) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

type fakeGateway struct {
	initiateResult *payment.InitiateResult
	initiateErr    error
	initiateCalls  int
	walletResult   *payment.WalletResult
	status         *payment.TransactionStatus
}

func (f *fakeGateway) InitiatePayment(_ context.Context, _ *payment.InitiateRequest) (*payment.InitiateResult, error) {
	f.initiateCalls++
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return f.initiateResult, nil
}

func (f *fakeGateway) ExecuteWalletPayment(_ context.Context, _, _ string) (*payment.WalletResult, error) {
	return f.walletResult, nil
}

func (f *fakeGateway) VerifyTransaction(_ context.Context, _ string) (*payment.TransactionStatus, error) {
	return f.status, nil
}

type fakeMailer struct {
	mu            sync.Mutex
	confirmations []email.OrderConfirmationData
}

func (f *fakeMailer) SendOrderConfirmation(_ context.Context, data email.OrderConfirmationData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, data)
	return nil
}

func (f *fakeMailer) SendOrderShipped(_ context.Context, _ email.OrderShippedData) error {
	return nil
}

type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	carts  *cart.Service
	orders *Service
	admin  *AdminService
	cache  *fakePrepCache
	gw     *fakeGateway
	mailer *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Category{}, &product.Product{}, &product.ProductColor{},
		&shipping.City{},
		&discount.Discount{}, &discount.DiscountUsage{},
		&cart.Cart{}, &cart.CartItem{},
		&Order{}, &OrderItem{}, &Payment{},
	))

	cfg := &config.Config{}
	cfg.App.Name = "Storefront"
	cfg.Cart.MaxQuantityPerItem = 50
	cfg.Checkout.PreparationTTL = 30 * time.Minute
	cfg.Paymob.BaseURL = "https://accept.paymob.com/api"
	cfg.Paymob.IframeID = "9000"

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	discounts := discount.NewService(db)
	carts := cart.NewService(db, cfg, discounts, log)
	inv := inventory.NewService(db)
	cache := newFakePrepCache()
	preps := NewPreparationStore(cache, cfg.Checkout.PreparationTTL)
	gw := &fakeGateway{
		initiateResult: &payment.InitiateResult{
			PaymentKey:      "pay-key",
			ProviderOrderID: "555",
			IframeID:        "9000",
		},
	}
	mailer := &fakeMailer{}

	return &testEnv{
		db:     db,
		cfg:    cfg,
		carts:  carts,
		orders: NewService(db, cfg, carts, discounts, inv, gw, preps, mailer, log),
		admin:  NewAdminService(db, cfg, inv, mailer, log),
		cache:  cache,
		gw:     gw,
		mailer: mailer,
	}
}

func (e *testEnv) seedProduct(t *testing.T, name string, price int64, stock int) *product.Product {
	t.Helper()
	prod := &product.Product{Name: name, Price: price, Stock: stock, CategoryID: 1, IsActive: true}
	require.NoError(t, e.db.Create(prod).Error)
	return prod
}

func (e *testEnv) seedCity(t *testing.T, name string, cost int64) *shipping.City {
	t.Helper()
	city := &shipping.City{Name: name, Cost: cost, IsActive: true}
	require.NoError(t, e.db.Create(city).Error)
	return city
}

func (e *testEnv) seedDiscount(t *testing.T, code string, percent int64) *discount.Discount {
	t.Helper()
	disc := &discount.Discount{
		Code: code, Type: discount.DiscountTypePercentage, Value: percent,
		StartDate: time.Now().Add(-time.Hour), IsActive: true,
	}
	require.NoError(t, e.db.Create(disc).Error)
	return disc
}

func (e *testEnv) fillCart(t *testing.T, sessionID string, prod *product.Product, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(sessionID, &cart.AddItemRequest{ProductID: prod.ID, Quantity: qty})
	require.NoError(t, err)
}

func (e *testEnv) stockOf(t *testing.T, productID uint) int {
	t.Helper()
	var prod product.Product
	require.NoError(t, e.db.First(&prod, productID).Error)
	return prod.Stock
}

func codRequest(cityID uint) *PlaceOrderRequest {
	return &PlaceOrderRequest{
		GuestName:       "Sara Ahmed",
		GuestEmail:      "sara@example.com",
		GuestPhone:      "01012345678",
		ShippingAddress: "12 Nile St",
		ShippingCityID:  cityID,
		PaymentMethod:   PaymentMethodCashOnDelivery,
	}
}

func TestPlaceOrderCashOnDelivery(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.seedDiscount(t, "SAVE10", 10)

	env.fillCart(t, "sess-1", prod, 2)
	_, result, err := env.carts.ApplyDiscount("sess-1", "SAVE10")
	require.NoError(t, err)
	require.True(t, result.IsValid)

	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, conf.OrderNumber)
	assert.Equal(t, OrderStatusPending, conf.Status)
	assert.Equal(t, PaymentStatusPending, conf.PaymentStatus)
	assert.Equal(t, PaymentMethodCashOnDelivery, conf.PaymentMethod)
	assert.Equal(t, int64(20000), conf.SubtotalAmount)
	assert.Equal(t, int64(2000), conf.DiscountAmount)
	assert.Equal(t, int64(3000), conf.ShippingCost)
	assert.Equal(t, int64(21000), conf.TotalAmount)

	// Stock reserved
	assert.Equal(t, 8, env.stockOf(t, prod.ID))

	// Cart destroyed in the same transaction
	c, err := env.carts.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	// Discount usage recorded
	var usage discount.DiscountUsage
	require.NoError(t, env.db.Where("session_id = ?", "sess-1").First(&usage).Error)
	assert.Equal(t, 1, usage.UsageCount)

	// Payment row settled to cash provider
	var order Order
	require.NoError(t, env.db.Preload("Payment").Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	require.NotNil(t, order.Payment)
	assert.Equal(t, "cash", order.Payment.Provider)
	assert.Equal(t, int64(21000), order.Payment.Amount)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	city := env.seedCity(t, "Cairo", 3000)

	// Touch the cart so it exists but stays empty
	_, err := env.carts.GetOrCreate("sess-1")
	require.NoError(t, err)

	_, err = env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestPlaceOrderUnknownCity(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	env.fillCart(t, "sess-1", prod, 1)

	_, err := env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(999))
	assert.ErrorIs(t, err, ErrCityNotFound)
}

func TestPlaceOrderClientShippingCostTrustedOnlyIfPositive(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)

	req := codRequest(city.ID)
	req.ShippingCost = -50

	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), conf.ShippingCost)
}

func TestPlaceOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 5)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 5)

	// Stock drains between add-to-cart and checkout
	require.NoError(t, env.db.Model(prod).Update("stock", 2).Error)

	_, err := env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	// No partial state: no order, cart intact, stock untouched
	var count int64
	require.NoError(t, env.db.Model(&Order{}).Count(&count).Error)
	assert.Zero(t, count)
	c, err := env.carts.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, 2, env.stockOf(t, prod.ID))
}

func TestPlaceOrderCardKeyFailureStillCommits(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)
	env.gw.initiateErr = payment.ErrGateway

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard

	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", req)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFailed, conf.PaymentStatus)

	var order Order
	require.NoError(t, env.db.Preload("Payment").Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	assert.Equal(t, "paymob-failed", order.Payment.Provider)
	assert.Empty(t, order.Payment.PaymentKey)
	assert.Equal(t, 9, env.stockOf(t, prod.ID))
}

func TestPrepareOrderCachesWithoutPersisting(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 2)

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard

	prepared, err := env.orders.PrepareOrderForPayment(context.Background(), "sess-1", req)
	require.NoError(t, err)

	assert.Equal(t, "pay-key", prepared.PaymentKey)
	assert.Contains(t, prepared.IframeURL, "payment_token=pay-key")
	assert.Equal(t, int64(23000), prepared.TotalAmount)

	// Cached under both keys, nothing durable yet
	assert.Equal(t, 2, env.cache.len())
	var count int64
	require.NoError(t, env.db.Model(&Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, 10, env.stockOf(t, prod.ID))
	c, err := env.carts.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}

func TestPrepareOrderGatewayFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)
	env.gw.initiateErr = payment.ErrGateway

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard

	_, err := env.orders.PrepareOrderForPayment(context.Background(), "sess-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Zero(t, env.cache.len())
}

func TestPrepareOrderStockCheckedUpFront(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 5)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 5)
	require.NoError(t, env.db.Model(prod).Update("stock", 1).Error)

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard

	_, err := env.orders.PrepareOrderForPayment(context.Background(), "sess-1", req)
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Zero(t, env.gw.initiateCalls)
}

func prepareCardOrder(t *testing.T, env *testEnv, sessionID string) *PreparedOrder {
	t.Helper()
	prod := env.seedProduct(t, "Lamp", 10000, 10)
	city := env.seedCity(t, "Giza", 2000)
	env.fillCart(t, sessionID, prod, 2)

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard

	prepared, err := env.orders.PrepareOrderForPayment(context.Background(), sessionID, req)
	require.NoError(t, err)
	return prepared
}

func TestCompleteOrderCommitsPreparedOrder(t *testing.T) {
	env := newTestEnv(t)
	prepared := prepareCardOrder(t, env, "sess-1")

	conf, err := env.orders.CompleteOrder(context.Background(), "sess-1", prepared.OrderNumber, true)
	require.NoError(t, err)

	assert.Equal(t, prepared.OrderNumber, conf.OrderNumber)
	assert.Equal(t, PaymentStatusSucceeded, conf.PaymentStatus)
	assert.Equal(t, int64(22000), conf.TotalAmount)

	var order Order
	require.NoError(t, env.db.Preload("Items").Preload("Payment").
		Where("order_number = ?", prepared.OrderNumber).First(&order).Error)
	require.Len(t, order.Items, 1)
	assert.NotNil(t, order.Payment.CompletedAt)
	assert.Equal(t, "pay-key", order.Payment.PaymentKey)

	// Stock decremented at completion, cart cleared, cache emptied
	assert.Equal(t, 8, env.stockOf(t, order.Items[0].ProductID))
	c, err := env.carts.GetOrCreate("sess-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Zero(t, env.cache.len())
}

func TestCompleteOrderIdempotent(t *testing.T) {
	env := newTestEnv(t)
	prepared := prepareCardOrder(t, env, "sess-1")

	first, err := env.orders.CompleteOrder(context.Background(), "sess-1", prepared.OrderNumber, true)
	require.NoError(t, err)

	// Redirect and webhook race: the second trigger arrives after the cache
	// was cleaned up and must return the committed order
	second, err := env.orders.CompleteOrder(context.Background(), "", prepared.OrderNumber, true)
	require.NoError(t, err)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, first.TotalAmount, second.TotalAmount)

	var count int64
	require.NoError(t, env.db.Model(&Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Stock only moved once
	var item OrderItem
	require.NoError(t, env.db.First(&item).Error)
	assert.Equal(t, 8, env.stockOf(t, item.ProductID))
}

func TestCompleteOrderByNumberOnly(t *testing.T) {
	env := newTestEnv(t)
	prepared := prepareCardOrder(t, env, "sess-1")

	// Webhook path: no session, only the merchant order number
	conf, err := env.orders.CompleteOrder(context.Background(), "", prepared.OrderNumber, true)
	require.NoError(t, err)
	assert.Equal(t, prepared.OrderNumber, conf.OrderNumber)
}

func TestCompleteOrderExpired(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orders.CompleteOrder(context.Background(), "sess-1", "ORD-20260101-FFFFFFFF", true)
	assert.ErrorIs(t, err, ErrPreparationExpired)
}

func TestCompleteOrderRequiresPaymentSuccess(t *testing.T) {
	env := newTestEnv(t)
	prepared := prepareCardOrder(t, env, "sess-1")

	_, err := env.orders.CompleteOrder(context.Background(), "sess-1", prepared.OrderNumber, false)
	assert.ErrorIs(t, err, ErrPaymentNotCompleted)

	// Preparation stays cached so the customer can retry
	assert.Equal(t, 2, env.cache.len())
	var count int64
	require.NoError(t, env.db.Model(&Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCompleteOrderSkipsVanishedProduct(t *testing.T) {
	env := newTestEnv(t)
	prepared := prepareCardOrder(t, env, "sess-1")

	// Product disappears between prepare and the payment callback
	require.NoError(t, env.db.Unscoped().Delete(&product.Product{}, 1).Error)

	conf, err := env.orders.CompleteOrder(context.Background(), "sess-1", prepared.OrderNumber, true)
	require.NoError(t, err)

	// The paid order still materializes with its item snapshot
	var order Order
	require.NoError(t, env.db.Preload("Items").Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	assert.Len(t, order.Items, 1)
}

func TestGetOrderConfirmationEmailGuard(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)

	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	require.NoError(t, err)

	got, err := env.orders.GetOrderConfirmation(conf.OrderNumber, "")
	require.NoError(t, err)
	assert.Equal(t, conf.OrderNumber, got.OrderNumber)

	got, err = env.orders.GetOrderConfirmation(conf.OrderNumber, "SARA@example.com")
	require.NoError(t, err)
	assert.Equal(t, conf.OrderNumber, got.OrderNumber)

	_, err = env.orders.GetOrderConfirmation(conf.OrderNumber, "other@example.com")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetPaymentTokenLazyRefresh(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)

	// Key acquisition failed at placement; the order carries no key
	env.gw.initiateErr = payment.ErrGateway
	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodCard
	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", req)
	require.NoError(t, err)

	// The gateway recovers
	env.gw.initiateErr = nil

	prepared, err := env.orders.GetPaymentToken(context.Background(), conf.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "pay-key", prepared.PaymentKey)
	assert.Contains(t, prepared.IframeURL, "payment_token=pay-key")

	// Only the payment row was patched
	var order Order
	require.NoError(t, env.db.Preload("Payment").Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	assert.Equal(t, "pay-key", order.Payment.PaymentKey)
	assert.Equal(t, PaymentStatusPending, order.Payment.Status)
	assert.Equal(t, payment.ProviderName, order.Payment.Provider)
}

func TestGetPaymentTokenRejectsCashAndPaidOrders(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)

	conf, err := env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	require.NoError(t, err)

	_, err = env.orders.GetPaymentToken(context.Background(), conf.OrderNumber)
	assert.Error(t, err)
}

func TestExecuteWalletPaymentUsesPreparedKey(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	env.fillCart(t, "sess-1", prod, 1)
	env.gw.walletResult = &payment.WalletResult{TransactionID: "888", Pending: true}

	req := codRequest(city.ID)
	req.PaymentMethod = PaymentMethodWallet
	prepared, err := env.orders.PrepareOrderForPayment(context.Background(), "sess-1", req)
	require.NoError(t, err)
	assert.Contains(t, prepared.RedirectTarget, prepared.OrderNumber)

	result, err := env.orders.ExecuteWalletPayment(context.Background(), "sess-1", prepared.OrderNumber, "01012345678")
	require.NoError(t, err)
	assert.Equal(t, "888", result.TransactionID)
	assert.True(t, result.Pending)
}

func TestRecordUsageFailureAbortsPlacement(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Mug", 10000, 10)
	city := env.seedCity(t, "Cairo", 3000)
	disc := env.seedDiscount(t, "RACE", 10)
	disc.UsageLimit = 1
	require.NoError(t, env.db.Save(disc).Error)

	env.fillCart(t, "sess-1", prod, 1)
	_, result, err := env.carts.ApplyDiscount("sess-1", "RACE")
	require.NoError(t, err)
	require.True(t, result.IsValid)

	// Another guest exhausts the cap between apply and checkout
	require.NoError(t, env.db.Model(disc).Update("usage_count", 1).Error)

	_, err = env.orders.PlaceOrder(context.Background(), "sess-1", codRequest(city.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, discount.ErrNotEligible)

	// Rolled back: stock untouched
	assert.Equal(t, 10, env.stockOf(t, prod.ID))
}

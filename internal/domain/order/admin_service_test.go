package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// placeCODOrder runs a full guest checkout and returns the stored order.
func placeCODOrder(t *testing.T, env *testEnv, sessionID string) *Order {
	t.Helper()
	prod := env.seedProduct(t, "Kettle", 15000, 10)
	city := env.seedCity(t, "Alexandria", 4000)
	env.fillCart(t, sessionID, prod, 2)

	conf, err := env.orders.PlaceOrder(context.Background(), sessionID, codRequest(city.ID))
	require.NoError(t, err)

	var order Order
	require.NoError(t, env.db.Preload("Items").Preload("Payment").
		Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	return &order
}

// completeCardOrder prepares and completes an online payment checkout.
func completeCardOrder(t *testing.T, env *testEnv, sessionID string) *Order {
	t.Helper()
	prepared := prepareCardOrder(t, env, sessionID)
	conf, err := env.orders.CompleteOrder(context.Background(), sessionID, prepared.OrderNumber, true)
	require.NoError(t, err)

	var order Order
	require.NoError(t, env.db.Preload("Items").Preload("Payment").
		Where("order_number = ?", conf.OrderNumber).First(&order).Error)
	return &order
}

func TestAdminMarkShipped(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	shipped, err := env.admin.MarkShipped(placed.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)
	assert.Contains(t, shipped.Notes, "Order shipped on")

	// Cannot ship twice
	_, err = env.admin.MarkShipped(placed.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminMarkShippedExplicitTime(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	when := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	shipped, err := env.admin.MarkShipped(placed.ID, &when)
	require.NoError(t, err)
	require.NotNil(t, shipped.ShippedAt)
	assert.True(t, shipped.ShippedAt.Equal(when))
}

func TestAdminMarkDeliveredSettlesCashOnDelivery(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	_, err := env.admin.MarkShipped(placed.ID, nil)
	require.NoError(t, err)

	delivered, err := env.admin.MarkDelivered(placed.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	// Cash changes hands at the door
	require.NotNil(t, delivered.Payment)
	assert.Equal(t, PaymentStatusSucceeded, delivered.Payment.Status)
	assert.NotNil(t, delivered.Payment.CompletedAt)
}

func TestAdminMarkDeliveredBackfillsShippedAt(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	when := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	delivered, err := env.admin.MarkDelivered(placed.ID, &when)
	require.NoError(t, err)
	require.NotNil(t, delivered.ShippedAt)
	assert.True(t, delivered.ShippedAt.Before(when))
}

func TestAdminMarkDeliveredBlockedAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	_, err := env.admin.Cancel(placed.ID, "")
	require.NoError(t, err)

	_, err = env.admin.MarkDelivered(placed.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminCancelRestocksAndVoidsPayment(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")
	productID := placed.Items[0].ProductID
	require.Equal(t, 8, env.stockOf(t, productID))

	cancelled, err := env.admin.Cancel(placed.ID, "customer changed their mind")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)
	assert.Contains(t, cancelled.Notes, "customer changed their mind")
	assert.Equal(t, PaymentStatusCancelled, cancelled.Payment.Status)

	// Units returned to the shelf
	assert.Equal(t, 10, env.stockOf(t, productID))
}

func TestAdminCancelAfterCaptureRefunds(t *testing.T) {
	env := newTestEnv(t)
	paid := completeCardOrder(t, env, "sess-1")
	require.Equal(t, PaymentStatusSucceeded, paid.Payment.Status)

	cancelled, err := env.admin.Cancel(paid.ID, "out of stock at the warehouse")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)

	// Money was captured; the financial record must show it flowing back
	assert.Equal(t, PaymentStatusRefunded, cancelled.Payment.Status)
	assert.Equal(t, 10, env.stockOf(t, paid.Items[0].ProductID))
}

func TestAdminCancelBlockedOnceShipped(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")
	_, err := env.admin.MarkShipped(placed.ID, nil)
	require.NoError(t, err)

	_, err = env.admin.Cancel(placed.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAdminRefundOnlyDelivered(t *testing.T) {
	env := newTestEnv(t)
	placed := placeCODOrder(t, env, "sess-1")

	_, err := env.admin.Refund(placed.ID, "damaged in transit")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.admin.MarkShipped(placed.ID, nil)
	require.NoError(t, err)
	_, err = env.admin.MarkDelivered(placed.ID, nil)
	require.NoError(t, err)

	refunded, err := env.admin.Refund(placed.ID, "damaged in transit")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRefunded, refunded.Status)
	assert.Equal(t, PaymentStatusRefunded, refunded.Payment.Status)
	assert.Contains(t, refunded.Notes, "damaged in transit")
	assert.Equal(t, 10, env.stockOf(t, placed.Items[0].ProductID))
}

func TestAdminGetUnknownOrder(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.admin.Get(999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAdminListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	prod := env.seedProduct(t, "Kettle", 15000, 100)
	city := env.seedCity(t, "Alexandria", 4000)

	var first *Order
	for i := 0; i < 3; i++ {
		sessionID := string(rune('a' + i))
		env.fillCart(t, sessionID, prod, 1)
		conf, err := env.orders.PlaceOrder(context.Background(), sessionID, codRequest(city.ID))
		require.NoError(t, err)
		if i == 0 {
			var order Order
			require.NoError(t, env.db.Where("order_number = ?", conf.OrderNumber).First(&order).Error)
			first = &order
		}
	}
	_, err := env.admin.MarkShipped(first.ID, nil)
	require.NoError(t, err)

	all, total, err := env.admin.List(ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	shipped, total, err := env.admin.List(ListFilter{Status: OrderStatusShipped})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, shipped, 1)
	assert.Equal(t, first.ID, shipped[0].ID)

	byEmail, total, err := env.admin.List(ListFilter{GuestEmail: "SARA@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, byEmail, 3)

	page, total, err := env.admin.List(ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)
}

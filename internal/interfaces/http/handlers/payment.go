// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
)

// PaymentHandler handles gateway-facing endpoints: wallet charges, payment
// verification and the provider's server-to-server callback.
type PaymentHandler struct {
	orders  *order.Service
	gateway *payment.PaymobService
	log     *logrus.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(orders *order.Service, gateway *payment.PaymobService, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{orders: orders, gateway: gateway, log: log}
}

// PayWithWallet handles POST /payment/wallet
func (h *PaymentHandler) PayWithWallet(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session not established"})
		return
	}

	var req struct {
		OrderNumber string `json:"order_number"`
		PhoneNumber string `json:"phone_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.orders.ExecuteWalletPayment(c.Request.Context(), sessionID, req.OrderNumber, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidWalletPhone):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet phone number"})
		case errors.Is(err, order.ErrPreparationExpired):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order data not found or expired"})
		case errors.Is(err, order.ErrPaymentNotCompleted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Order has no pending payment"})
		case errors.Is(err, payment.ErrGateway):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Wallet payment failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Wallet payment submitted",
		"data":    result,
	})
}

// VerifyPayment handles GET /payment/verify/:transactionId
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	status, err := h.orders.VerifyPayment(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		if errors.Is(err, payment.ErrGateway) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transaction status retrieved",
		"data":    status,
	})
}

// Webhook handles POST /webhooks/paymob. The provider calls this on every
// transaction state change; a verified successful transaction drives order
// completion. The response is always 200 for verified payloads so the
// provider does not retry deliveries we have already processed.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var payload payment.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	signature := c.Query("hmac")
	if signature == "" {
		signature = c.GetHeader("hmac")
	}
	if !h.gateway.VerifyWebhookSignature(&payload, signature) {
		h.log.WithField("transaction_id", payload.Obj.ID).
			Warn("Rejected webhook with invalid signature")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	if payload.Type != "TRANSACTION" {
		c.JSON(http.StatusOK, gin.H{"message": "Ignored"})
		return
	}

	txn := payload.Obj
	entry := h.log.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"order_number":   txn.Order.MerchantOrderID,
		"success":        txn.Success,
		"pending":        txn.Pending,
	})

	if !txn.Success || txn.Pending {
		entry.Info("Webhook received for non-final transaction")
		c.JSON(http.StatusOK, gin.H{"message": "Acknowledged"})
		return
	}

	confirmation, err := h.orders.CompleteOrder(c.Request.Context(), "", txn.Order.MerchantOrderID, true)
	if err != nil {
		// Completion may legitimately fail when the redirect beat the
		// webhook and the preparation is gone with the order committed, or
		// when the TTL expired. The provider gets a 200 either way; the
		// failure is kept in the logs for reconciliation.
		entry.WithError(err).Warn("Webhook-driven order completion failed")
		c.JSON(http.StatusOK, gin.H{"message": "Acknowledged"})
		return
	}

	h.recordProviderTransaction(confirmation.OrderNumber, txn.ID)

	entry.Info("Order completed from webhook")
	c.JSON(http.StatusOK, gin.H{"message": "Order completed"})
}

// recordProviderTransaction stamps the gateway transaction id on the
// payment row once the webhook identifies it.
func (h *PaymentHandler) recordProviderTransaction(orderNumber string, transactionID int64) {
	err := h.orders.AttachProviderTransaction(orderNumber, strconv.FormatInt(transactionID, 10))
	if err != nil {
		h.log.WithError(err).WithField("order_number", orderNumber).
			Warn("Failed to record provider transaction id")
	}
}

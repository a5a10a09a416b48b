// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/discount"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/shipping"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
)

// CheckoutHandler handles guest checkout endpoints
type CheckoutHandler struct {
	orders   *order.Service
	shipping *shipping.Service
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(orders *order.Service, shippingSvc *shipping.Service) *CheckoutHandler {
	return &CheckoutHandler{orders: orders, shipping: shippingSvc}
}

// checkoutRequest is the shared payload for placing or preparing an order
type checkoutRequest struct {
	GuestName       string `json:"guest_name" binding:"required"`
	GuestEmail      string `json:"guest_email" binding:"required,email"`
	GuestPhone      string `json:"guest_phone" binding:"required"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
	ShippingCityID  uint   `json:"shipping_city_id" binding:"required"`
	ShippingCost    int64  `json:"shipping_cost"`
	PaymentMethod   string `json:"payment_method" binding:"required"`
	Notes           string `json:"notes"`
}

func (r *checkoutRequest) toPlaceOrderRequest() (*order.PlaceOrderRequest, error) {
	method, err := order.ParsePaymentMethod(r.PaymentMethod)
	if err != nil {
		return nil, err
	}
	return &order.PlaceOrderRequest{
		GuestName:       r.GuestName,
		GuestEmail:      r.GuestEmail,
		GuestPhone:      r.GuestPhone,
		ShippingAddress: r.ShippingAddress,
		ShippingCityID:  r.ShippingCityID,
		ShippingCost:    r.ShippingCost,
		PaymentMethod:   method,
		Notes:           r.Notes,
	}, nil
}

// ListCities handles GET /checkout/cities
func (h *CheckoutHandler) ListCities(c *gin.Context) {
	cities, err := h.shipping.ListActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cities"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cities retrieved successfully",
		"data":    cities,
	})
}

// PlaceOrder handles POST /checkout/place-order
func (h *CheckoutHandler) PlaceOrder(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session not established"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	placeReq, err := req.toPlaceOrderRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	confirmation, err := h.orders.PlaceOrder(c.Request.Context(), sessionID, placeReq)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"data":    confirmation,
	})
}

// PrepareOrder handles POST /checkout/prepare
func (h *CheckoutHandler) PrepareOrder(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session not established"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	placeReq, err := req.toPlaceOrderRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prepared, err := h.orders.PrepareOrderForPayment(c.Request.Context(), sessionID, placeReq)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order prepared for payment",
		"data":    prepared,
	})
}

// CompleteOrder handles POST /checkout/complete
func (h *CheckoutHandler) CompleteOrder(c *gin.Context) {
	sessionID, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session not established"})
		return
	}

	var req struct {
		OrderNumber   string `json:"order_number"`
		TransactionID string `json:"transaction_id"`
		Success       *bool  `json:"success"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	// The client's success flag is a hint only. When a transaction id is
	// supplied the gateway is asked for the authoritative status.
	paymentSuccess := req.Success != nil && *req.Success
	if req.TransactionID != "" {
		status, err := h.orders.VerifyPayment(c.Request.Context(), req.TransactionID)
		if err == nil {
			paymentSuccess = status.Success
		}
	}

	confirmation, err := h.orders.CompleteOrder(c.Request.Context(), sessionID, req.OrderNumber, paymentSuccess)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order completed successfully",
		"data":    confirmation,
	})
}

// GetConfirmation handles GET /checkout/confirmation/:orderNumber
func (h *CheckoutHandler) GetConfirmation(c *gin.Context) {
	orderNumber := c.Param("orderNumber")
	confirmation, err := h.orders.GetOrderConfirmation(orderNumber, c.Query("email"))
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    confirmation,
	})
}

// GetPaymentToken handles GET /checkout/payment-token/:orderNumber
func (h *CheckoutHandler) GetPaymentToken(c *gin.Context) {
	prepared, err := h.orders.GetPaymentToken(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment token retrieved",
		"data":    prepared,
	})
}

// respondOrderError maps order pipeline sentinels to HTTP status codes
func (h *CheckoutHandler) respondOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	case errors.Is(err, order.ErrCityNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Shipping city not found"})
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, order.ErrPreparationExpired):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order data not found or expired"})
	case errors.Is(err, order.ErrPaymentNotCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment not completed"})
	case errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, inventory.ErrProductUnavailable),
		errors.Is(err, discount.ErrNotEligible),
		errors.Is(err, cart.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrGateway):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Checkout failed"})
	}
}

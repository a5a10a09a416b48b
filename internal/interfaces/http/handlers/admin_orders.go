// internal/interfaces/http/handlers/admin_orders.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront/internal/domain/order"
)

// AdminOrderHandler handles staff-side order management endpoints
type AdminOrderHandler struct {
	admin *order.AdminService
}

// NewAdminOrderHandler creates a new admin order handler
func NewAdminOrderHandler(admin *order.AdminService) *AdminOrderHandler {
	return &AdminOrderHandler{admin: admin}
}

// ListOrders handles GET /admin/orders
func (h *AdminOrderHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	filter := order.ListFilter{
		Status:        order.OrderStatus(c.Query("status")),
		PaymentStatus: order.PaymentStatus(c.Query("payment_status")),
		GuestEmail:    c.Query("email"),
		Page:          page,
		PerPage:       perPage,
	}

	orders, total, err := h.admin.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
		"meta": gin.H{
			"total":    total,
			"page":     page,
			"per_page": perPage,
		},
	})
}

// GetOrder handles GET /admin/orders/:id
func (h *AdminOrderHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	result, err := h.admin.Get(uint(orderID))
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    result,
	})
}

// MarkShipped handles POST /admin/orders/:id/ship
func (h *AdminOrderHandler) MarkShipped(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		ShippedAt *time.Time `json:"shipped_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		// Body is optional
		req.ShippedAt = nil
	}

	result, err := h.admin.MarkShipped(uint(orderID), req.ShippedAt)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order marked as shipped",
		"data":    result,
	})
}

// MarkDelivered handles POST /admin/orders/:id/deliver
func (h *AdminOrderHandler) MarkDelivered(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		DeliveredAt *time.Time `json:"delivered_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		req.DeliveredAt = nil
	}

	result, err := h.admin.MarkDelivered(uint(orderID), req.DeliveredAt)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order marked as delivered",
		"data":    result,
	})
}

// CancelOrder handles POST /admin/orders/:id/cancel
func (h *AdminOrderHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	result, err := h.admin.Cancel(uint(orderID), req.Reason)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled",
		"data":    result,
	})
}

// RefundOrder handles POST /admin/orders/:id/refund
func (h *AdminOrderHandler) RefundOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	result, err := h.admin.Refund(uint(orderID), req.Reason)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order refunded",
		"data":    result,
	})
}

// respondAdminError maps admin mutation sentinels to HTTP status codes
func (h *AdminOrderHandler) respondAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Order mutation failed"})
	}
}

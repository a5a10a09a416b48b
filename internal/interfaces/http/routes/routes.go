// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/shipping"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
)

// Dependencies bundles the constructed services the route handlers need
type Dependencies struct {
	Carts    *cart.Service
	Orders   *order.Service
	Admin    *order.AdminService
	Shipping *shipping.Service
	Gateway  *payment.PaymobService
	Log      *logrus.Logger
}

// SetupRoutes wires all API routes onto the versioned router group
func SetupRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	setupCartRoutes(rg, deps)
	setupCheckoutRoutes(rg, deps)
	setupPaymentRoutes(rg, deps)
	setupAdminRoutes(rg, deps)
}

func setupCartRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	cartHandler := handlers.NewCartHandler(deps.Carts)

	carts := rg.Group("/cart")
	{
		carts.GET("", cartHandler.GetCart)
		carts.DELETE("", cartHandler.ClearCart)
		carts.POST("/items", cartHandler.AddItem)
		carts.PUT("/items/:productId", cartHandler.UpdateItem)
		carts.DELETE("/items/:productId", cartHandler.RemoveItem)
		carts.POST("/discount", cartHandler.ApplyDiscount)
		carts.DELETE("/discount", cartHandler.RemoveDiscount)
		carts.POST("/validate", cartHandler.ValidateCart)
		carts.POST("/merge", cartHandler.MergeCart)
	}
}

func setupCheckoutRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	checkoutHandler := handlers.NewCheckoutHandler(deps.Orders, deps.Shipping)

	checkout := rg.Group("/checkout")
	{
		checkout.GET("/cities", checkoutHandler.ListCities)
		checkout.POST("/place-order", checkoutHandler.PlaceOrder)
		checkout.POST("/prepare", checkoutHandler.PrepareOrder)
		checkout.POST("/complete", checkoutHandler.CompleteOrder)
		checkout.GET("/confirmation/:orderNumber", checkoutHandler.GetConfirmation)
		checkout.GET("/payment-token/:orderNumber", checkoutHandler.GetPaymentToken)
	}
}

func setupPaymentRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	paymentHandler := handlers.NewPaymentHandler(deps.Orders, deps.Gateway, deps.Log)

	payments := rg.Group("/payment")
	{
		payments.POST("/wallet", paymentHandler.PayWithWallet)
		payments.GET("/verify/:transactionId", paymentHandler.VerifyPayment)
	}

	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/paymob", paymentHandler.Webhook)
	}
}

func setupAdminRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	adminHandler := handlers.NewAdminOrderHandler(deps.Admin)

	admin := rg.Group("/admin")
	{
		orders := admin.Group("/orders")
		{
			orders.GET("", adminHandler.ListOrders)
			orders.GET("/:id", adminHandler.GetOrder)
			orders.POST("/:id/ship", adminHandler.MarkShipped)
			orders.POST("/:id/deliver", adminHandler.MarkDelivered)
			orders.POST("/:id/cancel", adminHandler.CancelOrder)
			orders.POST("/:id/refund", adminHandler.RefundOrder)
		}
	}
}

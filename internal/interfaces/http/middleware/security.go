package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeaders hardens every response. The API itself is never framed;
// the payment iframe lives on the provider's origin and is embedded by the
// storefront frontend, not by responses from this server.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		// JSON-only API; any HTML reflected into a response must stay inert
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Cache-Control", "no-store")
		c.Header("Server", "storefront")

		c.Next()
	}
}

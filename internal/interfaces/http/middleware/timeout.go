package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout bounds request handling. Gateway-facing paths get extra headroom:
// checkout preparation and wallet charges make sequential calls to the
// payment provider and routinely outlive a normal API deadline.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := timeout
		if isGatewayBound(c.Request.URL.Path) {
			limit = timeout * 2
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), limit)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.Next()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.Abort()
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request timeout"})
		}
	}
}

func isGatewayBound(path string) bool {
	return strings.Contains(path, "/checkout/") ||
		strings.Contains(path, "/payment/") ||
		strings.Contains(path, "/webhooks/")
}

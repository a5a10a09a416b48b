// internal/interfaces/http/middleware/session.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionContextKey = "session_id"
	sessionCookieName = "session_id"
	sessionHeaderName = "X-Session-ID"
)

// Session resolves the guest session id for the request. SPA clients send it
// in the X-Session-ID header; browser clients get a long-lived cookie. A
// request with neither is assigned a fresh id so the very first cart call
// already has a session to attach to.
func Session(cookieMaxAge int, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(sessionHeaderName)
		if sessionID == "" {
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				sessionID = cookie
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookieName, sessionID, cookieMaxAge, "/", "", secureCookie, true)
		}

		c.Set(sessionContextKey, sessionID)
		c.Header(sessionHeaderName, sessionID)
		c.Next()
	}
}

// GetSessionID extracts the guest session id from the request context
func GetSessionID(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get(sessionContextKey)
	if !exists {
		return "", false
	}
	id, ok := sessionID.(string)
	return id, ok && id != ""
}

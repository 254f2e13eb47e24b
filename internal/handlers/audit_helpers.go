package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

// requestIDFromContext resolves the request id once per request: the edge
// header when present, a fresh uuid otherwise.
func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// userIDFromContext returns the authenticated user id set by the auth
// middleware, or nil on unauthenticated routes.
func userIDFromContext(c *gin.Context) *int64 {
	if id := c.GetInt("userID"); id != 0 {
		value := int64(id)
		return &value
	}
	return nil
}

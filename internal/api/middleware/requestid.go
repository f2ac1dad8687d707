package middleware

import (
	"strings"

	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key holding the request id
const RequestIDKey = "request_id"

// RequestID tags each request with an id. A caller-supplied UUID or
// req_-prefixed ULID is kept; anything else is replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if !validRequestID(rid) {
			rid = id.NewRequestID().String()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

func validRequestID(rid string) bool {
	if rid == "" {
		return false
	}
	if _, err := uuid.Parse(rid); err == nil {
		return true
	}
	ulidPart, ok := strings.CutPrefix(rid, id.RequestPrefix+"_")
	return ok && id.IsValid(ulidPart)
}

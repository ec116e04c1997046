package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the Gin context key RequestID stores the correlation
// ID under; handlers read it back to stamp error responses and log
// lines with the same ID a client sees in the X-Request-ID header.
const RequestIDKey = "request_id"

// RequestID assigns every request a correlation ID, reusing one the
// caller already supplied via X-Request-ID, and echoes it back in the
// response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

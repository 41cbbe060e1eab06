// Package middleware carries the gin middleware chain.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/ccs/pkg/constants"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a correlating identifier to every request. A caller-
// supplied header value is honored so upstream proxies can stitch traces.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(string(constants.ContextKeyRequestID), id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

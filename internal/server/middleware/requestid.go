package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID is the correlation header propagated on both the
	// request and the response.
	HeaderRequestID = "X-Request-Id"

	// ContextRequestID is the gin context key carrying the request id.
	ContextRequestID = "request_id"
)

// RequestID tags every request with a correlation id. An id supplied by the
// caller is kept so a chain of services shares one id; otherwise a fresh
// UUID is minted. The id is echoed on the response and stored in the gin
// context for handlers and the request logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

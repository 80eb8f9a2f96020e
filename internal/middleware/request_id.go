package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xxxsen/common/trace"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

// RequestID exposes the request's trace id as request_id and echoes it in
// X-Request-Id, so responses match the traceid on log lines. Without an
// upstream trace middleware it takes the caller's header or a new uuid and
// stores it as the trace id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := trace.GetTraceId(ctx)
		if !ok || id == "" {
			id = strings.TrimSpace(c.GetHeader(RequestIDHeader))
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			c.Request = c.Request.WithContext(trace.WithTraceId(ctx, id))
		}
		c.Set(RequestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

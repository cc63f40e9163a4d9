// Package middleware holds the gin middleware of the lotcost API: request
// tracing, organization scoping, idempotency and error rendering.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"lotcost/internal/core/apperror"
	"lotcost/pkg/logger"
)

// Gin context keys shared by the middleware and handlers.
const (
	ContextRequestID        = "request_id"
	ContextTraceID          = "trace_id"
	ContextIdempotencyKey   = "idempotency_key"
	ContextIdempotencyStore = "idempotency_store"
)

// Recovery turns a panic in a handler into an INTERNAL error. The stack
// goes to the log; the client only sees the request ID. A panic inside a
// consume transaction has already rolled it back by the time it gets here.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				appErr := apperror.NewInternal(fmt.Errorf("panic: %v", err)).
					WithDetail("request_id", c.GetString(ContextRequestID))
				_ = c.Error(appErr)
				// The panic unwound past ErrorHandler, so render here.
				if !c.Writer.Written() {
					renderError(c, appErr)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

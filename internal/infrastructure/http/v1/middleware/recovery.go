// Package middleware holds the gin middleware of the pricing API.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"farmacia/internal/core/apperror"
	"farmacia/pkg/logger"
)

// Recovery turns a panic into an INTERNAL_ERROR response. The panic unwinds
// past ErrorHandler, so the body is written here. The stack is only logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", rec,
				"method", c.Request.Method,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			appErr := apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
				WithDetail("request_id", c.GetString(ctxRequestID))
			_ = c.Error(appErr)
			writeError(c, appErr)
		}()
		c.Next()
	}
}

package middleware

import (
	"github.com/gin-gonic/gin"

	"farmacia/internal/core/apperror"
	"farmacia/pkg/logger"
)

// errorBody is the wire shape of every failed request.
type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// ErrorHandler renders the last error recorded on the gin context.
// Causes are logged and never leave the process.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		switch {
		case !ok:
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err).WithDetail("request_id", c.GetString(ctxRequestID))
		case appErr.Err != nil:
			logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
		}
		writeError(c, appErr)
	}
}

// writeError aborts with appErr and marks a pending idempotency key failed.
func writeError(c *gin.Context, appErr *apperror.AppError) {
	body := errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	failIdempotency(c, appErr.HTTPStatus, body)
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}

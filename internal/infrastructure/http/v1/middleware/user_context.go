package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "farmacia/internal/core/context"
)

// HeaderUserID names the acting user. It is set by the gateway in front of
// the service and trusted as given.
const HeaderUserID = "X-User-ID"

const maxUserIDLen = 128

// UserContext copies X-User-ID into the request context so pricing history
// records who made each change. Requests without the header act as the
// system user.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid != "" && len(uid) <= maxUserIDLen {
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{UserID: uid})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

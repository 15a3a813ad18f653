package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-template-backend/internal/reqctx"
)

const (
	// userIDKey is the Gin context key of the authenticated owner.
	userIDKey = "userID"
	// HeaderUserID carries the caller identity until real auth is in place.
	HeaderUserID = "X-User-ID"
)

// Identity stores the caller's owner id under "userID" unless an upstream
// auth middleware already did. It reads X-User-ID and leaves the key unset
// when the header is blank.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(userIDKey); !ok {
			if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
				c.Set(userIDKey, id)
			}
		}
		c.Next()
	}
}

// CallerContext puts the client IP and User-Agent on the request context
// for failure auditing.
func CallerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := reqctx.With(c.Request.Context(), reqctx.Caller{
			ClientIP:  c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// userIDFromCtx returns the owner stored by Identity, or "demo-user".
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "demo-user"
}

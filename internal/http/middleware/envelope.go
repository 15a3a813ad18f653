package middleware

import "github.com/gin-gonic/gin"

// Codes used by middleware-generated errors. Handlers share the same values.
const (
	CodeBadRequest  = "BAD_REQUEST"
	CodeRateLimited = "TOO_MANY_REQUESTS"
	CodeUnexpected  = "UNEXPECTED_ERROR"
)

// abortJSON stops the chain with the API error envelope:
//
//	{"data": null, "error": {"code": "...", "message": "...", "request_id": "..."}}
func abortJSON(c *gin.Context, status int, code, msg string) {
	rid := c.Writer.Header().Get(requestIDHeader)
	if rid == "" {
		v, _ := c.Get(requestIDKey)
		rid = asString(v)
	}
	errBody := gin.H{"code": code, "message": msg}
	if rid != "" {
		errBody["request_id"] = rid
	}
	ObserveErrorCode(code)
	c.AbortWithStatusJSON(status, gin.H{"data": nil, "error": errBody})
}

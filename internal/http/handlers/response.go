// Package handlers provides HTTP handler implementations for the public API.
//
// Every response uses one envelope. Successful calls fill data and leave
// error null; failures do the opposite:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "data": null,
//	  "error": {
//	    "code": "TEMPLATE_NOT_FOUND",
//	    "message": "Template not found.",
//	    "request_id": "123e4567-e89b-12d3-a456-426614174000"
//	  }
//	}
//
// Handlers never build error bodies themselves: they hand errors to
// RespondError (responder.go), which owns the status, code and wording.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-template-backend/internal/http/middleware"
)

// Envelope is the response shape of every endpoint.
type Envelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	// Stable, machine-readable code
	Code string `json:"code" example:"TEMPLATE_NOT_FOUND"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"Template not found."`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// ErrorResponse documents the failure envelope in OpenAPI.
type ErrorResponse struct {
	Data  any       `json:"data" swaggertype:"object"`
	Error ErrorBody `json:"error"`
}

// fail aborts the request with the error envelope. 5xx responses are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	body := &ErrorBody{
		Code:      code,
		Message:   msg,
		RequestID: c.Writer.Header().Get("X-Request-ID"),
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	middleware.ObserveErrorCode(code)
	c.AbortWithStatusJSON(status, Envelope{Error: body})
}

// Fail is the exported variant of fail() for router-level handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes data inside the success envelope.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Data: data})
}

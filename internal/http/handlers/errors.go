// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Taxonomy failures carry their own codes (see internal/errcode). The codes
// below cover everything else: malformed input, routing and unexpected
// failures. Clients branch on the code, never on the message.
//
// Example response:
//
//	{
//	  "data": null,
//	  "error": {
//	    "code": "METHOD_NOT_ALLOWED",
//	    "message": "method not allowed",
//	    "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6"
//	  }
//	}
package handlers

import "github.com/tbourn/go-template-backend/internal/http/middleware"

const (
	ErrCodeBadRequest       = middleware.CodeBadRequest
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited      = middleware.CodeRateLimited
	ErrCodeUnexpected       = middleware.CodeUnexpected
)

// msgUnexpected is the only text a client sees for unmanaged failures.
const msgUnexpected = "An unexpected error occurred."

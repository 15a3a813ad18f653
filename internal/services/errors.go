// Package services holds the template workflow: the request lifecycle, the
// failure audit log, and the template service that calls the AI vendor
// through the guard.
//
// Errors fall in two groups. Taxonomy failures are *errcode.Error values and
// carry their own status and code. Everything else is an unmanaged error
// declared here; the HTTP layer maps those to fixed responses.
package services

import (
	"errors"
	"fmt"
)

// Lifecycle errors.
var (
	// ErrRequestNotFound means no matching template request exists.
	ErrRequestNotFound = errors.New("template request not found")

	// ErrInvalidTransition means the request already left PENDING.
	ErrInvalidTransition = errors.New("template request is not pending")
)

// BadInputError reports a malformed request. Details are caller-supplied and
// must be redacted before logging.
type BadInputError struct {
	Msg     string
	Details map[string]any
}

func (e *BadInputError) Error() string { return e.Msg }

// ValidationError reports a well-formed request that breaks a field rule.
type ValidationError struct {
	Field   string
	Msg     string
	Details map[string]any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// BadInput builds a *BadInputError.
func BadInput(msg string, details map[string]any) error {
	return &BadInputError{Msg: msg, Details: details}
}

// Invalid builds a *ValidationError.
func Invalid(field, msg string, details map[string]any) error {
	return &ValidationError{Field: field, Msg: msg, Details: details}
}

// Package extcall defines the result shapes of a call to an external
// service: a classified Outcome for every call that produced a response,
// and TransportError for calls that never got one.
package extcall

import (
	"errors"
	"fmt"
)

// WireCodeParsingFailed is reported when a non-success response body could
// not be read as the vendor's structured error.
const WireCodeParsingFailed = "PARSING_FAILED"

// WireCodeUnclassified is reported for an outcome that is neither a success
// nor a failure with details. It is never a registered code, so it resolves
// to the taxonomy's fallback.
const WireCodeUnclassified = "UNCLASSIFIED_OUTCOME"

// Kind classifies an outcome.
type Kind int

const (
	Complete Kind = iota + 1
	Partial
	Failure
)

func (k Kind) String() string {
	switch k {
	case Complete:
		return "complete"
	case Partial:
		return "partial"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// RawFailure is a vendor failure exactly as received, before any
// translation. It implements error so an operation can return it as-is.
type RawFailure struct {
	HTTPStatus  int
	WireCode    string
	WireMessage string
}

func (f *RawFailure) Error() string {
	return fmt.Sprintf("external failure (status %d, code %q): %s", f.HTTPStatus, f.WireCode, f.WireMessage)
}

// TransportError means no response was obtained: dial failure, timeout,
// cancellation or an unreadable body.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Outcome is the classified result of a call that produced a response.
// Payload is set for Complete and Partial, Failure for Failure.
type Outcome[T any] struct {
	Kind    Kind
	Payload T
	Failure *RawFailure
}

// Completed wraps a full success.
func Completed[T any](payload T) Outcome[T] {
	return Outcome[T]{Kind: Complete, Payload: payload}
}

// Partially wraps a partial success.
func Partially[T any](payload T) Outcome[T] {
	return Outcome[T]{Kind: Partial, Payload: payload}
}

// Failed wraps a vendor failure.
func Failed[T any](f *RawFailure) Outcome[T] {
	return Outcome[T]{Kind: Failure, Failure: f}
}

// Err returns the outcome's failure as an error, or nil for Complete and
// Partial. A Failure without details and an unknown Kind are failures too.
func (o Outcome[T]) Err() error {
	switch o.Kind {
	case Complete, Partial:
		return nil
	case Failure:
		if o.Failure != nil {
			return o.Failure
		}
		return &RawFailure{WireCode: WireCodeUnclassified, WireMessage: "failure outcome without details"}
	default:
		return &RawFailure{WireCode: WireCodeUnclassified, WireMessage: fmt.Sprintf("outcome of kind %s", o.Kind)}
	}
}

// AsRawFailure extracts a RawFailure from err's chain.
func AsRawFailure(err error) (*RawFailure, bool) {
	var f *RawFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// AsTransportError extracts a TransportError from err's chain.
func AsTransportError(err error) (*TransportError, bool) {
	var t *TransportError
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

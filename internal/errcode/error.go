package errcode

import (
	"errors"
	"fmt"
)

// Kind distinguishes normalized errors by the taxonomy that produced them.
type Kind string

const (
	KindAI       Kind = "ai"
	KindTemplate Kind = "template"
	KindGeneric  Kind = "generic"
)

// Error is the normalized form of an external or domain failure. It is the
// only error shape the interception layer lets through upward.
type Error struct {
	Kind    Kind
	Variant Variant
	// OriginalMessage is the text that came with the failure, unfiltered.
	// Whether it reaches the caller is the responder's decision.
	OriginalMessage string
}

func (e *Error) Error() string {
	if e.OriginalMessage == "" {
		return fmt.Sprintf("%s/%s", e.Variant.Taxonomy, e.Variant.Code)
	}
	return fmt.Sprintf("%s/%s: %s", e.Variant.Taxonomy, e.Variant.Code, e.OriginalMessage)
}

// Is matches another *Error by taxonomy and code, so callers can write
// errors.Is(err, errcode.New(v, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Variant.Taxonomy == e.Variant.Taxonomy && t.Variant.Code == e.Variant.Code
}

// Constructor builds a normalized error for a resolved variant.
type Constructor func(v Variant, originalMessage string) error

// New builds a normalized error with the kind derived from the variant's taxonomy.
func New(v Variant, originalMessage string) error {
	return ConstructorFor(v.Taxonomy)(v, originalMessage)
}

// ConstructorFor selects the constructor for a taxonomy.
func ConstructorFor(id TaxonomyID) Constructor {
	switch id {
	case AI:
		return kindConstructor(KindAI)
	case Template:
		return kindConstructor(KindTemplate)
	default:
		return kindConstructor(KindGeneric)
	}
}

func kindConstructor(k Kind) Constructor {
	return func(v Variant, msg string) error {
		return &Error{Kind: k, Variant: v, OriginalMessage: msg}
	}
}

// As extracts a normalized error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, id TaxonomyID, code string) bool {
	e, ok := As(err)
	return ok && e.Variant.Taxonomy == id && e.Variant.Code == code
}

// PublicMessage is the text safe to show the caller: the variant's fixed
// message for internally controlled variants, otherwise the original text.
func (e *Error) PublicMessage() string {
	if e.Variant.InternallyControlled || e.OriginalMessage == "" {
		return e.Variant.Message
	}
	return e.OriginalMessage
}

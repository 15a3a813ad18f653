// Package reqctx carries the inbound caller's network identity through
// context.Context so code far from the HTTP layer can attribute work to it.
package reqctx

import (
	"context"
	"strings"
)

// Unknown is recorded when a value is missing.
const Unknown = "Unknown"

// Caller describes the inbound request's origin.
type Caller struct {
	ClientIP  string
	UserAgent string
}

type ctxKey struct{}

// With returns a copy of ctx carrying c.
func With(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// From returns the caller stored in ctx. Missing or blank fields are
// reported as Unknown, so the result is always usable for auditing.
func From(ctx context.Context) Caller {
	c, _ := ctx.Value(ctxKey{}).(Caller)
	return Caller{ClientIP: orUnknown(c.ClientIP), UserAgent: orUnknown(c.UserAgent)}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

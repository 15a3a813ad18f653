// Package guard wraps calls to external services so that every failure they
// report is translated exactly once: resolved into an error taxonomy, the
// owning request is moved to FAILED, an audit entry is written, and a
// normalized *errcode.Error is returned in place of the raw failure.
//
// Usage:
//
//	draft, err := guard.Run(ctx, ic, policy, userID, func(ctx context.Context) (Draft, error) {
//	    return client.Call(ctx, in)
//	})
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/extcall"
	"github.com/tbourn/go-template-backend/internal/observability"
	"github.com/tbourn/go-template-backend/internal/reqctx"
)

// RetryCount is recorded on every audit entry; calls are not retried.
const RetryCount = 1

// WireCodeTransport is the raw code audited for failures without a response.
const WireCodeTransport = "TRANSPORT_ERROR"

// RecordTimeout bounds the lifecycle and audit writes of one failure.
const RecordTimeout = 5 * time.Second

// Lifecycle is the subset of the request lifecycle the guard drives.
type Lifecycle interface {
	// FindLatestPending returns the newest PENDING request of ownerID.
	FindLatestPending(ctx context.Context, ownerID string) (requestID uint, found bool, err error)
	// MarkFailed moves a PENDING request to FAILED in its own durable scope.
	MarkFailed(ctx context.Context, requestID uint) error
}

// AuditLog persists failure audit entries.
type AuditLog interface {
	Record(ctx context.Context, entry *domain.FailureLog) error
}

// Interceptor holds the collaborators shared by every guarded call.
type Interceptor struct {
	Registry  *errcode.Registry
	Lifecycle Lifecycle
	Audit     AuditLog
	// Now is the clock used for latency; defaults to time.Now.
	Now func() time.Time
}

// New builds an Interceptor.
func New(reg *errcode.Registry, lc Lifecycle, audit AuditLog) *Interceptor {
	return &Interceptor{Registry: reg, Lifecycle: lc, Audit: audit, Now: time.Now}
}

// Policy parameterizes a guarded call site.
type Policy struct {
	Taxonomy  errcode.TaxonomyID
	Transport errcode.Variant
	raise     errcode.Constructor
}

// NewPolicy validates a call site's taxonomy and transport code against the
// registry. Call it at startup: an error here is a wiring bug.
func NewPolicy(reg *errcode.Registry, id errcode.TaxonomyID, transportCode string) (Policy, error) {
	if !reg.Has(id) {
		return Policy{}, fmt.Errorf("guard policy: %w: %q", errcode.ErrUnknownTaxonomy, id)
	}
	tv, ok := reg.Lookup(id, transportCode)
	if !ok {
		return Policy{}, fmt.Errorf("guard policy: transport code %q not in taxonomy %q", transportCode, id)
	}
	return Policy{Taxonomy: id, Transport: tv, raise: errcode.ConstructorFor(id)}, nil
}

// MustPolicy is NewPolicy that panics.
func MustPolicy(reg *errcode.Registry, id errcode.TaxonomyID, transportCode string) Policy {
	p, err := NewPolicy(reg, id, transportCode)
	if err != nil {
		panic(err)
	}
	return p
}

// Run invokes op and translates its failure.
//
// A *extcall.RawFailure or *extcall.TransportError is resolved, attributed
// and audited, and replaced by a normalized error. An error that is already
// normalized passes through untouched, so nested guarded calls audit once.
// Any other error is returned as-is.
func Run[T any](ctx context.Context, ic *Interceptor, p Policy, ownerID string, op func(context.Context) (T, error)) (T, error) {
	start := ic.now()
	v, err := op(ctx)
	if err == nil {
		return v, nil
	}
	var zero T

	if _, ok := errcode.As(err); ok {
		return zero, err
	}

	var f failure
	switch {
	case asRaw(err, &f):
		variant, rerr := ic.Registry.Resolve(p.Taxonomy, f.code)
		if rerr != nil {
			return zero, fmt.Errorf("resolve %s/%s: %w", p.Taxonomy, f.code, rerr)
		}
		f.variant = variant
	case asTransport(err, &f):
		f.variant = p.Transport
		f.status = p.Transport.Status
	default:
		return zero, err
	}
	f.latency = ic.now().Sub(start)

	ic.record(ctx, ownerID, f)
	return zero, p.raise(f.variant, f.message)
}

// failure is the normalized view of either failure kind.
type failure struct {
	code    string
	message string
	status  int
	latency time.Duration
	variant errcode.Variant
}

func asRaw(err error, f *failure) bool {
	raw, ok := extcall.AsRawFailure(err)
	if !ok {
		return false
	}
	*f = failure{code: raw.WireCode, message: raw.WireMessage, status: raw.HTTPStatus}
	return true
}

func asTransport(err error, f *failure) bool {
	te, ok := extcall.AsTransportError(err)
	if !ok {
		return false
	}
	*f = failure{code: WireCodeTransport, message: te.Error()}
	return true
}

// record attributes the failure to the owner's latest PENDING request,
// fails it and writes one audit entry. Errors are logged, never returned:
// the caller must always receive the normalized error.
//
// The writes run on a context detached from the caller's cancellation, so a
// failure caused by a disconnect or deadline is still recorded.
func (ic *Interceptor) record(ctx context.Context, ownerID string, f failure) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RecordTimeout)
	defer cancel()

	if ownerID == "" {
		ownerID = reqctx.Unknown
	}
	caller := reqctx.From(ctx)
	lg := loggerFrom(ctx).With().
		Str("owner_id", ownerID).
		Str("taxonomy", string(f.variant.Taxonomy)).
		Str("resolved_code", f.variant.Code).
		Str("original_code", f.code).
		Int("http_status", f.status).
		Logger()

	observability.TranslatedFailures.WithLabelValues(string(f.variant.Taxonomy), f.variant.Code).Inc()

	requestID, found, err := ic.Lifecycle.FindLatestPending(ctx, ownerID)
	if err != nil {
		observability.AuditWriteErrors.WithLabelValues("lookup").Inc()
		lg.Error().Err(err).Msg("pending request lookup failed; failure not audited")
		return
	}
	if !found {
		lg.Warn().Msg("no pending request for owner; failure not audited")
		return
	}
	lg = lg.With().Uint("request_id", requestID).Logger()

	if err := ic.Lifecycle.MarkFailed(ctx, requestID); err != nil {
		observability.AuditWriteErrors.WithLabelValues("mark_failed").Inc()
		lg.Error().Err(err).Msg("mark request failed")
	}

	entry := &domain.FailureLog{
		RequestID:  requestID,
		ErrorCode:  f.variant.Code,
		Detail:     Detail(f.code, f.message),
		RetryCount: RetryCount,
		UserAgent:  caller.UserAgent,
		ClientIP:   caller.ClientIP,
		HTTPStatus: f.status,
		LatencyMs:  f.latency.Milliseconds(),
	}
	if err := ic.Audit.Record(ctx, entry); err != nil {
		observability.AuditWriteErrors.WithLabelValues("audit").Inc()
		lg.Error().Err(err).Msg("failure audit write failed")
		return
	}
	lg.Info().Int64("latency_ms", entry.LatencyMs).Msg("external failure audited")
}

// Detail formats the audit detail for a raw failure.
func Detail(originalCode, message string) string {
	return fmt.Sprintf("[Original Code: %s] %s", originalCode, message)
}

func (ic *Interceptor) now() time.Time {
	if ic.Now != nil {
		return ic.Now()
	}
	return time.Now()
}

// loggerFrom prefers a logger attached to ctx over the global one.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := log.With().Logger()
	return &l
}

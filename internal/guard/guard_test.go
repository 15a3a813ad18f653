package guard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/extcall"
	"github.com/tbourn/go-template-backend/internal/reqctx"
)

type fakeLifecycle struct {
	mu        sync.Mutex
	pending   map[string][]uint
	failed    []uint
	lookupErr error
	markErr   error
}

// The fakes fail on a done context, like the gorm-backed implementations.

func (f *fakeLifecycle) FindLatestPending(ctx context.Context, owner string) (uint, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if f.lookupErr != nil {
		return 0, false, f.lookupErr
	}
	ids := f.pending[owner]
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[len(ids)-1], true, nil
}

func (f *fakeLifecycle) MarkFailed(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.markErr != nil {
		return f.markErr
	}
	f.failed = append(f.failed, id)
	for owner, ids := range f.pending {
		for i, p := range ids {
			if p == id {
				f.pending[owner] = append(ids[:i:i], ids[i+1:]...)
			}
		}
	}
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.FailureLog
	err     error
}

func (a *fakeAudit) Record(ctx context.Context, e *domain.FailureLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, *e)
	return nil
}

type fixture struct {
	ic     *Interceptor
	policy Policy
	lc     *fakeLifecycle
	audit  *fakeAudit
}

func newFixture(t *testing.T, pending map[string][]uint) *fixture {
	t.Helper()
	reg := errcode.MustBuiltin()
	lc := &fakeLifecycle{pending: pending}
	audit := &fakeAudit{}
	ic := New(reg, lc, audit)

	// each call to Now advances 40ms so latency is deterministic
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	ic.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * 40 * time.Millisecond)
	}
	return &fixture{ic: ic, policy: MustPolicy(reg, errcode.AI, errcode.CodeServiceUnavailable), lc: lc, audit: audit}
}

func failWith(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func callerCtx() context.Context {
	return reqctx.With(context.Background(), reqctx.Caller{ClientIP: "203.0.113.7", UserAgent: "test-agent/1.0"})
}

func TestRun_SuccessPassesThrough(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {1}})

	v, err := Run(context.Background(), fx.ic, fx.policy, "u1", func(context.Context) (string, error) {
		return "draft", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", v)
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.lc.failed)
}

func TestRun_VendorFailureIsResolvedAuditedAndRaised(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {5, 9}})

	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", failWith(&extcall.RawFailure{
		HTTPStatus: http.StatusTooManyRequests, WireCode: "API_QUOTA_EXCEEDED", WireMessage: "Daily quota reached",
	}))

	ne, ok := errcode.As(err)
	require.True(t, ok, "want normalized error, got %v", err)
	assert.Equal(t, errcode.KindAI, ne.Kind)
	assert.Equal(t, errcode.CodeAPIQuotaExceeded, ne.Variant.Code)
	assert.Equal(t, http.StatusTooManyRequests, ne.Variant.Status)
	assert.Equal(t, "Daily quota reached", ne.OriginalMessage)

	assert.Equal(t, []uint{9}, fx.lc.failed, "latest pending request must be failed")
	require.Len(t, fx.audit.entries, 1)
	e := fx.audit.entries[0]
	assert.Equal(t, uint(9), e.RequestID)
	assert.Equal(t, "API_QUOTA_EXCEEDED", e.ErrorCode)
	assert.Equal(t, "[Original Code: API_QUOTA_EXCEEDED] Daily quota reached", e.Detail)
	assert.Equal(t, 1, e.RetryCount)
	assert.Equal(t, "203.0.113.7", e.ClientIP)
	assert.Equal(t, "test-agent/1.0", e.UserAgent)
	assert.Equal(t, http.StatusTooManyRequests, e.HTTPStatus)
	assert.Equal(t, int64(40), e.LatencyMs)
}

func TestRun_UnknownCodeUsesFallbackButAuditsRawCode(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {3}})

	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", failWith(&extcall.RawFailure{
		HTTPStatus: 400, WireCode: "BRAND_NEW_CODE", WireMessage: "internal vendor detail",
	}))

	ne, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, errcode.CodeUnexpectedAIResponse, ne.Variant.Code)
	assert.True(t, ne.Variant.InternallyControlled)
	assert.NotContains(t, ne.PublicMessage(), "internal vendor detail")

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, errcode.CodeUnexpectedAIResponse, fx.audit.entries[0].ErrorCode)
	assert.Equal(t, "[Original Code: BRAND_NEW_CODE] internal vendor detail", fx.audit.entries[0].Detail)
}

func TestRun_ParsingFailureKeepsRawBody(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {3}})

	msg := "Failed to parse error response: <html>502</html>"
	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", failWith(&extcall.RawFailure{
		HTTPStatus: 502, WireCode: extcall.WireCodeParsingFailed, WireMessage: msg,
	}))
	assert.True(t, errcode.IsCode(err, errcode.AI, errcode.CodeUnexpectedAIResponse))
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, "[Original Code: PARSING_FAILED] "+msg, fx.audit.entries[0].Detail)
	assert.Equal(t, 502, fx.audit.entries[0].HTTPStatus)
}

func TestRun_TransportErrorMapsToServiceUnavailable(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {2}})

	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", failWith(&extcall.TransportError{
		Op: "POST", URL: "http://ai/ai/templates", Err: context.DeadlineExceeded,
	}))

	ne, ok := errcode.As(err)
	require.True(t, ok)
	assert.Equal(t, errcode.CodeServiceUnavailable, ne.Variant.Code)
	require.Len(t, fx.audit.entries, 1)
	e := fx.audit.entries[0]
	assert.Equal(t, errcode.CodeServiceUnavailable, e.ErrorCode)
	assert.Equal(t, http.StatusServiceUnavailable, e.HTTPStatus)
	assert.Contains(t, e.Detail, "[Original Code: TRANSPORT_ERROR]")
	assert.Contains(t, e.Detail, "deadline exceeded")
}

func TestRun_CancelledCallerIsStillRecorded(t *testing.T) {
	for _, cause := range []func(context.Context) (context.Context, context.CancelFunc){
		context.WithCancel,
		func(ctx context.Context) (context.Context, context.CancelFunc) { return context.WithTimeout(ctx, time.Nanosecond) },
	} {
		fx := newFixture(t, map[string][]uint{"u1": {11}})
		ctx, cancel := cause(callerCtx())

		_, err := Run(ctx, fx.ic, fx.policy, "u1", func(ctx context.Context) (string, error) {
			cancel()
			<-ctx.Done()
			return "", &extcall.TransportError{Op: "POST", URL: "http://ai/ai/templates", Err: ctx.Err()}
		})

		require.True(t, errcode.IsCode(err, errcode.AI, errcode.CodeServiceUnavailable), "got %v", err)
		assert.Equal(t, []uint{11}, fx.lc.failed)
		require.Len(t, fx.audit.entries, 1)
		e := fx.audit.entries[0]
		assert.Equal(t, uint(11), e.RequestID)
		assert.Equal(t, http.StatusServiceUnavailable, e.HTTPStatus)
		assert.Equal(t, "test-agent/1.0", e.UserAgent)
		assert.Equal(t, "203.0.113.7", e.ClientIP)
	}
}

func TestRun_NoPendingRequestStillRaisesAndWarns(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	fx := newFixture(t, nil)
	_, err := Run(context.Background(), fx.ic, fx.policy, "", failWith(&extcall.RawFailure{
		HTTPStatus: 400, WireCode: "POLICY_VIOLATION", WireMessage: "nope",
	}))

	assert.True(t, errcode.IsCode(err, errcode.AI, errcode.CodePolicyViolation))
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.lc.failed)
	assert.Contains(t, buf.String(), "no pending request")
	assert.Contains(t, buf.String(), `"owner_id":"Unknown"`)
}

func TestRun_AuditAndLifecycleErrorsNeverBlockTheNormalizedError(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {4}})
	fx.lc.markErr = errors.New("db locked")
	fx.audit.err = errors.New("disk full")

	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", failWith(&extcall.RawFailure{
		HTTPStatus: 408, WireCode: "PROCESSING_TIMEOUT", WireMessage: "slow",
	}))
	assert.True(t, errcode.IsCode(err, errcode.AI, errcode.CodeProcessingTimeout))

	fx2 := newFixture(t, nil)
	fx2.lc.lookupErr = errors.New("conn refused")
	_, err = Run(callerCtx(), fx2.ic, fx2.policy, "u1", failWith(&extcall.RawFailure{HTTPStatus: 400, WireCode: "POLICY_VIOLATION"}))
	assert.True(t, errcode.IsCode(err, errcode.AI, errcode.CodePolicyViolation))
}

func TestRun_NestedCallsAuditOnce(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {7}})

	_, err := Run(callerCtx(), fx.ic, fx.policy, "u1", func(ctx context.Context) (string, error) {
		return Run(ctx, fx.ic, fx.policy, "u1", failWith(&extcall.RawFailure{
			HTTPStatus: 400, WireCode: "PROFANITY_DETECTED", WireMessage: "bad words",
		}))
	})

	assert.True(t, errcode.IsCode(err, errcode.AI, errcode.CodeProfanityDetected))
	assert.Len(t, fx.audit.entries, 1)
	assert.Equal(t, []uint{7}, fx.lc.failed)
}

func TestRun_UnmanagedErrorsPassThroughUntouched(t *testing.T) {
	fx := newFixture(t, map[string][]uint{"u1": {1}})
	boom := errors.New("boom")

	_, err := Run(context.Background(), fx.ic, fx.policy, "u1", failWith(boom))
	assert.Same(t, boom, err)
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.lc.failed)
}

func TestRun_ConcurrentFailuresForDistinctOwners(t *testing.T) {
	pending := map[string][]uint{}
	owners := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, o := range owners {
		pending[o] = []uint{uint(i + 1)}
	}
	fx := newFixture(t, pending)

	var wg sync.WaitGroup
	for _, o := range owners {
		wg.Add(1)
		go func(o string) {
			defer wg.Done()
			_, _ = Run(callerCtx(), fx.ic, fx.policy, o, failWith(&extcall.RawFailure{HTTPStatus: 500, WireCode: "TEMPLATE_GENERATION_FAILED"}))
		}(o)
	}
	wg.Wait()

	assert.Len(t, fx.audit.entries, len(owners))
	assert.ElementsMatch(t, []uint{1, 2, 3, 4, 5, 6, 7, 8}, fx.lc.failed)
}

func TestNewPolicy_Validation(t *testing.T) {
	reg := errcode.MustBuiltin()

	_, err := NewPolicy(reg, "billing", errcode.CodeServiceUnavailable)
	require.ErrorIs(t, err, errcode.ErrUnknownTaxonomy)

	_, err = NewPolicy(reg, errcode.AI, "NOT_A_CODE")
	require.Error(t, err)

	assert.Panics(t, func() { MustPolicy(reg, "billing", "X") })

	p, err := NewPolicy(reg, errcode.Template, errcode.CodeTemplateOperationFailed)
	require.NoError(t, err)
	assert.Equal(t, errcode.Template, p.Taxonomy)
}

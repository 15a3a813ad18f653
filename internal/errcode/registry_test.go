package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_ResolvesVendorCodes(t *testing.T) {
	r := MustBuiltin()

	cases := map[string]int{
		CodeProfanityDetected:        http.StatusBadRequest,
		CodePolicyViolation:          http.StatusBadRequest,
		CodeValidationError:          http.StatusUnprocessableEntity,
		CodeProcessingTimeout:        http.StatusRequestTimeout,
		CodeAPIQuotaExceeded:         http.StatusTooManyRequests,
		CodeTemplateGenerationFailed: http.StatusInternalServerError,
	}
	for code, status := range cases {
		v, err := r.Resolve(AI, code)
		require.NoError(t, err)
		assert.Equal(t, code, v.Code)
		assert.Equal(t, status, v.Status)
		assert.Equal(t, AI, v.Taxonomy)
		assert.False(t, v.InternallyControlled, code)
	}
}

func TestResolve_UnknownAndEmptyCodesFallBack(t *testing.T) {
	r := MustBuiltin()

	for _, code := range []string{"", "NEW_VENDOR_CODE", "profanity_detected", "PARSING_FAILED"} {
		v, err := r.Resolve(AI, code)
		require.NoError(t, err)
		assert.Equal(t, CodeUnexpectedAIResponse, v.Code, "code %q", code)
		assert.True(t, v.Fallback)
		assert.True(t, v.InternallyControlled)
	}
}

func TestResolve_UnknownTaxonomy(t *testing.T) {
	r := MustBuiltin()
	_, err := r.Resolve("billing", "X")
	require.ErrorIs(t, err, ErrUnknownTaxonomy)
	assert.False(t, r.Has("billing"))
	assert.True(t, r.Has(Template))
}

func TestLookup_NoFallback(t *testing.T) {
	r := MustBuiltin()

	v, ok := r.Lookup(AI, CodeServiceUnavailable)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, v.Status)

	_, ok = r.Lookup(AI, "NOPE")
	assert.False(t, ok)
	_, ok = r.Lookup("nope", CodeServiceUnavailable)
	assert.False(t, ok)

	fb, err := r.Fallback(Template)
	require.NoError(t, err)
	assert.Equal(t, CodeTemplateOperationFailed, fb.Code)
}

func TestRegister_RejectsInvalidTaxonomies(t *testing.T) {
	cases := []struct {
		name string
		tax  Taxonomy
		want error
	}{
		{"empty id", Taxonomy{Variants: []Variant{{Code: "A", Fallback: true}}}, ErrInvalidTaxonomy},
		{"no fallback", Taxonomy{ID: "x", Variants: []Variant{{Code: "A"}, {Code: "B"}}}, ErrNoFallback},
		{"no variants", Taxonomy{ID: "x"}, ErrNoFallback},
		{"two fallbacks", Taxonomy{ID: "x", Variants: []Variant{{Code: "A", Fallback: true}, {Code: "B", Fallback: true}}}, ErrMultipleFallbacks},
		{"duplicate code", Taxonomy{ID: "x", Variants: []Variant{{Code: "A", Fallback: true}, {Code: "A"}}}, ErrDuplicateCode},
		{"empty code", Taxonomy{ID: "x", Variants: []Variant{{Code: "", Fallback: true}}}, ErrEmptyCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			require.ErrorIs(t, r.Register(tc.tax), tc.want)
			if tc.tax.ID != "" {
				assert.False(t, r.Has(tc.tax.ID), "invalid taxonomy must not be registered")
			}
		})
	}
}

func TestRegister_DuplicateTaxonomy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(AITaxonomy()))
	require.ErrorIs(t, r.Register(AITaxonomy()), ErrDuplicateTaxonomy)
}

func TestMustRegister_Panics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.MustRegister(Taxonomy{ID: "x"}) })
}

func TestBuiltin_EveryTaxonomyHasOneFallback(t *testing.T) {
	for _, tax := range []Taxonomy{AITaxonomy(), TemplateTaxonomy()} {
		n := 0
		for _, v := range tax.Variants {
			if v.Fallback {
				n++
				assert.True(t, v.InternallyControlled, "%s fallback must use a fixed message", tax.ID)
			}
			assert.NotEmpty(t, v.Message)
		}
		assert.Equal(t, 1, n, string(tax.ID))
	}
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	r := MustBuiltin()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := r.Resolve(AI, fmt.Sprintf("CODE_%d", i))
			assert.NoError(t, err)
			assert.Equal(t, CodeUnexpectedAIResponse, v.Code)
		}(i)
	}
	wg.Wait()
}

func TestError_ConstructorsAndMessages(t *testing.T) {
	r := MustBuiltin()

	quota, _ := r.Resolve(AI, CodeAPIQuotaExceeded)
	err := New(quota, "Daily quota reached")
	e, ok := As(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	assert.Equal(t, KindAI, e.Kind)
	assert.Equal(t, "Daily quota reached", e.PublicMessage())
	assert.True(t, IsCode(err, AI, CodeAPIQuotaExceeded))
	assert.True(t, errors.Is(err, New(quota, "other text")))

	fb, _ := r.Fallback(AI)
	internal := New(fb, "stack trace from vendor")
	e, _ = As(internal)
	assert.Equal(t, fb.Message, e.PublicMessage())
	assert.Contains(t, internal.Error(), "stack trace from vendor")

	nf, _ := r.Resolve(Template, CodeTemplateNotFound)
	e, _ = As(New(nf, ""))
	assert.Equal(t, KindTemplate, e.Kind)
	assert.Equal(t, nf.Message, e.PublicMessage())

	e, _ = As(ConstructorFor("other")(Variant{Code: "X"}, "m"))
	assert.Equal(t, KindGeneric, e.Kind)
}

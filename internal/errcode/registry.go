// Package errcode holds the closed error taxonomies the service translates
// external failures into, and the resolver that maps a vendor wire code onto
// a taxonomy variant.
//
// A taxonomy is registered once at startup. Registration enforces that codes
// are unique and that exactly one variant is marked as the fallback, so
// Resolve can always answer: an unknown or empty wire code resolves to the
// fallback rather than failing.
package errcode

import (
	"errors"
	"fmt"
	"sync"
)

// TaxonomyID names an error domain, e.g. the AI vendor or template operations.
type TaxonomyID string

// Variant is one member of a taxonomy.
type Variant struct {
	Taxonomy TaxonomyID
	Code     string
	Status   int
	Message  string
	// Fallback marks the variant returned when no code matches.
	Fallback bool
	// InternallyControlled variants are raised by this service itself; the
	// responder shows Message instead of whatever text came with the failure.
	InternallyControlled bool
}

// Taxonomy is the registration unit: an id and its closed set of variants.
type Taxonomy struct {
	ID       TaxonomyID
	Variants []Variant
}

var (
	ErrInvalidTaxonomy   = errors.New("taxonomy id must not be empty")
	ErrDuplicateTaxonomy = errors.New("taxonomy already registered")
	ErrNoFallback        = errors.New("taxonomy declares no fallback variant")
	ErrMultipleFallbacks = errors.New("taxonomy declares more than one fallback variant")
	ErrDuplicateCode     = errors.New("taxonomy declares a code twice")
	ErrEmptyCode         = errors.New("variant code must not be empty")
	ErrUnknownTaxonomy   = errors.New("unknown taxonomy")
)

type entry struct {
	byCode   map[string]Variant
	fallback Variant
}

// Registry is safe for concurrent lookups; registration is expected during
// startup but is also guarded.
type Registry struct {
	mu   sync.RWMutex
	byID map[TaxonomyID]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[TaxonomyID]*entry)}
}

// Register validates t and adds it. Nothing is added when validation fails.
func (r *Registry) Register(t Taxonomy) error {
	if t.ID == "" {
		return ErrInvalidTaxonomy
	}
	e := &entry{byCode: make(map[string]Variant, len(t.Variants))}
	fallbacks := 0
	for _, v := range t.Variants {
		if v.Code == "" {
			return fmt.Errorf("%s: %w", t.ID, ErrEmptyCode)
		}
		if _, dup := e.byCode[v.Code]; dup {
			return fmt.Errorf("%s/%s: %w", t.ID, v.Code, ErrDuplicateCode)
		}
		v.Taxonomy = t.ID
		e.byCode[v.Code] = v
		if v.Fallback {
			fallbacks++
			e.fallback = v
		}
	}
	switch {
	case fallbacks == 0:
		return fmt.Errorf("%s: %w", t.ID, ErrNoFallback)
	case fallbacks > 1:
		return fmt.Errorf("%s: %w", t.ID, ErrMultipleFallbacks)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; ok {
		return fmt.Errorf("%s: %w", t.ID, ErrDuplicateTaxonomy)
	}
	r.byID[t.ID] = e
	return nil
}

// MustRegister panics on an invalid taxonomy. Startup only.
func (r *Registry) MustRegister(t Taxonomy) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Resolve maps a wire code to a variant of taxonomy id. Matching is exact
// and case-sensitive; a miss, including an empty code, yields the fallback.
// The only error is ErrUnknownTaxonomy.
func (r *Registry) Resolve(id TaxonomyID, wireCode string) (Variant, error) {
	e, err := r.get(id)
	if err != nil {
		return Variant{}, err
	}
	if v, ok := e.byCode[wireCode]; ok {
		return v, nil
	}
	return e.fallback, nil
}

// Lookup is an exact match without fallback.
func (r *Registry) Lookup(id TaxonomyID, code string) (Variant, bool) {
	e, err := r.get(id)
	if err != nil {
		return Variant{}, false
	}
	v, ok := e.byCode[code]
	return v, ok
}

// Fallback returns the fallback variant of a registered taxonomy.
func (r *Registry) Fallback(id TaxonomyID) (Variant, error) {
	e, err := r.get(id)
	if err != nil {
		return Variant{}, err
	}
	return e.fallback, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id TaxonomyID) bool {
	_, err := r.get(id)
	return err == nil
}

func (r *Registry) get(id TaxonomyID) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnknownTaxonomy)
	}
	return e, nil
}

// Package redact scrubs caller-supplied error details before they are
// logged: sensitive keys are masked, email addresses are partially hidden,
// long strings are cut, and large maps are capped.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	Redacted = "[REDACTED]"

	// MaxEntries is the number of map entries kept before "_more" is added.
	MaxEntries = 20
	// MaxStringLen is measured in runes.
	MaxStringLen = 500

	moreKey   = "_more"
	moreValue = "..."
	ellipsis  = "..."
)

var (
	sensitiveKeys = []string{"password", "token", "otp", "secret"}
	emailRE       = regexp.MustCompile(`([A-Za-z0-9._%+-])([A-Za-z0-9._%+-]*)@([A-Za-z0-9.-]+)`)
)

// Details returns a scrubbed copy of v. Maps are scrubbed per key, slices
// per element, strings are masked and truncated. Other values pass through
// unchanged. The input is never modified.
func Details(v any) any {
	return details(v, 0)
}

// maxDepth bounds recursion on self-similar structures.
const maxDepth = 8

func details(v any, depth int) any {
	if depth > maxDepth {
		return ellipsis
	}
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return String(t)
	case map[string]any:
		return scrubMap(t, depth)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return scrubMap(m, depth)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = details(e, depth+1)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return out
	case error:
		return String(t.Error())
	case fmt.Stringer:
		return String(t.String())
	default:
		return v
	}
}

// Map scrubs a map. Keys are processed in sorted order so the retained
// subset of an oversized map is deterministic.
func Map(m map[string]any) map[string]any {
	return scrubMap(m, 0)
}

func scrubMap(m map[string]any, depth int) map[string]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, min(len(keys), MaxEntries)+1)
	for i, k := range keys {
		if i == MaxEntries {
			out[moreKey] = moreValue
			break
		}
		if SensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = details(m[k], depth+1)
	}
	return out
}

// SensitiveKey reports whether a key's value must never be logged.
func SensitiveKey(k string) bool {
	lk := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(lk, s) {
			return true
		}
	}
	return false
}

// String masks emails to "<first char>***@<domain>" and truncates to
// MaxStringLen runes plus "...".
func String(s string) string {
	s = emailRE.ReplaceAllString(s, "$1***@$3")
	if r := []rune(s); len(r) > MaxStringLen {
		return string(r[:MaxStringLen]) + ellipsis
	}
	return s
}

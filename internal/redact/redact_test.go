package redact

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetails_MasksSensitiveKeys(t *testing.T) {
	in := map[string]any{
		"password":     "hunter2",
		"accessToken":  "abc",
		"OTP_code":     "123456",
		"clientSecret": "s",
		"name":         "Jane",
	}
	out, ok := Details(in).(map[string]any)
	require.True(t, ok)

	for _, k := range []string{"password", "accessToken", "OTP_code", "clientSecret"} {
		assert.Equal(t, Redacted, out[k], k)
	}
	assert.Equal(t, "Jane", out["name"])
	assert.Equal(t, "hunter2", in["password"], "input must not be modified")
}

func TestDetails_CapsLargeMaps(t *testing.T) {
	in := make(map[string]any, 30)
	for i := 0; i < 30; i++ {
		in[fmt.Sprintf("k%02d", i)] = i
	}
	out := Details(in).(map[string]any)

	assert.Len(t, out, MaxEntries+1)
	assert.Equal(t, "...", out["_more"])
	assert.Contains(t, out, "k00")
	assert.Contains(t, out, "k19")
	assert.NotContains(t, out, "k20")
}

func TestDetails_ExactlyMaxEntriesHasNoMarker(t *testing.T) {
	in := make(map[string]any, MaxEntries)
	for i := 0; i < MaxEntries; i++ {
		in[fmt.Sprintf("k%02d", i)] = i
	}
	out := Details(in).(map[string]any)
	assert.Len(t, out, MaxEntries)
	assert.NotContains(t, out, "_more")
}

func TestString_MasksEmails(t *testing.T) {
	got := String("contact john.doe@example.com or a@b.io")
	assert.Equal(t, "contact j***@example.com or a***@b.io", got)
	assert.NotContains(t, got, "john.doe")
}

func TestString_Truncates(t *testing.T) {
	long := strings.Repeat("é", 600)
	got := String(long)
	assert.Equal(t, MaxStringLen+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))

	exact := strings.Repeat("x", MaxStringLen)
	assert.Equal(t, exact, String(exact))
}

func TestDetails_Nested(t *testing.T) {
	in := map[string]any{
		"user": map[string]any{"email": "mary@example.org", "password": "p"},
		"tags": []any{"x@y.com", 3},
		"hdr":  map[string]string{"X-Token": "t"},
		"list": []string{"bob@corp.net"},
		"err":  errors.New("failed for zed@corp.net"),
	}
	out := Details(in).(map[string]any)

	user := out["user"].(map[string]any)
	assert.Equal(t, "m***@example.org", user["email"])
	assert.Equal(t, Redacted, user["password"])
	assert.Equal(t, []any{"x***@y.com", 3}, out["tags"])
	assert.Equal(t, Redacted, out["hdr"].(map[string]any)["X-Token"])
	assert.Equal(t, []string{"b***@corp.net"}, out["list"])
	assert.Equal(t, "failed for z***@corp.net", out["err"])
}

func TestDetails_PassThrough(t *testing.T) {
	assert.Nil(t, Details(nil))
	assert.Equal(t, 42, Details(42))
	assert.Equal(t, true, Details(true))
}

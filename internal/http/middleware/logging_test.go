package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// logLines decodes one JSON object per captured line.
func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func findLog(lines []map[string]any, msg string) map[string]any {
	for _, l := range lines {
		if l["message"] == msg {
			return l
		}
	}
	return nil
}

func loggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Identity(), Logger(RedactOptions{}), Recovery())
	return r
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/templates", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		c.String(http.StatusOK, asString(v))
	})

	cases := []struct {
		name, header, incoming string
	}{
		{"generated", "", ""},
		{"canonical header", requestIDHeader, "Z-REQ-123"},
		{"lowercase header", strings.ToLower(requestIDHeader), "abc-123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/templates", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if tc.incoming != "" && got != tc.incoming {
				t.Fatalf("header = %q; want %q", got, tc.incoming)
			}
			if got == "" || w.Body.String() != got {
				t.Fatalf("context id %q does not match header %q", w.Body.String(), got)
			}
		})
	}
}

func TestLogger_RequestFieldsAndLevels(t *testing.T) {
	buf := captureLogger(t)
	r := loggedRouter()
	r.GET("/templates/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/templates", func(c *gin.Context) {
		_ = c.Error(errors.New("persist template"))
		c.Status(http.StatusInternalServerError)
	})

	send := func(method, path string) {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(HeaderUserID, "owner-7")
		req.Header.Set(requestIDHeader, method+path)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(http.MethodGet, "/templates/t-1")
	send(http.MethodGet, "/nowhere")
	send(http.MethodPost, "/templates")

	var access []map[string]any
	for _, l := range logLines(t, buf) {
		if l["message"] == "request" {
			access = append(access, l)
		}
	}
	if len(access) != 3 {
		t.Fatalf("access lines = %d; want 3", len(access))
	}

	want := []struct{ level, path, rid string }{
		{"info", "/templates/:id", "GET/templates/t-1"},
		{"warn", "/nowhere", "GET/nowhere"},
		{"error", "/templates", "POST/templates"},
	}
	for i, w := range want {
		l := access[i]
		if l["level"] != w.level || l["path"] != w.path || l["request_id"] != w.rid || l["user_id"] != "owner-7" {
			t.Errorf("line %d = %v; want level=%s path=%s", i, l, w.level, w.path)
		}
	}
	if access[2]["errors"] == nil {
		t.Errorf("gin errors not logged: %v", access[2])
	}
}

func TestLogger_ContextLoggerCarriesRequestFields(t *testing.T) {
	buf := captureLogger(t)
	r := loggedRouter()
	r.POST("/templates", func(c *gin.Context) {
		// what services and the failure guard see
		zerolog.Ctx(c.Request.Context()).Warn().Msg("external failure audited")
		LoggerFrom(c).Info().Msg("handler")
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/templates", nil)
	req.Header.Set(requestIDHeader, "rid-ctx")
	req.Header.Set(HeaderUserID, "owner-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(t, buf)
	for _, msg := range []string{"external failure audited", "handler"} {
		l := findLog(lines, msg)
		if l == nil {
			t.Fatalf("%q not logged", msg)
		}
		if l["request_id"] != "rid-ctx" || l["user_id"] != "owner-1" || l["method"] != http.MethodPost {
			t.Fatalf("%q missing request fields: %v", msg, l)
		}
	}
}

func TestLoggerFrom_WithoutLogger(t *testing.T) {
	buf := captureLogger(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/health", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("plain")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	l := findLog(logLines(t, buf), "plain")
	if l == nil {
		t.Fatal("fallback logger wrote nothing")
	}
	if _, ok := l["request_id"]; ok {
		t.Fatalf("fallback logger has request fields: %v", l)
	}
}

func TestRecovery(t *testing.T) {
	t.Run("panic before write answers with envelope", func(t *testing.T) {
		buf := captureLogger(t)
		r := loggedRouter()
		r.POST("/templates", func(c *gin.Context) { panic("vendor client nil: kaboom") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/templates", nil))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", w.Code)
		}
		var body struct {
			Data  any               `json:"data"`
			Error map[string]string `json:"error"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Data != nil || body.Error["code"] != CodeUnexpected || body.Error["request_id"] == "" {
			t.Fatalf("body = %s", w.Body.String())
		}
		if strings.Contains(w.Body.String(), "kaboom") {
			t.Fatalf("panic value leaked: %s", w.Body.String())
		}
		l := findLog(logLines(t, buf), "panic recovered")
		if l == nil || l["stack"] == nil {
			t.Fatalf("panic not logged with stack")
		}
	})

	t.Run("panic after write sends no envelope", func(t *testing.T) {
		captureLogger(t)
		r := loggedRouter()
		r.GET("/templates", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			panic("late")
		})

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/templates", nil))
		if strings.Contains(w.Header().Get("Content-Type"), "application/json") || strings.Contains(w.Body.String(), CodeUnexpected) {
			t.Fatalf("envelope written after body: %q", w.Body.String())
		}
	})
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"status=CREATED", 20, "status=CREATED"},
		{"status=CREATED", 6, "status…"},
		{"page=2", 0, "page=2"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
	if asString(12) != "" || asString("x") != "x" {
		t.Error("asString")
	}
}

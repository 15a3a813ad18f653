// Package aiclient calls the external AI template-generation service and
// classifies every response it gets into an extcall.Outcome.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-template-backend/internal/domain"
	"github.com/tbourn/go-template-backend/internal/errcode"
	"github.com/tbourn/go-template-backend/internal/extcall"
)

// CreateTemplatePath is the vendor endpoint for template generation.
const CreateTemplatePath = "/ai/templates"

// maxBodyBytes bounds how much of a vendor response is read.
const maxBodyBytes = 1 << 20

// Options configures the HTTP transport.
type Options struct {
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	IdleConnTimeout time.Duration
}

// GenerateRequest is the body sent to the vendor.
type GenerateRequest struct {
	UserID         string `json:"user_id"`
	RequestContent string `json:"request_content"`
}

// TemplateDraft is the template the vendor generated. A partial draft may
// leave any field empty.
type TemplateDraft struct {
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	CategoryID string            `json:"categoryId,omitempty"`
	Type       string            `json:"type,omitempty"`
	Buttons    []domain.Button   `json:"buttons,omitempty"`
	Variables  []domain.Variable `json:"variables,omitempty"`
	Industries []domain.Tag      `json:"industries,omitempty"`
	Purposes   []domain.Tag      `json:"purposes,omitempty"`
}

// envelope is the vendor's response shape for both success and error.
type envelope struct {
	Data  *TemplateDraft `json:"data"`
	Error *wireError     `json:"error"`
}

type wireError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Client is an AI vendor client. Safe for concurrent use.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a client whose transport applies the connect, read and idle
// timeouts and records a client span per call.
func New(baseURL string, opt Options) *Client {
	dialer := &net.Dialer{Timeout: opt.ConnectTimeout, KeepAlive: 30 * time.Second}
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: opt.ReadTimeout,
		IdleConnTimeout:       opt.IdleConnTimeout,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		TLSHandshakeTimeout:   opt.ConnectTimeout,
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Transport: otelhttp.NewTransport(tr,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "ai " + r.Method + " " + r.URL.Path
				}),
			),
		},
	}
}

// CreateTemplate asks the vendor to generate a template.
//
// A response always yields an Outcome: 200 with data is Complete, 202 with
// data is Partial, and every other response is a Failure. No response at
// all yields a *extcall.TransportError.
func (c *Client) CreateTemplate(ctx context.Context, in GenerateRequest) (extcall.Outcome[TemplateDraft], error) {
	var zero extcall.Outcome[TemplateDraft]
	url := c.BaseURL + CreateTemplatePath

	body, err := json.Marshal(in)
	if err != nil {
		return zero, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return zero, &extcall.TransportError{Op: http.MethodPost, URL: url, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return zero, &extcall.TransportError{Op: http.MethodPost, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return classify(res.StatusCode, raw), nil
}

func classify(status int, raw []byte) extcall.Outcome[TemplateDraft] {
	if status < 200 || status > 299 {
		return extcall.Failed[TemplateDraft](parseFailure(status, raw))
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &env) != nil || env.Data == nil {
		return extcall.Failed[TemplateDraft](unexpected(status, "response carried no template data"))
	}
	switch status {
	case http.StatusOK:
		return extcall.Completed(*env.Data)
	case http.StatusAccepted:
		return extcall.Partially(*env.Data)
	default:
		return extcall.Failed[TemplateDraft](unexpected(status, fmt.Sprintf("unexpected success status %d", status)))
	}
}

// parseFailure reads the vendor error body. Anything that is not a
// structured error degrades to PARSING_FAILED with the raw body kept.
func parseFailure(status int, raw []byte) *extcall.RawFailure {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil && env.Error.Code != "" {
		return &extcall.RawFailure{HTTPStatus: status, WireCode: env.Error.Code, WireMessage: env.Error.Message}
	}
	return &extcall.RawFailure{
		HTTPStatus:  status,
		WireCode:    extcall.WireCodeParsingFailed,
		WireMessage: "Failed to parse error response: " + string(raw),
	}
}

func unexpected(status int, msg string) *extcall.RawFailure {
	return &extcall.RawFailure{HTTPStatus: status, WireCode: errcode.CodeUnexpectedAIResponse, WireMessage: msg}
}

// IsTimeout reports whether a transport error was a timeout or deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

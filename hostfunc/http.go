package hostfunc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andyherbert/crabzilla/value"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

// HTTPConfig restricts outbound requests made on behalf of guest code.
type HTTPConfig struct {
	AllowedHosts   []string
	MaxBodySize    int64
	MaxURLLength   int
	RequestTimeout time.Duration
}

// HTTP performs allow-listed outbound requests for guest code.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP creates an HTTP handler. Requests to hosts outside the allow-list
// fail; an empty allow-list rejects everything.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	return &HTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Entries exposes the HTTP operations under the given scope:
// get(url) and request({method, url, body, headers}).
func (h *HTTP) Entries(scope string) []Entry {
	return []Entry{
		{Scope: scope, Name: "get", Fn: h.get},
		{Scope: scope, Name: "request", Fn: h.request},
	}
}

func (h *HTTP) get(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), fmt.Errorf("url required")
	}
	rawURL, err := args[0].AsString()
	if err != nil {
		return value.Undefined(), fmt.Errorf("url must be a string")
	}
	return h.do(ctx, "GET", rawURL, "", nil)
}

func (h *HTTP) request(ctx context.Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Undefined(), fmt.Errorf("request object required")
	}
	req, err := args[0].AsObject()
	if err != nil {
		return value.Undefined(), fmt.Errorf("request must be an object")
	}

	method := "GET"
	if m := req["method"]; !m.IsUndefined() {
		method, err = m.AsString()
		if err != nil {
			return value.Undefined(), fmt.Errorf("method must be a string")
		}
		method = strings.ToUpper(method)
	}
	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	default:
		return value.Undefined(), fmt.Errorf("unsupported method: %s", method)
	}

	rawURL, err := req["url"].AsString()
	if err != nil {
		return value.Undefined(), fmt.Errorf("url required")
	}

	var body string
	if b := req["body"]; !b.IsUndefined() && !b.IsNull() {
		body, err = b.AsString()
		if err != nil {
			return value.Undefined(), fmt.Errorf("body must be a string")
		}
	}

	var headers map[string]string
	if hv := req["headers"]; !hv.IsUndefined() && !hv.IsNull() {
		obj, err := hv.AsObject()
		if err != nil {
			return value.Undefined(), fmt.Errorf("headers must be an object")
		}
		headers = make(map[string]string, len(obj))
		for k, v := range obj {
			s, err := v.AsString()
			if err != nil {
				return value.Undefined(), fmt.Errorf("header %s must be a string", k)
			}
			headers[k] = s
		}
	}

	return h.do(ctx, method, rawURL, body, headers)
}

func (h *HTTP) do(ctx context.Context, method, rawURL, body string, headers map[string]string) (value.Value, error) {
	if rawURL == "" {
		return value.Undefined(), fmt.Errorf("url required")
	}
	if len(rawURL) > h.cfg.MaxURLLength {
		return value.Undefined(), fmt.Errorf("url exceeds max length")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return value.Undefined(), fmt.Errorf("invalid url")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return value.Undefined(), fmt.Errorf("scheme must be http or https")
	}
	if len(h.cfg.AllowedHosts) == 0 {
		return value.Undefined(), fmt.Errorf("http not enabled")
	}
	host := parsed.Hostname()
	if !h.isHostAllowed(host) {
		return value.Undefined(), fmt.Errorf("host not allowed: %s", host)
	}

	var reqBody io.Reader
	if body != "" {
		if int64(len(body)) > h.cfg.MaxBodySize {
			return value.Undefined(), fmt.Errorf("request body exceeds max size")
		}
		reqBody = bytes.NewBufferString(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return value.Undefined(), fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return value.Undefined(), fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return value.Undefined(), fmt.Errorf("failed to read response: %w", err)
	}

	respHeaders := make(map[string]value.Value, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = value.String(v[0])
		}
	}

	return value.Object(map[string]value.Value{
		"status":  value.Int(int64(resp.StatusCode)),
		"body":    value.String(string(respBody)),
		"headers": value.Object(respHeaders),
	}), nil
}

func (h *HTTP) isHostAllowed(host string) bool {
	for _, allowed := range h.cfg.AllowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

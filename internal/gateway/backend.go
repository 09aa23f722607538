package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxBackendBody = 1 << 20

// HTTPJSONResponse is a tolerant view of a backend reply. Body is nil when
// the payload is not a JSON object; Text always keeps the raw payload.
type HTTPJSONResponse struct {
	Status int
	Body   map[string]any
	Text   string
}

// OK reports a 2xx status.
func (r HTTPJSONResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Field returns a top-level body field rendered as text, or "" when absent.
func (r HTTPJSONResponse) Field(name string) string {
	if r.Body == nil {
		return ""
	}
	v, ok := r.Body[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// BackendConfig holds the values injected into the backend client.
type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
}

// Backend issues the JSON calls tool handlers make against the Finance
// Angle REST API. One client is shared by all handlers so connections are
// reused across concurrent calls.
type Backend struct {
	baseURL    string
	httpClient *http.Client
}

type BackendOption func(*Backend)

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(client *http.Client) BackendOption {
	return func(b *Backend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

func NewBackend(cfg BackendConfig, opts ...BackendOption) *Backend {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = 16

	b := &Backend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Backend) BaseURL() string {
	return b.baseURL
}

// PostJSON sends payload as JSON to path.
func (b *Backend) PostJSON(ctx context.Context, path string, payload any) (HTTPJSONResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return HTTPJSONResponse{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return HTTPJSONResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

// GetJSON fetches path; pathAndQuery must already be escaped.
func (b *Backend) GetJSON(ctx context.Context, pathAndQuery string) (HTTPJSONResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+pathAndQuery, nil)
	if err != nil {
		return HTTPJSONResponse{}, fmt.Errorf("build request: %w", err)
	}
	return b.do(req)
}

func (b *Backend) do(req *http.Request) (HTTPJSONResponse, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return HTTPJSONResponse{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendBody))
	if err != nil {
		return HTTPJSONResponse{}, fmt.Errorf("read response: %w", err)
	}

	out := HTTPJSONResponse{Status: resp.StatusCode, Text: string(raw)}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var parsed map[string]any
		if dec.Decode(&parsed) == nil {
			out.Body = parsed
		}
	}
	return out, nil
}

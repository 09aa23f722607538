package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeangle/internal/gateway"
	"financeangle/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

// newDispatcher wires the built-in tools to a backend answering 404 to
// everything.
func newDispatcher(t *testing.T) *gateway.Dispatcher {
	t.Helper()
	backend := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(backend.Close)

	reg, err := gateway.DefaultRegistry(gateway.NewBackend(gateway.BackendConfig{BaseURL: backend.URL}))
	require.NoError(t, err)
	return gateway.NewDispatcher(reg, quietLogger())
}

// readResponses decodes every frame in out.
func readResponses(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	r := NewFrameReader(out, 0)
	var responses []map[string]any
	for {
		body, err := r.ReadFrame()
		if err == io.EOF {
			return responses
		}
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(body, &m))
		responses = append(responses, m)
	}
}

func TestStdioServerAnswersEveryFrame(t *testing.T) {
	in := frame(`{"jsonrpc":"2.0","id":1,"method":"ping"}`) +
		frame(`{not json`) +
		"X-Only: header\r\n\r\n" +
		frame(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"toolName":"getReceiptStatus","arguments":{"externalId":"r-1"}}}`) +
		frame(`{"jsonrpc":"2.0","id":3,"method":"foo/bar"}`)

	var out bytes.Buffer
	srv := NewStdioServer(newDispatcher(t), strings.NewReader(in), &out, 0, quietLogger())
	require.NoError(t, srv.Serve(context.Background()))

	responses := readResponses(t, &out)
	require.Len(t, responses, 5)

	assert.Equal(t, float64(1), responses[0]["id"])
	assert.Equal(t, map[string]any{}, responses[0]["result"])

	assert.Nil(t, responses[1]["id"])
	assert.Equal(t, float64(-32700), responses[1]["error"].(map[string]any)["code"])

	assert.Nil(t, responses[2]["id"])
	assert.Equal(t, "Missing Content-Length header", responses[2]["error"].(map[string]any)["message"])

	content := responses[3]["result"].(map[string]any)["content"].([]any)
	assert.Equal(t, "Receipt r-1 not found", content[0].(map[string]any)["text"])

	assert.Equal(t, float64(-32601), responses[4]["error"].(map[string]any)["code"])
}

func TestStdioServerRejectsOversizedFrame(t *testing.T) {
	in := frame(`{"jsonrpc":"2.0","id":1,"method":"ping","params":{"pad":"`+strings.Repeat("x", 100)+`"}}`) +
		frame(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)

	var out bytes.Buffer
	srv := NewStdioServer(newDispatcher(t), strings.NewReader(in), &out, 64, quietLogger())
	require.NoError(t, srv.Serve(context.Background()))

	responses := readResponses(t, &out)
	require.Len(t, responses, 2)
	assert.Equal(t, "Frame too large", responses[0]["error"].(map[string]any)["message"])
	assert.Equal(t, float64(2), responses[1]["id"])
}

func TestStdioServerStopsOnTruncatedInput(t *testing.T) {
	in := frame(`{"jsonrpc":"2.0","id":1,"method":"ping"}`) + "Content-Length: 50\r\n\r\n{\"jsonrpc\""

	var out bytes.Buffer
	srv := NewStdioServer(newDispatcher(t), strings.NewReader(in), &out, 0, quietLogger())
	require.NoError(t, srv.Serve(context.Background()))
	assert.Len(t, readResponses(t, &out), 1)
}

func TestStdioServerStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	srv := NewStdioServer(newDispatcher(t), strings.NewReader(frame(`{}`)), &out, 0, quietLogger())
	require.NoError(t, srv.Serve(ctx))
	assert.Zero(t, out.Len())
}

func newHTTPTransport(t *testing.T, rateLimit int) *httptest.Server {
	t.Helper()
	srv := NewHTTPServer(":0", newDispatcher(t), HTTPOptions{
		MaxFrameBytes:      1024,
		RateLimitPerMinute: rateLimit,
		Logger:             quietLogger(),
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHTTPTransportDispatches(t *testing.T) {
	ts := newHTTPTransport(t, 100)

	resp, raw := post(t, ts.URL+"/", `{"jsonrpc":"2.0","id":"a","method":"tools/list"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "a", out["id"])
	assert.Len(t, out["result"].(map[string]any)["tools"], 6)

	_, raw = post(t, ts.URL+"/", `{not json`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Invalid JSON"}}`, string(raw))
}

func TestHTTPTransportEmptyBody(t *testing.T) {
	ts := newHTTPTransport(t, 100)

	resp, raw := post(t, ts.URL+"/", "  ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"code":-32600,"message":"Empty request"}}`, string(raw))
}

func TestHTTPTransportBodyLimit(t *testing.T) {
	ts := newHTTPTransport(t, 100)

	resp, raw := post(t, ts.URL+"/", `{"pad":"`+strings.Repeat("x", 2048)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, string(raw), "Frame too large")
}

func TestHTTPTransportHealthAndMetadata(t *testing.T) {
	ts := newHTTPTransport(t, 100)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"name":"finance-angle-mcp","version":"0.1.0","capabilities":["tools"]}`, string(body))
}

func TestHTTPTransportRateLimit(t *testing.T) {
	ts := newHTTPTransport(t, 2)

	for i := 0; i < 2; i++ {
		resp, _ := post(t, ts.URL+"/", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := post(t, ts.URL+"/", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

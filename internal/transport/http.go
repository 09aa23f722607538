package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"financeangle/internal/gateway"
	"financeangle/internal/log"
	"financeangle/internal/middleware/ratelimit"
	"financeangle/internal/middleware/security"
	"financeangle/internal/middleware/trace"
)

// HTTPOptions configures the request/response transport.
type HTTPOptions struct {
	MaxFrameBytes      int64
	RateLimitPerMinute int
	Logger             *log.Logger
}

// HTTPServer serves one JSON-RPC request per POST. Requests are handled
// concurrently against the shared dispatcher.
type HTTPServer struct {
	http.Server
	dispatcher *gateway.Dispatcher
	maxBytes   int64
	logger     *log.Logger
	limiter    *ratelimit.Limiter
	detector   *security.Detector

	shutdownOnce sync.Once
}

type serverMetadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

func NewHTTPServer(addr string, d *gateway.Dispatcher, opts HTTPOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentTransport)
	maxBytes := opts.MaxFrameBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}

	s := &HTTPServer{
		dispatcher: d,
		maxBytes:   maxBytes,
		logger:     logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		detector: security.NewDetector(logger.WithComponent(log.ComponentSecurity).Logger),
	}
	tracer := trace.NewMiddleware(logger.WithComponent(log.ComponentTrace), s.detector.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("GET /{$}", s.handleMetadata)
	mux.HandleFunc("GET /health", s.handleHealth)

	limit := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, s.detector.ClientIP(r))
		writeRPC(w, http.StatusTooManyRequests, gateway.NewError(nil, gateway.CodeInvalidRequest, "Rate limit exceeded"))
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = log.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

type emptyRequestError struct {
	Error gateway.RPCError `json:"error"`
}

func (s *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeRPC(w, http.StatusRequestEntityTooLarge, gateway.NewError(nil, gateway.CodeInvalidRequest, "Frame too large"))
			return
		}
		s.logger.WarnContext(r.Context(), "Failed to read request body", log.FieldError, err.Error())
		writeRPC(w, http.StatusBadRequest, gateway.NewError(nil, gateway.CodeParseError, "Invalid JSON"))
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(emptyRequestError{
			Error: gateway.RPCError{Code: gateway.CodeInvalidRequest, Message: "Empty request"},
		})
		return
	}

	writeRPC(w, http.StatusOK, s.dispatcher.HandleRaw(r.Context(), body))
}

func (s *HTTPServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(serverMetadata{
		Name:         gateway.ServerName,
		Version:      gateway.ServerVersion,
		Capabilities: []string{"tools"},
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeRPC(w http.ResponseWriter, status int, resp gateway.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Shutdown stops the limiter and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

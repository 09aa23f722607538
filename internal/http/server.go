package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financeangle/internal/cache"
	"financeangle/internal/charts"
	"financeangle/internal/importer"
	"financeangle/internal/log"
	"financeangle/internal/middleware/ratelimit"
	"financeangle/internal/middleware/security"
	"financeangle/internal/middleware/trace"
	"financeangle/internal/services"
)

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators.
type Options struct {
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Charts    *charts.Renderer
	DB        Pinger
	// ImportProfiles are selectable with ?profile= on the import endpoint.
	ImportProfiles     importer.Profiles
	RateLimitPerMinute int
	Logger             *log.Logger
}

// Server wraps http.Server with the finance API routes and their middlewares.
type Server struct {
	http.Server
	ledger    *services.LedgerService
	dashboard *services.DashboardService
	charts    *charts.Renderer
	db        Pinger
	profiles  importer.Profiles
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	transactions int64
	imports      int64
	started      time.Time
}

// NewServer configures routes and middlewares, returning a ready-to-run server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	renderer := opts.Charts
	if renderer == nil {
		renderer = charts.NewRenderer(5*time.Minute, logger.Logger)
	}

	s := &Server{
		ledger:    opts.Ledger,
		dashboard: opts.Dashboard,
		charts:    renderer,
		db:        opts.DB,
		profiles:  opts.ImportProfiles,
		logger:    logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		detector: security.NewDetector(logger.WithComponent(log.ComponentSecurity).Logger),
		caches:   cache.NewManager(logger.Logger),
		metrics:  appMetrics{started: time.Now()},
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(log.ComponentTrace), s.detector.ClientIP)

	if s.dashboard != nil {
		s.dashboard.OnWrite(s.charts.Invalidate)
	}
	s.caches.Register(s.charts.Cache())
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ClientIP(r), log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Rate limit exceeded. Please try again later."})
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = log.RequestIDMiddleware(trace.FromRequest)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.tracer.Middleware(handler)
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

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Ledger surface, consumed by the gateway.
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/summary", s.handleTransactionSummary)
	mux.HandleFunc("POST /api/receipts/ingest", s.handleRegisterReceipt)
	mux.HandleFunc("GET /api/receipts/{externalId}", s.handleReceiptStatus)
	mux.HandleFunc("POST /api/savings/snapshots", s.handleCreateSavings)
	mux.HandleFunc("GET /api/savings/snapshots/latest", s.handleLatestSavings)
	mux.HandleFunc("GET /api/insights/recommendations", s.handleRecommendations)

	// Dashboard surface.
	const d = "/api/dashboard"
	mux.HandleFunc("POST "+d+"/accounts", s.handleAddAccount)
	mux.HandleFunc("PUT "+d+"/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE "+d+"/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET "+d+"/accounts", s.handleListAccounts)
	mux.HandleFunc("POST "+d+"/transactions", s.handleAddEntry)
	mux.HandleFunc("GET "+d+"/transactions", s.handleListEntries)
	mux.HandleFunc("DELETE "+d+"/transactions/reset", s.handleResetEntries)
	mux.HandleFunc("POST "+d+"/snapshots", s.handleAddSnapshot)
	mux.HandleFunc("DELETE "+d+"/snapshots", s.handleDeleteSnapshot)
	mux.HandleFunc("GET "+d+"/snapshots", s.handleListSnapshots)
	mux.HandleFunc("POST "+d+"/account-positions/monthly", s.handleMonthlyPosition)
	mux.HandleFunc("GET "+d+"/account-positions", s.handleListPositions)
	mux.HandleFunc("GET "+d+"/summary/spending", s.handleSpendingSummary)
	mux.HandleFunc("POST "+d+"/import/finanzguru", s.handleImportFinanzguru)

	svg := security.CacheControl("no-cache")
	mux.Handle("GET "+d+"/charts/spending.svg", svg(http.HandlerFunc(s.handleSpendingChart)))
	mux.Handle("GET "+d+"/charts/balance.svg", svg(http.HandlerFunc(s.handleBalanceChart)))
	mux.Handle("GET "+d+"/charts/balance-by-account.svg", svg(http.HandlerFunc(s.handleBalanceByAccountChart)))
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

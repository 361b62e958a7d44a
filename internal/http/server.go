package http

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"spendwise/internal/auth"
	"spendwise/internal/cache"
	"spendwise/internal/log"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/receipt"
	"spendwise/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsReporter exposes cache effectiveness for /metrics.
type StatsReporter interface {
	Stats() cache.Stats
}

// Dependencies are the collaborators the API delegates to.
type Dependencies struct {
	Accounts      *services.AccountService
	Categories    *services.CategoryService
	Expenses      *services.ExpenseService
	Insights      *services.InsightsService
	Receipts      *receipt.Service
	Authenticator *auth.Authenticator
	Store         Pinger
	InsightsCache StatsReporter
}

// Options tune the HTTP surface.
type Options struct {
	Addr           string
	CORSOrigins    []string
	MaxUploadBytes int64
}

type Server struct {
	http.Server
	deps   Dependencies
	opts   Options
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	securityHeaders  *security.HeadersMiddleware
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	expensesCreated   int64
	receiptsProcessed int64
	receiptsFailed    int64
	uptime            time.Time
}

func (m *appMetrics) incExpenses() { atomic.AddInt64(&m.expensesCreated, 1) }

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, deps Dependencies, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	detector := security.NewDetector()
	s := &Server{
		deps:             deps,
		opts:             opts,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: detector,
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("GET /api/auth/me", s.protected(s.handleMe))
	mux.Handle("PUT /api/auth/update", s.protected(s.handleUpdateAccount))

	mux.HandleFunc("GET /api/categories", s.handleListCategories)

	mux.Handle("POST /api/expenses", s.protected(s.handleCreateExpense))
	mux.Handle("GET /api/expenses", s.protected(s.handleListExpenses))
	mux.Handle("GET /api/expenses/{id}", s.protected(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.protected(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.protected(s.handleDeleteExpense))

	mux.Handle("POST /api/receipts/upload", s.protected(s.handleUploadReceipt))

	mux.Handle("GET /api/analytics/summary", s.protected(s.handleSummary))
	mux.Handle("GET /api/analytics/insights", s.protected(s.handleInsights))
	mux.Handle("GET /api/analytics/insights/latest", s.protected(s.handleLatestInsights))
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.deps.Authenticator.Require(h)
}

// middleware wraps the mux, outermost first: CORS, tracing, request logger,
// security headers, suspicious request detection, rate limiting.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, skipRateLimit, s.onRateLimited)(next)
	detected := s.securityDetector.Middleware(s.logger)(limited)
	secured := s.securityHeaders.Middleware(detected)
	logged := log.Middleware(s.logger, trace.RequestID)(secured)
	traced := s.traceMiddleware.Middleware(logged)

	wildcard := slices.Contains(s.opts.CORSOrigins, "*")
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			trace.RequestIDHeader,
		},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Retry-After"},
		AllowCredentials: !wildcard,
	})
	return c.Handler(traced)
}

// skipRateLimit exempts reads; writes and uploads are counted.
func skipRateLimit(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodOptions
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

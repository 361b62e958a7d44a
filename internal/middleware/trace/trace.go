// Package trace stamps every request with an id and records its outcome.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"spendwise/internal/log"
)

type ctxKey struct{}

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

var inboundID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware assigns request ids, logs request start and end, and counts
// responses by status class.
type Middleware struct {
	clientIP   func(*http.Request) string
	structured *log.StructuredLogger

	requests     atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	micros       atomic.Int64
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	ClientErrors        int64
	ServerErrors        int64
	AverageResponseTime int64 // microseconds
}

// NewMiddleware builds the tracer. clientIP may be nil.
func NewMiddleware(clientIP func(*http.Request) string, logger *log.Logger) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		clientIP:   clientIP,
		structured: log.NewStructuredLogger(logger),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if !inboundID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		var ip string
		if m.clientIP != nil {
			ip = m.clientIP(r)
		}

		ctx := WithRequestID(r.Context(), id)
		r = r.WithContext(ctx)
		m.structured.LogHTTPStart(ctx, r, id, ip)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(began)
		m.record(sw.status, elapsed)
		m.structured.LogHTTPEnd(ctx, r, id, sw.status, elapsed.Milliseconds(), ip)
	})
}

func (m *Middleware) record(status int, elapsed time.Duration) {
	m.requests.Add(1)
	m.micros.Add(elapsed.Microseconds())
	switch {
	case status >= 500:
		m.serverErrors.Add(1)
	case status >= 400:
		m.clientErrors.Add(1)
	}
}

// GetMetrics returns the current counters.
func (m *Middleware) GetMetrics() Metrics {
	total := m.requests.Load()
	out := Metrics{
		TotalRequests: total,
		ClientErrors:  m.clientErrors.Load(),
		ServerErrors:  m.serverErrors.Load(),
	}
	if total > 0 {
		out.AverageResponseTime = m.micros.Load() / total
	}
	return out
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.status = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.written = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// GenerateRequestID returns a random id of the form req_<16 hex>.
func GenerateRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req_" + strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return "req_" + hex.EncodeToString(b[:])
}

// WithRequestID stores id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// GetRequestID returns the id stored by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// RequestID adapts GetRequestID for log.Middleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

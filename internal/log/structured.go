package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger emits the fixed-shape events shared by the HTTP layer
// and the services.
type StructuredLogger struct {
	http    *Logger
	expense *Logger
	base    *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		http:    logger.WithComponent(ComponentHTTP),
		expense: logger.WithComponent(ComponentExpense),
		base:    logger,
	}
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogHTTPStart is logged at debug so production logs keep one line per request.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	f := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
		WithClientIP(clientIP)
	sl.http.DebugContext(ctx, "HTTP request started", f.ToSlice()...)
}

// LogHTTPEnd logs at info, warn for 4xx, error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, status int, durationMs int64, clientIP string) {
	f := NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(status, durationMs).
		WithClientIP(clientIP)
	sl.http.Log(ctx, statusLevel(status), "HTTP request completed", f.ToSlice()...)
}

// LogExpenseChange records a committed create, update or delete.
func (sl *StructuredLogger) LogExpenseChange(ctx context.Context, op, userID, expenseID string, amountCents int64, category string) {
	f := NewFields().
		WithExpense(userID, expenseID, amountCents, category).
		WithOperation(op)
	sl.expense.InfoContext(ctx, "Expense "+op+"d", f.ToSlice()...)
}

// LogError logs err under component. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, op string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithOperation(op)
	sl.base.WithComponent(component).ErrorContext(ctx, msg, fields.ToSlice()...)
}

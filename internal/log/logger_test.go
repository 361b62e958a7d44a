package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelDebug, Component: ComponentStorage})

	l.Info("saved", FieldExpenseID, "e1")
	l.WithComponent(ComponentAuth).Warn("denied")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "expense_id=e1") {
		t.Fatalf("missing storage fields in %q", out)
	}
	if !strings.Contains(out, "component=auth") {
		t.Fatalf("missing auth component in %q", out)
	}
}

func TestWithKeepsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON}).
		With(FieldRequestID, "req_9").
		WithComponent(ComponentReceipt)

	l.Info("scanned")

	out := buf.String()
	if strings.Count(out, `"component"`) != 1 || !strings.Contains(out, `"component":"receipt"`) {
		t.Fatalf("want exactly one receipt component in %q", out)
	}
	if !strings.Contains(out, `"request_id":"req_9"`) {
		t.Fatalf("attributes added before WithComponent were lost: %q", out)
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat(" JSON ") != FormatJSON || ParseFormat("logfmt") != FormatText || ParseFormat("") != FormatText {
		t.Error("ParseFormat() mapping is wrong")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf, Level: slog.LevelInfo})

	h := Middleware(base, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id not propagated: %q", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Fatalf("unexpected component %q", l.Component())
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Level: slog.LevelInfo}))
	r := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_2", http.StatusNotFound, 3, "10.0.0.1")
	sl.LogError(context.Background(), "broken", errors.New("disk full"), ComponentStorage, OpCreate, nil)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status_code=404") {
		t.Fatalf("expected warn record for 404: %q", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, `error="disk full"`) {
		t.Fatalf("expected error record: %q", out)
	}
}

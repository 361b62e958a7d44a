package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMinute, burst int) (*Limiter, *clock) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerMinute: perMinute, Burst: burst})
	t.Cleanup(l.Stop)
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l.now = c.now
	return l, c
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(t, 60, 3) // one token per second

	for i := 0; i < 3; i++ {
		if d := l.Take("1.1.1.1"); !d.Allowed || d.Remaining != 2-i {
			t.Fatalf("request %d: %+v", i+1, d)
		}
	}
	d := l.Take("1.1.1.1")
	if d.Allowed || d.RetryAfter != time.Second {
		t.Fatalf("empty bucket: %+v, want rejection with 1s retry", d)
	}
	if !l.Allow("2.2.2.2") {
		t.Error("other clients have their own bucket")
	}

	c.advance(500 * time.Millisecond)
	if d := l.Take("1.1.1.1"); d.Allowed || d.RetryAfter != 500*time.Millisecond {
		t.Errorf("half a token: %+v", d)
	}
	c.advance(500 * time.Millisecond)
	if !l.Allow("1.1.1.1") {
		t.Error("a full token should have refilled")
	}

	c.advance(time.Hour)
	for i := 0; i < 3; i++ {
		l.Allow("1.1.1.1")
	}
	if l.Allow("1.1.1.1") {
		t.Error("refill is capped at the burst size")
	}

	if got := l.GetMetrics(); got.TotalHits != 3 || got.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v, want 3 rejections and 2 clients", got)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 30})
	defer l.Stop()
	if l.cfg.Burst != 30 || l.perToken != 2*time.Second {
		t.Errorf("burst = %d, perToken = %v", l.cfg.Burst, l.perToken)
	}
	l.Stop()
}

func TestLimiter_DropIdle(t *testing.T) {
	l, c := newTestLimiter(t, 60, 5)
	l.Allow("1.1.1.1")
	c.advance(6 * time.Minute)
	l.Allow("2.2.2.2")
	c.advance(5 * time.Minute)

	if removed := l.dropIdle(); removed != 1 {
		t.Errorf("dropIdle() = %d, want 1", removed)
	}
	if l.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", l.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	ip := func(*http.Request) string { return "1.1.1.1" }
	skipGet := func(r *http.Request) bool { return r.Method == http.MethodGet }
	limited := 0
	h := l.Middleware(ip, skipGet, func(w http.ResponseWriter, r *http.Request) {
		limited++
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("skipped GET was limited: %d", rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusOK || rr.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("first POST status = %d, remaining = %q", rr.Code, rr.Header().Get("X-RateLimit-Remaining"))
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	if rr.Code != http.StatusTooManyRequests || limited != 1 {
		t.Fatalf("second POST status = %d, limited = %d", rr.Code, limited)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
	}
}

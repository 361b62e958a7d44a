package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetector_DetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"plain api call", http.MethodGet, "/api/expenses?limit=10", "curl/8.0", false},
		{"path traversal", http.MethodGet, "/api/../etc/passwd", "", true},
		{"dotenv probe", http.MethodGet, "/.env", "", true},
		{"sql in query", http.MethodGet, "/api/expenses?q=1+union+select", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(r); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_InspectReason(t *testing.T) {
	d := NewDetector()
	tests := map[string]string{
		"/.git/config":            "probe",
		"/api/expenses?q=<script": "injection",
	}
	for target, want := range tests {
		if reason, ok := d.Inspect(httptest.NewRequest(http.MethodGet, target, nil)); !ok || reason != want {
			t.Errorf("Inspect(%q) = %q, %v; want %q", target, reason, ok, want)
		}
	}
	if got := d.GetMetrics().SuspiciousRequests; got != 2 {
		t.Errorf("SuspiciousRequests = %d, want 2", got)
	}
}

func TestDetector_ExtractClientIP(t *testing.T) {
	tests := []struct {
		name        string
		remote      string
		xff         string
		realIP      string
		want        string
		wantInvalid int64
	}{
		{"direct", "203.0.113.5:1234", "", "", "203.0.113.5", 0},
		{"untrusted proxy ignored", "203.0.113.5:1234", "1.2.3.4", "", "203.0.113.5", 0},
		{"trusted proxy forwarded", "10.0.0.1:80", "1.2.3.4, 10.0.0.1", "", "1.2.3.4", 0},
		{"trusted proxy real ip", "127.0.0.1:80", "", "5.6.7.8", "5.6.7.8", 0},
		{"invalid forwarded", "10.0.0.1:80", "not-an-ip", "", "10.0.0.1", 1},
		{"spoofed left entry ignored", "10.0.0.1:80", "6.6.6.6, 1.2.3.4, 10.0.0.2", "", "1.2.3.4", 0},
		{"only proxies forwarded", "10.0.0.1:80", "10.0.0.3, 10.0.0.2", "", "10.0.0.1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
			if got := d.GetMetrics().InvalidIPAttempts; got != tt.wantInvalid {
				t.Errorf("InvalidIPAttempts = %d, want %d", got, tt.wantInvalid)
			}
		})
	}
}

func TestDetector_AddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("bogus"); err == nil {
		t.Error("AddTrustedProxy() should reject invalid CIDR")
	}
	if err := d.AddTrustedProxy("198.51.100.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy() error = %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:443"
	r.Header.Set("X-Forwarded-For", "9.9.9.9")
	if got := d.ExtractClientIP(r); got != "9.9.9.9" {
		t.Errorf("ExtractClientIP() = %q, want forwarded address", got)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(noop)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must only be sent over TLS")
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("X-Forwarded-Proto is ignored unless trusted")
	}

	cfg := DefaultHeadersConfig()
	cfg.TrustForwardedProto = true
	cfg.CacheControl = ""
	rr = httptest.NewRecorder()
	NewHeadersMiddleware(cfg).Middleware(noop).ServeHTTP(rr, req)
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("trusted X-Forwarded-Proto: https should enable HSTS")
	}
	if rr.Header().Get("Cache-Control") != "" {
		t.Error("empty config values must not be sent")
	}
}

// Package security flags hostile-looking requests and resolves client
// addresses behind trusted proxies.
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"spendwise/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

const (
	maxURLLength = 2048
	maxProxyHops = 5
)

var (
	probePatterns = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", "etc/passwd", "cmd.exe",
	}
	injectionPatterns = []string{"eval(", "javascript:", "<script", "union select"}
	scannerAgents     = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab"}
	unusualMethods    = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// rule names a reason and how to spot it. path and query are lower case,
// query is unescaped.
type rule struct {
	reason string
	match  func(r *http.Request, path, query string) bool
}

var rules = []rule{
	{"probe", func(_ *http.Request, path, query string) bool {
		return containsAny(path, probePatterns) || containsAny(query, probePatterns)
	}},
	{"injection", func(_ *http.Request, path, query string) bool {
		return containsAny(path, injectionPatterns) || containsAny(query, injectionPatterns)
	}},
	{"scanner", func(r *http.Request, _, _ string) bool {
		return containsAny(strings.ToLower(r.UserAgent()), scannerAgents)
	}},
	{"method", func(r *http.Request, _, _ string) bool { return unusualMethods[r.Method] }},
	{"long_url", func(r *http.Request, _, _ string) bool { return len(r.URL.String()) > maxURLLength }},
	{"proxy_chain", func(r *http.Request, _, _ string) bool {
		return strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxProxyHops
	}},
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Detector flags suspicious requests and extracts client addresses.
type Detector struct {
	suspicious atomic.Int64
	invalidIP  atomic.Int64

	mu      sync.RWMutex
	trusted []netip.Prefix
}

// NewDetector trusts loopback and private ranges as proxies.
func NewDetector() *Detector {
	d := &Detector{}
	for _, p := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		d.trusted = append(d.trusted, netip.MustParsePrefix(p))
	}
	return d
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.mu.Lock()
	d.trusted = append(d.trusted, p.Masked())
	d.mu.Unlock()
	return nil
}

// Inspect returns the reason of the first rule the request trips.
func (d *Detector) Inspect(r *http.Request) (string, bool) {
	query := r.URL.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	path, query := strings.ToLower(r.URL.Path), strings.ToLower(query)

	for _, rl := range rules {
		if rl.match(r, path, query) {
			d.suspicious.Add(1)
			return rl.reason, true
		}
	}
	return "", false
}

// DetectSuspiciousRequest is Inspect reduced to its verdict.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	_, ok := d.Inspect(r)
	return ok
}

// ExtractClientIP returns the peer address, or when the peer is a trusted
// proxy, the right-most X-Forwarded-For entry that is not itself a trusted
// proxy, then X-Real-IP.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if ap, err := netip.ParseAddrPort(peer); err == nil {
		peer = ap.Addr().String()
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !d.isTrusted(addr) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				d.invalidIP.Add(1)
				break
			}
			if !d.isTrusted(hop) {
				return hop.String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.String()
		}
		d.invalidIP.Add(1)
	}
	return peer
}

func (d *Detector) isTrusted(a netip.Addr) bool {
	a = a.Unmap()
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}

// Middleware logs and counts suspicious requests without blocking them.
func (d *Detector) Middleware(logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSecurity)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reason, ok := d.Inspect(r); ok {
				logger.WarnContext(r.Context(), "Suspicious request detected",
					"reason", reason,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					log.FieldClientIP, d.ExtractClientIP(r),
					log.FieldUserAgent, r.UserAgent())
			}
			next.ServeHTTP(w, r)
		})
	}
}

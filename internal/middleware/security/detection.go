package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"operaciones/internal/log"
)

// Reasons reported for flagged requests.
const (
	ReasonPath      = "path"
	ReasonQuery     = "query"
	ReasonUserAgent = "user_agent"
	ReasonMethod    = "method"
	ReasonURLLength = "url_length"
	ReasonProxyHops = "proxy_hops"
)

const (
	maxURLLength = 2048
	maxProxyHops = 5
)

var (
	pathPatterns = []string{
		"../", "..\\", ".env", ".git", ".ssh", "wp-admin", "wp-login",
		"phpmyadmin", ".php", "etc/passwd", "cmd.exe",
	}
	queryPatterns = []string{
		"<script", "javascript:", "union select", "' or '1'='1", "eval(",
		"../", "etc/passwd",
	}
	scannerAgents = []string{
		"sqlmap", "nikto", "nmap", "masscan", "zgrab", "dirbuster", "gobuster", "wpscan",
	}
	allowedMethods = map[string]struct{}{
		http.MethodGet: {}, http.MethodHead: {}, http.MethodPost: {},
		http.MethodDelete: {}, http.MethodOptions: {},
	}
)

// DetectionStats is a snapshot of the detector counters.
type DetectionStats struct {
	SuspiciousRequests int64 `json:"suspicious_requests"`
	InvalidForwarded   int64 `json:"invalid_forwarded"`
}

// Detector flags requests that look like scans or attacks and resolves the client
// address, honouring forwarding headers only from trusted proxies.
type Detector struct {
	trustedProxies []*net.IPNet
	report         func(reason string)

	suspicious       atomic.Int64
	invalidForwarded atomic.Int64
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithReporter is called once per flagged request, e.g. to feed a counter.
func WithReporter(fn func(reason string)) DetectorOption {
	return func(d *Detector) { d.report = fn }
}

// WithTrustedProxies appends CIDRs whose forwarding headers are honoured.
func WithTrustedProxies(cidrs ...string) DetectorOption {
	return func(d *Detector) {
		for _, c := range cidrs {
			if n, err := parseCIDR(c); err == nil {
				d.trustedProxies = append(d.trustedProxies, n)
			}
		}
	}
}

// NewDetector trusts loopback and private ranges by default.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{}
	for _, c := range []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"} {
		n, err := parseCIDR(c)
		if err != nil {
			panic(err)
		}
		d.trustedProxies = append(d.trustedProxies, n)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func parseCIDR(cidr string) (*net.IPNet, error) {
	_, n, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return nil, fmt.Errorf("trusted proxy %q: %w", cidr, err)
	}
	return n, nil
}

// Inspect returns the first reason r looks hostile, or "" when it does not.
func (d *Detector) Inspect(r *http.Request) string {
	if _, ok := allowedMethods[r.Method]; !ok {
		return ReasonMethod
	}
	if len(r.URL.RequestURI()) > maxURLLength {
		return ReasonURLLength
	}
	path := strings.ToLower(r.URL.Path)
	for _, p := range pathPatterns {
		if strings.Contains(path, p) {
			return ReasonPath
		}
	}
	query := strings.ToLower(r.URL.RawQuery)
	if decoded, err := url.QueryUnescape(query); err == nil {
		query = decoded
	}
	for _, p := range queryPatterns {
		if strings.Contains(query, p) {
			return ReasonQuery
		}
	}
	ua := strings.ToLower(r.UserAgent())
	for _, s := range scannerAgents {
		if strings.Contains(ua, s) {
			return ReasonUserAgent
		}
	}
	if hops := r.Header.Get("X-Forwarded-For"); hops != "" && strings.Count(hops, ",")+1 > maxProxyHops {
		return ReasonProxyHops
	}
	return ""
}

// ClientIP returns the address of the caller. When the connection comes
// from a trusted proxy, X-Forwarded-For is walked right to left and the
// first untrusted hop wins; X-Real-IP is the fallback. Anything else gets
// the connection address.
func (d *Detector) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	remoteIP := net.ParseIP(remote)
	if remoteIP == nil || !d.isTrusted(remoteIP) {
		return remote
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				d.invalidForwarded.Add(1)
				break
			}
			if !d.isTrusted(ip) {
				return ip.String()
			}
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		if ip := net.ParseIP(xr); ip != nil {
			return ip.String()
		}
		d.invalidForwarded.Add(1)
	}
	return remote
}

func (d *Detector) isTrusted(ip net.IP) bool {
	for _, n := range d.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware logs flagged requests and lets them through; the handlers
// and the rate limiter decide what to do with them.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			d.suspicious.Add(1)
			if d.report != nil {
				d.report(reason)
			}
			log.FromContext(r.Context()).Warn("Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				"reason", reason,
				log.FieldClientIP, d.ClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the current counters.
func (d *Detector) Stats() DetectionStats {
	return DetectionStats{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidForwarded:   d.invalidForwarded.Load(),
	}
}

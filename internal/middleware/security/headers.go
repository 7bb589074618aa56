package security

import (
	"fmt"
	"net/http"
	"strings"
)

// HeadersConfig holds security headers configuration
type HeadersConfig struct {
	// ScriptSources are allowed in addition to 'self'.
	ScriptSources []string
	// ConnectSources are allowed in addition to 'self'.
	ConnectSources []string

	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	// NoStore marks dynamic responses as uncacheable. Static handlers may
	// override Cache-Control afterwards.
	NoStore bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginOpener   string
	CrossOriginResource string
}

// HTMXOrigin serves the pinned htmx build loaded by the page.
const HTMXOrigin = "https://unpkg.com"

// DefaultHeadersConfig returns the policy for the operations UI: scripts
// from the app and the htmx origin only, no framing, nothing cached.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		ScriptSources: []string{HTMXOrigin},

		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,
		NoStore:               true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "same-origin",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:   "same-origin",
		CrossOriginResource: "same-origin",
	}
}

// CSP renders the Content-Security-Policy value.
func (c HeadersConfig) CSP() string {
	directives := []string{
		"default-src 'self'",
		"script-src " + sources(c.ScriptSources),
		// chart bars carry inline width styles
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"connect-src " + sources(c.ConnectSources),
		"object-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	return strings.Join(directives, "; ")
}

func sources(extra []string) string {
	return strings.Join(append([]string{"'self'"}, extra...), " ")
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	config HeadersConfig
	csp    string
	hsts   string
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{config: config, csp: config.CSP()}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
	}
	return h
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()
	headers.Set("Content-Security-Policy", h.csp)
	headers.Set("X-Content-Type-Options", h.config.XContentTypeOptions)
	headers.Set("X-Frame-Options", h.config.XFrameOptions)
	headers.Set("Referrer-Policy", h.config.ReferrerPolicy)
	headers.Set("Permissions-Policy", h.config.PermissionsPolicy)
	headers.Set("Cross-Origin-Opener-Policy", h.config.CrossOriginOpener)
	headers.Set("Cross-Origin-Resource-Policy", h.config.CrossOriginResource)

	// The same URL answers a full page or an htmx partial.
	headers.Add("Vary", "HX-Request")
	if h.config.NoStore {
		headers.Set("Cache-Control", "no-store")
	}

	if r.TLS != nil && h.hsts != "" {
		headers.Set("Strict-Transport-Security", h.hsts)
	}
}

// StaticAssetMiddleware lets embedded assets be cached for maxAge seconds.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}

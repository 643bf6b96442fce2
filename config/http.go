package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP gateway configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// CookieDomain scopes the session and CSRF cookies. Empty means the request host.
	CookieDomain string `env:"HTTP_COOKIE_DOMAIN"`

	// UpstreamURL is the REST API root proxied under /api/.
	// Empty means IDENTITY_BASE_URL.
	UpstreamURL string `env:"API_UPSTREAM_URL"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`

	// AllowedOrigins may open WebSockets and send state-changing requests besides the
	// gateway's own origin.
	AllowedOrigins []string `env:"HTTP_WS_ALLOWED_ORIGINS" envSeparator:","`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.UpstreamURL = strings.TrimRight(strings.TrimSpace(h.UpstreamURL), "/")
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = "127.0.0.1:8080"
	}
	h.CookieDomain = strings.TrimSpace(h.CookieDomain)
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}
}

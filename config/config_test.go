package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - relay",
			input:    "relay",
			expected: map[ServiceMode]bool{ServiceModeRelay: true},
		},
		{
			name:     "services with spaces",
			input:    " http , relay ",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeRelay: true},
		},
		{
			name:     "duplicate services",
			input:    "http,http,relay",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeRelay: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		name      string
		services  string
		wantHTTP  bool
		wantRelay bool
	}{
		{name: "both", services: "http,relay", wantHTTP: true, wantRelay: true},
		{name: "http only", services: "http", wantHTTP: true},
		{name: "relay only", services: "relay", wantRelay: true},
		{name: "invalid", services: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AppConfig{Services: tt.services}
			if got := cfg.IsHTTPServerEnabled(); got != tt.wantHTTP {
				t.Errorf("IsHTTPServerEnabled() = %v, want %v", got, tt.wantHTTP)
			}
			if got := cfg.IsRelayEnabled(); got != tt.wantRelay {
				t.Errorf("IsRelayEnabled() = %v, want %v", got, tt.wantRelay)
			}
		})
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 2 {
		t.Fatalf("expected 2 service modes, got %d", len(modes))
	}
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("ParseServices(%q) error = %v", m, err)
		}
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Identity.Mode != IdentityModeREST {
		t.Errorf("Identity.Mode = %q, want rest", cfg.Identity.Mode)
	}
	if cfg.TokenStore.Mode != TokenStoreKeyring {
		t.Errorf("TokenStore.Mode = %q, want keyring", cfg.TokenStore.Mode)
	}
	if cfg.Notify.Transport != NotifyTransportWebSocket {
		t.Errorf("Notify.Transport = %q, want websocket", cfg.Notify.Transport)
	}
	if !cfg.Notify.RequireAuth {
		t.Errorf("Notify.RequireAuth = false, want true")
	}
	if cfg.Notify.QueueCapacity != 200 {
		t.Errorf("Notify.QueueCapacity = %d, want 200", cfg.Notify.QueueCapacity)
	}
	if cfg.Notify.MessageExpr != "message || keluhan" {
		t.Errorf("Notify.MessageExpr = %q", cfg.Notify.MessageExpr)
	}
	if cfg.Session.LookupTimeout != 10*time.Second {
		t.Errorf("Session.LookupTimeout = %v, want 10s", cfg.Session.LookupTimeout)
	}
	wantPublic := []string{"/", "/login", "/healthz"}
	if !reflect.DeepEqual(cfg.Session.PublicRoutes, wantPublic) {
		t.Errorf("Session.PublicRoutes = %v, want %v", cfg.Session.PublicRoutes, wantPublic)
	}
	if got := cfg.UpstreamURL(); got != "http://localhost:3000" {
		t.Errorf("UpstreamURL() = %q", got)
	}
	if cfg.HTTP.Addr != "127.0.0.1:8080" {
		t.Errorf("HTTP.Addr = %q, want loopback", cfg.HTTP.Addr)
	}
	if cfg.Session.Store != SessionStoreMemory {
		t.Errorf("Session.Store = %q, want memory", cfg.Session.Store)
	}
	if cfg.Session.CookieTTL != 12*time.Hour {
		t.Errorf("Session.CookieTTL = %v, want 12h", cfg.Session.CookieTTL)
	}
	if cfg.Journal.Buffer != 64 {
		t.Errorf("Journal.Buffer = %d, want 64", cfg.Journal.Buffer)
	}
}

func TestAppConfig_ParseIdentityEnv(t *testing.T) {
	t.Setenv("IDENTITY_MODE", "OIDC")
	t.Setenv("IDENTITY_BASE_URL", "https://api.desa.id/")
	t.Setenv("OIDC_ISSUER_URL", "https://login.desa.id")
	t.Setenv("DEV_AUTH_TOKEN", "t0k")
	t.Setenv("ROLE_ADMIN_NAMES", "admin,kades")
	t.Setenv("API_UPSTREAM_URL", "https://files.desa.id/")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Identity.Mode != IdentityModeOIDC {
		t.Errorf("Identity.Mode = %q, want oidc", cfg.Identity.Mode)
	}
	if cfg.Identity.BaseURL != "https://api.desa.id" {
		t.Errorf("Identity.BaseURL = %q", cfg.Identity.BaseURL)
	}
	if cfg.Identity.OIDC.IssuerURL != "https://login.desa.id" {
		t.Errorf("OIDC.IssuerURL = %q", cfg.Identity.OIDC.IssuerURL)
	}
	if cfg.Identity.DevAuth.Token != "t0k" {
		t.Errorf("DevAuth.Token = %q", cfg.Identity.DevAuth.Token)
	}
	if !reflect.DeepEqual(cfg.Identity.AdminRoles, []string{"admin", "kades"}) {
		t.Errorf("AdminRoles = %v", cfg.Identity.AdminRoles)
	}
	if got := cfg.UpstreamURL(); got != "https://files.desa.id" {
		t.Errorf("UpstreamURL() = %q", got)
	}
}

func TestAppConfig_InvalidModes(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"IDENTITY_MODE", "ldap"},
		{"TOKEN_STORE", "sqlite"},
		{"NOTIFY_TRANSPORT", "sse"},
		{"SESSION_STORE", "keyring"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			var cfg AppConfig
			if err := env.Parse(&cfg); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestNotifyConfig_Sanitize(t *testing.T) {
	c := NotifyConfig{QueueCapacity: 0, SubscriberBuffer: -1, ReconnectInterval: time.Millisecond, MessageExpr: "  "}
	c.Sanitize()

	if c.QueueCapacity != 1 {
		t.Errorf("QueueCapacity = %d, want 1", c.QueueCapacity)
	}
	if c.SubscriberBuffer != 1 {
		t.Errorf("SubscriberBuffer = %d, want 1", c.SubscriberBuffer)
	}
	if c.ReconnectInterval != 100*time.Millisecond {
		t.Errorf("ReconnectInterval = %v, want 100ms", c.ReconnectInterval)
	}
	if c.MessageExpr != defaultMessageExpr {
		t.Errorf("MessageExpr = %q, want default", c.MessageExpr)
	}
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	c := ObservabilityConfig{LogLevel: " DEBUG "}
	c.Sanitize()
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", c.LogLevel)
	}

	c = ObservabilityConfig{LogLevel: "verbose"}
	c.Sanitize()
	if c.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", c.LogLevel)
	}
}

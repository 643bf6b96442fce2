package config

import (
	"fmt"
	"strings"
	"time"
)

// IdentityMode selects the identity lookup backend.
type IdentityMode string

const (
	// IdentityModeREST looks identities up on the desa REST API.
	IdentityModeREST IdentityMode = "rest"
	// IdentityModeOIDC resolves identities through an OIDC UserInfo endpoint.
	IdentityModeOIDC IdentityMode = "oidc"
	// IdentityModeDev accepts a single configured token (development only).
	IdentityModeDev IdentityMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for IdentityMode.
func (m *IdentityMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch IdentityMode(v) {
	case IdentityModeREST, IdentityModeOIDC, IdentityModeDev:
		*m = IdentityMode(v)
		return nil
	default:
		return fmt.Errorf("invalid IdentityMode: %q (valid options: rest, oidc, dev)", v)
	}
}

// TokenStoreMode selects where the operator token is persisted.
type TokenStoreMode string

const (
	TokenStoreKeyring TokenStoreMode = "keyring"
	TokenStoreRedis   TokenStoreMode = "redis"
	TokenStoreMemory  TokenStoreMode = "memory"
)

// UnmarshalText implements encoding.TextUnmarshaler for TokenStoreMode.
func (m *TokenStoreMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch TokenStoreMode(v) {
	case TokenStoreKeyring, TokenStoreRedis, TokenStoreMemory:
		*m = TokenStoreMode(v)
		return nil
	default:
		return fmt.Errorf("invalid TokenStoreMode: %q (valid options: keyring, redis, memory)", v)
	}
}

// SessionStoreMode selects where browser sessions are kept.
type SessionStoreMode string

const (
	SessionStoreMemory SessionStoreMode = "memory"
	SessionStoreRedis  SessionStoreMode = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionStoreMode.
func (m *SessionStoreMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch SessionStoreMode(v) {
	case SessionStoreMemory, SessionStoreRedis:
		*m = SessionStoreMode(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionStoreMode: %q (valid options: memory, redis)", v)
	}
}

// SessionConfig controls the session guard and the route-redirection policy.
type SessionConfig struct {
	// LookupTimeout bounds a single identity lookup. Timeouts count as failed resolution.
	LookupTimeout time.Duration `env:"SESSION_LOOKUP_TIMEOUT" envDefault:"10s"`

	// ReadyTimeout bounds how long a protected request waits for the first resolution.
	ReadyTimeout time.Duration `env:"SESSION_READY_TIMEOUT" envDefault:"15s"`

	LoginRoute   string   `env:"SESSION_LOGIN_ROUTE"   envDefault:"/login"`
	LandingRoute string   `env:"SESSION_LANDING_ROUTE" envDefault:"/dashboard"`
	PublicRoutes []string `env:"SESSION_PUBLIC_ROUTES" envDefault:"/,/login,/healthz" envSeparator:","`

	// LoginRate is the sustained number of login attempts per second allowed per client.
	LoginRate  float64 `env:"SESSION_LOGIN_RATE"  envDefault:"0.2"`
	LoginBurst int     `env:"SESSION_LOGIN_BURST" envDefault:"5"`

	// Store keeps the browser sessions issued at POST /login.
	Store       SessionStoreMode `env:"SESSION_STORE"              envDefault:"memory"`
	CookieTTL   time.Duration    `env:"SESSION_COOKIE_TTL"         envDefault:"12h"`
	RedisPrefix string           `env:"SESSION_STORE_REDIS_PREFIX" envDefault:"desa-admin:session:"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = 10 * time.Second
	}
	if s.ReadyTimeout <= 0 {
		s.ReadyTimeout = 15 * time.Second
	}
	if s.LoginBurst < 1 {
		s.LoginBurst = 1
	}
	if s.LoginRate <= 0 {
		s.LoginRate = 0.2
	}
	if s.CookieTTL <= 0 {
		s.CookieTTL = 12 * time.Hour
	}
	routes := s.PublicRoutes[:0]
	for _, r := range s.PublicRoutes {
		if r = strings.TrimSpace(r); r != "" {
			routes = append(routes, r)
		}
	}
	s.PublicRoutes = routes
}

// OIDCConfig contains settings for IDENTITY_MODE=oidc.
type OIDCConfig struct {
	IssuerURL    string `env:"ISSUER_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	// GroupsClaim names the UserInfo claim that carries role groups.
	GroupsClaim string `env:"GROUPS_CLAIM" envDefault:"groups"`
}

// DevAuthConfig controls the dev identity.
// Used when IDENTITY_MODE=dev for development and testing.
type DevAuthConfig struct {
	Token    string `env:"TOKEN"    envDefault:"dev-token"`
	UserID   string `env:"USER_ID"  envDefault:"1"`
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD" envDefault:"admin"`
	Name     string `env:"NAME"     envDefault:"Admin Desa"`
	Email    string `env:"EMAIL"    envDefault:"admin@desa.local"`
	Role     string `env:"ROLE"     envDefault:"admin"`
}

// IdentityConfig groups identity lookup configuration.
type IdentityConfig struct {
	Mode IdentityMode `env:"IDENTITY_MODE" envDefault:"rest"`

	// BaseURL is the desa REST API root.
	BaseURL string `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:3000"`
	// LookupPath is the user lookup path; {id} is replaced by the user id from the token.
	LookupPath string `env:"IDENTITY_LOOKUP_PATH" envDefault:"/api/users/{id}"`
	LoginPath  string `env:"IDENTITY_LOGIN_PATH"  envDefault:"/api/login"`

	OIDC    OIDCConfig    `envPrefix:"OIDC_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// AdminRoles and UserRoles map upstream role names or groups to application roles.
	AdminRoles []string `env:"ROLE_ADMIN_NAMES" envDefault:"admin"             envSeparator:","`
	UserRoles  []string `env:"ROLE_USER_NAMES"  envDefault:"user,staff,perangkat" envSeparator:","`
}

// Sanitize normalises identity configuration values.
func (c *IdentityConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.LookupPath == "" {
		c.LookupPath = "/api/users/{id}"
	}
	if c.LoginPath == "" {
		c.LoginPath = "/api/login"
	}
	c.OIDC.IssuerURL = strings.TrimSpace(c.OIDC.IssuerURL)
}

// TokenStoreConfig controls persisted token storage.
type TokenStoreConfig struct {
	Mode TokenStoreMode `env:"TOKEN_STORE" envDefault:"keyring"`

	// Key is the fixed name the token is stored under.
	Key string `env:"TOKEN_STORE_KEY" envDefault:"token"`

	KeyringService  string   `env:"TOKEN_STORE_KEYRING_SERVICE"  envDefault:"desa-admin"`
	KeyringBackends []string `env:"TOKEN_STORE_KEYRING_BACKENDS" envSeparator:","`
	KeyringFileDir  string   `env:"TOKEN_STORE_KEYRING_FILE_DIR" envDefault:"~/.desa-admin/keyring"`
	KeyringPassword string   `env:"TOKEN_STORE_KEYRING_PASSWORD"`

	RedisPrefix string        `env:"TOKEN_STORE_REDIS_PREFIX" envDefault:"desa-admin:"`
	RedisTTL    time.Duration `env:"TOKEN_STORE_REDIS_TTL"    envDefault:"0s"`
}

// Sanitize normalises token store configuration values.
func (c *TokenStoreConfig) Sanitize() {
	if c.Key = strings.TrimSpace(c.Key); c.Key == "" {
		c.Key = "token"
	}
	if c.KeyringService == "" {
		c.KeyringService = "desa-admin"
	}
	if c.RedisTTL < 0 {
		c.RedisTTL = 0
	}
}

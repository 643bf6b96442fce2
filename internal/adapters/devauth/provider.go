package devauth

// Package devauth provides a simple, config-driven identity provider for local development.

import (
	"context"
	"crypto/subtle"
	"errors"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
)

var (
	_ ports.IdentityLookup = (*Provider)(nil)
	_ ports.Authenticator  = (*Provider)(nil)
)

var (
	// ErrInvalidToken is returned by Lookup for any token other than the configured one.
	ErrInvalidToken = errors.New("dev auth: invalid token")
	// ErrInvalidCredentials is returned by Login when username or password do not match.
	ErrInvalidCredentials = errors.New("dev auth: invalid username or password")
)

// Config controls the dev identity.
// Token, UserID and Username are required.
type Config struct {
	Token    string
	UserID   string
	Username string
	Password string
	Name     string
	Email    string
	Role     string
}

// Provider accepts exactly one configured token and one username/password pair.
type Provider struct {
	token    string
	password string
	identity domainauth.Identity
}

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, errors.New("dev auth: Token is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Username == "" {
		return nil, errors.New("dev auth: Username is required")
	}
	return &Provider{
		token:    cfg.Token,
		password: cfg.Password,
		identity: domainauth.Identity{
			UserID:      cfg.UserID,
			Username:    cfg.Username,
			DisplayName: cfg.Name,
			Email:       cfg.Email,
			Role:        domainauth.ParseRole(cfg.Role),
		},
	}, nil
}

// Lookup returns the dev identity when token matches the configured token.
func (p *Provider) Lookup(_ context.Context, token string) (domainauth.Identity, error) {
	if !equal(token, p.token) {
		return domainauth.Identity{}, ErrInvalidToken
	}
	return p.identity, nil
}

// Login returns the configured token for the configured username and password.
func (p *Provider) Login(_ context.Context, creds ports.Credentials) (string, error) {
	userOK := equal(creds.Username, p.identity.Username)
	passOK := equal(creds.Password, p.password)
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return p.token, nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

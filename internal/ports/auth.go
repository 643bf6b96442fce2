package ports

// Package ports defines interfaces (hexagonal ports) for session and notification behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

// ErrNoToken is returned by TokenStore.Get when no credential is stored.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the single opaque credential string of the operator.
type TokenStore interface {
	// Get returns the stored token or ErrNoToken.
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	// Clear removes the stored token. Clearing an absent token is not an error.
	Clear(ctx context.Context) error
}

// ErrSessionNotFound is returned by SessionStore.Get for unknown or expired sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists the browser sessions issued at login.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	// Get returns the session or ErrSessionNotFound.
	Get(ctx context.Context, id string) (domainauth.Session, error)
	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error
}

// IdentityLookup exchanges a credential token for a verified user record.
type IdentityLookup interface {
	Lookup(ctx context.Context, token string) (domainauth.Identity, error)
}

// Credentials carries the login form input.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator submits credentials to the login endpoint and returns the issued token.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (string, error)
}

// Navigator receives forced navigation requests from the session guard.
type Navigator interface {
	Navigate(route string)
}

// RoleMapper maps upstream role names or groups to application roles.
type RoleMapper interface {
	Map(groups []string) domainauth.Role
}

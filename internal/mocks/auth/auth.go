package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityLookup = (*MockLookup)(nil)
	_ ports.IdentityLookup = (*ControlledLookup)(nil)
	_ ports.Authenticator  = (*MockAuthenticator)(nil)
	_ ports.Navigator      = (*RecordingNavigator)(nil)
	_ ports.RoleMapper     = StaticRoleMapper{}
)

// ErrRejected is the default failure of MockLookup for unknown tokens.
var ErrRejected = errors.New("token rejected")

// MockLookup resolves tokens from a fixed table.
type MockLookup struct {
	LookupFunc func(ctx context.Context, token string) (domainauth.Identity, error)

	// Identities maps accepted tokens to identities.
	Identities map[string]domainauth.Identity

	mu    sync.Mutex
	calls []string
}

// NewMockLookup creates a MockLookup accepting the given token/identity pairs.
func NewMockLookup(identities map[string]domainauth.Identity) *MockLookup {
	return &MockLookup{Identities: identities}
}

func (m *MockLookup) Lookup(ctx context.Context, token string) (domainauth.Identity, error) {
	m.mu.Lock()
	m.calls = append(m.calls, token)
	m.mu.Unlock()

	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, token)
	}
	if id, ok := m.Identities[token]; ok {
		return id, nil
	}
	return domainauth.Identity{}, ErrRejected
}

// Calls returns the tokens looked up so far.
func (m *MockLookup) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// PendingLookup is a lookup call held open by ControlledLookup until the test answers it.
type PendingLookup struct {
	Token   string
	respond chan lookupResult
}

type lookupResult struct {
	identity domainauth.Identity
	err      error
}

// Succeed completes the call with identity.
func (p *PendingLookup) Succeed(identity domainauth.Identity) {
	p.respond <- lookupResult{identity: identity}
}

// Fail completes the call with err.
func (p *PendingLookup) Fail(err error) {
	p.respond <- lookupResult{err: err}
}

// ControlledLookup blocks every Lookup until the test completes it, so tests can choose the
// order in which concurrent lookups finish.
type ControlledLookup struct {
	calls chan *PendingLookup
}

// NewControlledLookup creates a ControlledLookup.
func NewControlledLookup() *ControlledLookup {
	return &ControlledLookup{calls: make(chan *PendingLookup, 16)}
}

func (c *ControlledLookup) Lookup(ctx context.Context, token string) (domainauth.Identity, error) {
	p := &PendingLookup{Token: token, respond: make(chan lookupResult, 1)}
	c.calls <- p
	select {
	case r := <-p.respond:
		return r.identity, r.err
	case <-ctx.Done():
		return domainauth.Identity{}, ctx.Err()
	}
}

// Next waits up to timeout for the next lookup call.
func (c *ControlledLookup) Next(timeout time.Duration) (*PendingLookup, bool) {
	select {
	case p := <-c.calls:
		return p, true
	case <-time.After(timeout):
		return nil, false
	}
}

// MockAuthenticator issues tokens for a fixed credential table.
type MockAuthenticator struct {
	LoginFunc func(ctx context.Context, creds ports.Credentials) (string, error)
	// Tokens maps "username:password" to the issued token.
	Tokens map[string]string
}

func (m *MockAuthenticator) Login(ctx context.Context, creds ports.Credentials) (string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}
	if tok, ok := m.Tokens[creds.Username+":"+creds.Password]; ok {
		return tok, nil
	}
	return "", ErrRejected
}

// RecordingNavigator records forced navigations.
type RecordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *RecordingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

// Routes returns the routes navigated to, oldest first.
func (n *RecordingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// Last returns the most recent route, or "" if none.
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

// StaticRoleMapper maps to a fixed role.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m StaticRoleMapper) Map(_ []string) domainauth.Role {
	if m.Role == "" {
		return domainauth.RoleGuest
	}
	return m.Role
}

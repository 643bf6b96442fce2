// Package auth contains domain-level types for the operator session.
// It is pure and free of framework/adapter concerns.
package auth

import "strings"

// Role represents an application's authorization role.
// Keep string form for easy persistence and JSON.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole normalizes a raw role string. Unknown values map to RoleGuest.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleGuest
	}
}

// Identity is the verified user record returned by an identity lookup.
// It is never constructed from local state; adapters map upstream payloads into it.
type Identity struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
}

// Status is the tri-state authentication status of the session.
type Status int

const (
	// StatusUnknown is the initial state before the first resolution completes.
	// Redirect decisions must not be made while the session is in this state.
	StatusUnknown Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so Status renders as a word in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent read of the session state.
// Identity is non-nil if and only if Status == StatusAuthenticated.
// Version increases with every applied state change.
type Snapshot struct {
	Status   Status    `json:"status"`
	Identity *Identity `json:"identity,omitempty"`
	Version  uint64    `json:"version"`
	// Grant identifies the resolution that authenticated the session. It is new for every
	// successful Login or Resolve and empty otherwise; browser sessions are bound to it.
	Grant string `json:"-"`
}

// Authenticated reports whether the snapshot carries a verified identity.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

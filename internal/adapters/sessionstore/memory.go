// Package sessionstore keeps browser sessions in process memory.
package sessionstore

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.SessionStore = (*MemoryStore)(nil)

// MemoryStore is the default session store. Sessions do not survive a restart, which also
// ends every browser session bound to the previous process's login.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	now      func() time.Time
}

// NewMemoryStore creates an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{sessions: make(map[string]domainauth.Session), now: now}
}

func (m *MemoryStore) Save(_ context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	if sess.Expired(m.now()) {
		delete(m.sessions, id)
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of sessions held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// prune drops expired sessions. Callers hold m.mu.
func (m *MemoryStore) prune() {
	now := m.now()
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
		}
	}
}

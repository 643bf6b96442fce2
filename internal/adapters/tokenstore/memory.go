package tokenstore

import (
	"context"
	"sync"

	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.TokenStore = (*MemoryStore)(nil)

// MemoryStore keeps the token in process memory. The token does not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore returns a store holding token ("" for empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", ports.ErrNoToken
	}
	return s.token, nil
}

func (s *MemoryStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Peek returns the stored token without the ErrNoToken convention.
func (s *MemoryStore) Peek() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

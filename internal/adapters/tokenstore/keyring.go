// Package tokenstore persists the operator token in the OS keyring or in memory.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"
	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.TokenStore = (*KeyringStore)(nil)

// KeyringConfig configures OpenKeyring.
type KeyringConfig struct {
	ServiceName string
	// Backends limits the keyring backends tried, in order. Empty means the platform default.
	Backends     []string
	FileDir      string
	FilePassword string
}

// OpenKeyring opens the keyring described by cfg.
func OpenKeyring(cfg KeyringConfig) (keyring.Keyring, error) {
	kc := keyring.Config{
		ServiceName:              cfg.ServiceName,
		FileDir:                  cfg.FileDir,
		KeychainTrustApplication: true,
	}
	if cfg.FilePassword != "" {
		kc.FilePasswordFunc = keyring.FixedStringPrompt(cfg.FilePassword)
	}
	for _, b := range cfg.Backends {
		kc.AllowedBackends = append(kc.AllowedBackends, keyring.BackendType(b))
	}

	ring, err := keyring.Open(kc)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the token as a single keyring item.
type KeyringStore struct {
	ring keyring.Keyring
	key  string
}

// NewKeyringStore stores the token under key in ring.
func NewKeyringStore(ring keyring.Keyring, key string) *KeyringStore {
	return &KeyringStore{ring: ring, key: key}
}

func (s *KeyringStore) Get(_ context.Context) (string, error) {
	item, err := s.ring.Get(s.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ports.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", s.key, err)
	}
	if len(item.Data) == 0 {
		return "", ports.ErrNoToken
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(_ context.Context, token string) error {
	err := s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        []byte(token),
		Label:       "desa-admin operator token",
		Description: "bearer token for the desa REST API",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", s.key, err)
	}
	return nil
}

func (s *KeyringStore) Clear(_ context.Context) error {
	err := s.ring.Remove(s.key)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("deleting credential %q: %w", s.key, err)
}

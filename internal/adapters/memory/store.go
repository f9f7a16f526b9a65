// Package memory provides an in-process credential store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

type verifierEntry struct {
	value   string
	savedAt time.Time
}

// Store keeps the credential and PKCE verifiers in memory. Nothing survives
// a restart.
type Store struct {
	mu          sync.RWMutex
	cred        domain.Credential
	hasCred     bool
	verifiers   map[string]verifierEntry
	verifierTTL time.Duration
	now         func() time.Time
}

var _ ports.CredentialStore = (*Store)(nil)

// NewStore returns an empty store. A verifierTTL of zero keeps verifiers
// until they are deleted.
func NewStore(verifierTTL time.Duration) *Store {
	return &Store{
		verifiers:   make(map[string]verifierEntry),
		verifierTTL: verifierTTL,
		now:         time.Now,
	}
}

func (s *Store) Get(_ context.Context) (domain.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, s.hasCred, nil
}

func (s *Store) Set(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	s.hasCred = true
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = domain.Credential{}
	s.hasCred = false
	return nil
}

func (s *Store) SaveVerifier(_ context.Context, state, verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifiers[state] = verifierEntry{value: verifier, savedAt: s.now()}
	return nil
}

func (s *Store) LoadVerifier(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.verifiers[state]
	if !ok {
		return "", domain.ErrNotFound
	}
	if s.verifierTTL > 0 && s.now().Sub(entry.savedAt) > s.verifierTTL {
		delete(s.verifiers, state)
		return "", domain.ErrNotFound
	}
	return entry.value, nil
}

func (s *Store) DeleteVerifier(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifiers, state)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

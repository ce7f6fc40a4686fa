package cache

import (
	"context"
	"sync"
	"time"

	"github.com/daisinet/securetools/internal/repository"
)

// MemoryVerifierStore keeps PKCE verifiers in process memory with per-entry
// expiry. Expired entries are swept on every write so abandoned authorize
// flows cannot grow the map without bound.
type MemoryVerifierStore struct {
	mu      sync.Mutex
	entries map[string]verifierEntry
	now     func() time.Time
}

type verifierEntry struct {
	verifier  string
	expiresAt time.Time
}

var _ repository.VerifierStore = (*MemoryVerifierStore)(nil)

// NewMemoryVerifierStore constructs an empty in-memory verifier cache.
func NewMemoryVerifierStore() *MemoryVerifierStore {
	return &MemoryVerifierStore{
		entries: make(map[string]verifierEntry),
		now:     time.Now,
	}
}

func (s *MemoryVerifierStore) SaveVerifier(_ context.Context, state, verifier string, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.entries[state] = verifierEntry{verifier: verifier, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryVerifierStore) PopVerifier(_ context.Context, state string) (string, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[state]
	if !ok {
		return "", nil
	}
	delete(s.entries, state)
	if now.After(entry.expiresAt) {
		return "", nil
	}
	return entry.verifier, nil
}

func (s *MemoryVerifierStore) sweepLocked(now time.Time) {
	for state, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, state)
		}
	}
}

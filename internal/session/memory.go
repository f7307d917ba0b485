package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryEntry struct {
	state     AuthState
	expiresAt time.Time
}

// MemoryStore implements Store in process memory. It suits single
// instance deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Save implements Store
func (s *MemoryStore) Save(ctx context.Context, st *AuthState, expiresIn time.Duration) error {
	if st == nil || st.State == "" {
		return errors.New("empty state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictExpired(now)
	s.entries[stateKey(st.Provider, st.State)] = memoryEntry{
		state:     *st,
		expiresAt: now.Add(expiresIn),
	}
	return nil
}

// Take implements Store
func (s *MemoryStore) Take(ctx context.Context, provider, state string) (*AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(provider, state)
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	delete(s.entries, key)

	if !s.now().Before(e.expiresAt) {
		return nil, ErrStateNotFound
	}
	st := e.state
	return &st, nil
}

// CheckHealth implements Store
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored states, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictExpired(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

func stateKey(provider, state string) string {
	return provider + ":" + state
}

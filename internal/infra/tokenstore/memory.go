package tokenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore tracks outstanding signature-request tokens in process. The
// entry keyed by the token string is what makes a token single-use; the
// token's own cryptography stays valid until expiry regardless.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	partyID   string
	expiresAt time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:     now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(ctx context.Context, token, partyID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{
		partyID:   partyID,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, token)
		return false, nil
	}
	return true, nil
}

// Consume checks and deletes in one critical section, so of two concurrent
// submissions exactly one observes true.
func (s *MemoryStore) Consume(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return false, nil
	}
	delete(s.entries, token)
	if s.now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

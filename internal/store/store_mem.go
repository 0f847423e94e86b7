package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memEntry struct {
	value    []byte
	deadline time.Time
}

// InMemoryStore is a thread-safe, in-process Store. Its contents do not
// outlive the process, so it only carries run state across cycles of a
// long-running daemon.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewInMemoryStore creates an empty store. A nil clock defaults to time.Now.
func NewInMemoryStore(now func() time.Time) *InMemoryStore {
	if now == nil {
		now = time.Now
	}
	return &InMemoryStore{
		entries: make(map[string]memEntry),
		now:     now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// Get implements Store. Expired entries are evicted on read.
func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if Expired(e.deadline, s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return slices.Clone(e.value), true, nil
}

// Set implements Store.
func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memEntry{
		value:    slices.Clone(value),
		deadline: Expiry(s.now(), ttl),
	}
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

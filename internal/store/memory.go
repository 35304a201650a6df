package store

import (
	"sync"
	"time"
)

type entry struct {
	values   []string
	storedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory cache of string lists, used for
// place type lookups that change rarely.
type MemoryStore struct {
	mu sync.RWMutex

	data map[string]entry

	// retention configuration
	maxEntries int           // max number of keys (0 = unlimited)
	maxAge     time.Duration // max age of an entry (0 = unlimited)

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxEntries is <= 0, it is treated as unlimited.
func NewMemoryStore(maxEntries int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]entry),
		maxEntries: maxEntries,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Put stores values under key and enforces retention.
func (s *MemoryStore) Put(key string, values []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = entry{values: append([]string{}, values...), storedAt: s.now()}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		for k, e := range s.data {
			if e.storedAt.Before(cutoff) {
				delete(s.data, k)
			}
		}
	}

	// Enforce retention by count, oldest first.
	for s.maxEntries > 0 && len(s.data) > s.maxEntries {
		var (
			oldestKey string
			oldestAt  time.Time
		)
		for k, e := range s.data {
			if oldestKey == "" || e.storedAt.Before(oldestAt) || (e.storedAt.Equal(oldestAt) && k < oldestKey) {
				oldestKey, oldestAt = k, e.storedAt
			}
		}
		delete(s.data, oldestKey)
	}
}

// Get returns the values stored under key if present and not expired.
func (s *MemoryStore) Get(key string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if s.maxAge > 0 && s.now().Sub(e.storedAt) > s.maxAge {
		return nil, false
	}
	return append([]string{}, e.values...), true
}

// Len returns the number of stored keys, including expired ones not yet evicted.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

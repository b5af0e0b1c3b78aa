package ledger

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	val      string
	list     []string
	expireAt time.Time
}

// MemoryStore is a Store that keeps the data in memory.
// It is only useful when all build steps run in the same process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

var _ Store = &MemoryStore{}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]*memEntry{},
		now:     time.Now,
	}
}

// get returns the entry for key, expired entries are removed.
// s.mu must be held by the caller.
func (s *MemoryStore) get(key string) *memEntry {
	e, exists := s.entries[key]
	if !exists {
		return nil
	}

	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		delete(s.entries, key)
		return nil
	}

	return e
}

func (s *MemoryStore) Put(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memEntry{val: val}

	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		return "", false, nil
	}

	return e.val, true, nil
}

func (s *MemoryStore) AppendToList(_ context.Context, key, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		e = &memEntry{}
		s.entries[key] = e
	}

	e.list = append(e.list, val)

	return nil
}

func (s *MemoryStore) List(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		return nil, nil
	}

	return append([]string(nil), e.list...), nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		return nil
	}

	e.expireAt = s.now().Add(ttl)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

package method

import (
	"context"
	"sync"
)

// MemoryStore keeps sets in process memory behind a per-store mutex.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string][]*Method
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: map[string][]*Method{}}
}

// Load returns a copy of the user's set.
func (s *MemoryStore) Load(_ context.Context, userID string) (*Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewSet(userID, cloneAll(s.users[userID])), nil
}

// Mutate runs fn under the store lock and commits on success.
func (s *MemoryStore) Mutate(ctx context.Context, userID string, fn func(*Set) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := NewSet(userID, cloneAll(s.users[userID]))
	if err := fn(set); err != nil {
		return err
	}
	if len(set.Changed()) > 0 {
		s.users[userID] = cloneAll(set.All())
	}
	return nil
}

package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/decision-ledger/domain/resource"
)

// SessionStore is an in-memory implementation of resource.SessionStore.
type SessionStore struct {
	sessions map[string]struct{}
	mu       sync.RWMutex
}

// NewSessionStore creates a store pre-populated with ids.
func NewSessionStore(ids ...string) *SessionStore {
	s := &SessionStore{sessions: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.sessions[id] = struct{}{}
	}
	return s
}

// Register records id.
func (s *SessionStore) Register(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[id] = struct{}{}
	s.mu.Unlock()
	return nil
}

// Exists reports whether id was registered.
func (s *SessionStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.sessions[id]
	s.mu.RUnlock()
	return ok, nil
}

var _ resource.SessionStore = (*SessionStore)(nil)

package store

import (
	"sync"

	"github.com/google/uuid"
)

// MemorySessionStore keeps sessions in-process; used by tests and the
// "memory" storage mode.
type MemorySessionStore struct {
	mu   sync.RWMutex
	sess map[string]uint
}

// NewMemorySessionStore initializes an empty session map.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sess: make(map[string]uint)}
}

// NewSession stores a fresh token for the user.
func (s *MemorySessionStore) NewSession(userID uint) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess[token] = userID
	return token, nil
}

// GetUserIDByToken resolves a token to a user ID.
func (s *MemorySessionStore) GetUserIDByToken(token string) (uint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sess[token]
	return id, ok, nil
}

// DeleteSession removes a token.
func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sess, token)
	return nil
}

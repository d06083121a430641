package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for dev mode and tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	byHash map[string]*Row
	byID   map[string]*Row
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]*Row),
		byID:   make(map[string]*Row),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := row
	s.byHash[row.TokenHash] = &stored
	s.byID[row.SessionID] = &stored
	return nil
}

// GetByTokenHash implements Store.
func (s *MemoryStore) GetByTokenHash(_ context.Context, hash string) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.byHash[hash]
	if !ok {
		return Row{}, ErrSessionNotFound
	}
	return *row, nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(_ context.Context, now time.Time, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	row.LastActivity = now
	return nil
}

// Revoke implements Store (idempotent, first revocation timestamp wins).
func (s *MemoryStore) Revoke(_ context.Context, now time.Time, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.byID[sessionID]
	if !ok {
		return nil
	}
	if !row.Revoked {
		row.Revoked = true
		revoked := now
		row.RevokedAt = &revoked
	}
	return nil
}

package identity

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used for dev mode and tests.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account // keyed by user id
	byEmail  map[string]string   // normalized email -> user id
	byPhone  map[string]string   // normalized phone -> user id
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		byEmail:  make(map[string]string),
		byPhone:  make(map[string]string),
	}
}

// Add registers a pre-existing user. A blank ID gets a fresh ULID.
// Returns the stored user.
func (s *MemoryStore) Add(u User) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = ulid.Make().String()
	}
	s.accounts[u.ID] = &Account{User: u}
	if u.Email != "" {
		s.byEmail[contactKey(u.Email, KindEmail)] = u.ID
	}
	if u.Phone != "" {
		s.byPhone[contactKey(u.Phone, KindPhone)] = u.ID
	}
	return u
}

// contactKey canonicalizes a seeded value the same way lookups are
// normalized, so mixed-case or formatted seeds stay findable.
func contactKey(raw string, kind ContactKind) string {
	c, err := NormalizeContact(raw, "")
	if err != nil || c.Kind != kind {
		return raw
	}
	return c.Value
}

// FindByContact implements Store.
func (s *MemoryStore) FindByContact(_ context.Context, c Contact) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	var ok bool
	switch c.Kind {
	case KindEmail:
		id, ok = s.byEmail[c.Value]
	case KindPhone:
		id, ok = s.byPhone[c.Value]
	}
	if !ok {
		return Account{}, OpError{Op: "identity.FindByContact", Kind: ErrNotFound}
	}
	return *s.accounts[id], nil
}

// GetUserByID implements Store.
func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	return acct.User, nil
}

// SetCode implements Store.
func (s *MemoryStore) SetCode(_ context.Context, userID, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return OpError{Op: "identity.SetCode", Kind: ErrNotFound}
	}
	issued := now
	acct.Code = code
	acct.CodeIssuedAt = &issued
	return nil
}

// ClearCode implements Store.
func (s *MemoryStore) ClearCode(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return OpError{Op: "identity.ClearCode", Kind: ErrNotFound}
	}
	acct.Code = ""
	acct.CodeIssuedAt = nil
	return nil
}

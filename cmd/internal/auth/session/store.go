package session

import (
	"context"
	"time"
)

// Row mirrors a stored session record.
//
// Sessions are immutable except for LastActivity (advanced on validation)
// and the revoked fields (set once, false -> true).
type Row struct {
	SessionID    string
	UserID       string
	TokenHash    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	Revoked      bool
	RevokedAt    *time.Time
	IP           string
}

// ActiveAt reports whether the session is valid at the given instant.
func (r Row) ActiveAt(now time.Time) bool {
	return !r.Revoked && r.ExpiresAt.After(now)
}

// Store abstracts persistence for session state.
//
// Lookups are content-addressed by token hash; implementations never see
// the plaintext bearer token.
type Store interface {
	// Create persists a new session row. The row must be durable before
	// the plaintext token is handed to the client.
	Create(ctx context.Context, row Row) error

	// GetByTokenHash loads a session row by its bearer-token digest.
	// Returns ErrSessionNotFound when no row matches.
	GetByTokenHash(ctx context.Context, hash string) (Row, error)

	// Touch advances last_activity for a session.
	Touch(ctx context.Context, now time.Time, sessionID string) error

	// Revoke marks a session revoked (idempotent; the first revocation
	// timestamp wins).
	Revoke(ctx context.Context, now time.Time, sessionID string) error
}

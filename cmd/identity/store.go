package identity

import (
	"context"
	"time"
)

// User is the minimal profile projection returned to authenticated clients.
type User struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	UsageTokens int
}

// Account is a user row together with its pending one-time code.
// The code slot is single-valued: issuing a new code overwrites the old one.
type Account struct {
	User User

	// Code is the pending one-time code ("" when none).
	Code string
	// CodeIssuedAt is when the pending code was written (nil when none).
	CodeIssuedAt *time.Time
}

// Store abstracts persistence for accounts.
//
// Accounts are pre-existing: this subsystem never creates them.
// Implementations must key lookups on the normalized contact value.
type Store interface {
	// FindByContact loads the account matching a normalized contact.
	// Returns ErrNotFound when no account matches.
	FindByContact(ctx context.Context, c Contact) (Account, error)

	// GetUserByID loads the profile projection for a user id.
	GetUserByID(ctx context.Context, id string) (User, error)

	// SetCode overwrites the account's pending one-time code.
	SetCode(ctx context.Context, userID, code string, now time.Time) error

	// ClearCode removes the account's pending one-time code (single-use enforcement).
	ClearCode(ctx context.Context, userID string) error
}

package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"codegate/cmd/identity"
	"codegate/cmd/security/token"
)

// Service implements the high-level session operations for codegate.
//
// It redeems one-time codes into sessions, validates and syncs bearer
// tokens, and revokes sessions. The account store supplies the user
// projection linked to each session.
type Service struct {
	cfg   Config
	users identity.Store
	store Store
}

// Created is the result of redeeming a one-time code.
// Token is the plaintext bearer token; this is the only time it ever
// leaves the server.
type Created struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	User      identity.User
}

// Synced is the result of a cross-domain sync check. Token echoes the
// presented plaintext token back for re-propagation by the caller.
type Synced struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
	User      identity.User
}

// NewService constructs a Service with the provided configuration and stores.
func NewService(cfg Config, users identity.Store, store Store) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultConfig().CodeTTL
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = DefaultConfig().TokenBytes
	}
	if cfg.SessionIDBytes <= 0 {
		cfg.SessionIDBytes = DefaultConfig().SessionIDBytes
	}
	return &Service{cfg: cfg, users: users, store: store}
}

// VerifyCode redeems a one-time code for a new session.
//
// Account-lookup failures surface as identity.ErrNotFound; a missing,
// expired, or mismatched code surfaces as ErrBadCode. No lockout state is
// tracked here: rate limiting at the API layer is the only throttle.
//
// The session row is persisted before the plaintext token is returned, so
// a token can never be presented ahead of its own record.
func (s *Service) VerifyCode(ctx context.Context, now time.Time, c identity.Contact, code string, ip string) (Created, error) {
	acct, err := s.users.FindByContact(ctx, c)
	if err != nil {
		return Created{}, err
	}

	if !s.codeMatches(acct, code, now) {
		return Created{}, ErrBadCode
	}

	plain, hash, err := newBearerToken(s.cfg.TokenBytes)
	if err != nil {
		return Created{}, err
	}
	sessionID, err := newSessionID(s.cfg.SessionIDBytes)
	if err != nil {
		return Created{}, err
	}

	row := Row{
		SessionID:    sessionID,
		UserID:       acct.User.ID,
		TokenHash:    hash,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
		LastActivity: now,
		IP:           ip,
	}
	if err := s.store.Create(ctx, row); err != nil {
		return Created{}, err
	}

	// Single-use enforcement. Best-effort: the code slot is idempotently
	// overwritten on the next request anyway.
	_ = s.users.ClearCode(ctx, acct.User.ID)

	return Created{
		Token:     plain,
		SessionID: sessionID,
		ExpiresAt: row.ExpiresAt,
		User:      acct.User,
	}, nil
}

func (s *Service) codeMatches(acct identity.Account, submitted string, now time.Time) bool {
	submitted = strings.TrimSpace(submitted)
	if acct.Code == "" || submitted == "" {
		return false
	}
	if acct.CodeIssuedAt == nil || now.Sub(*acct.CodeIssuedAt) > s.cfg.CodeTTL {
		return false
	}
	stored := identity.PadCode(acct.Code)
	if len(stored) != len(submitted) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}

// Validate checks a bearer token and advances last_activity on success.
func (s *Service) Validate(ctx context.Context, now time.Time, tokenPlain string) (identity.User, error) {
	row, err := s.activeRow(ctx, now, tokenPlain)
	if err != nil {
		return identity.User{}, err
	}

	if err := s.store.Touch(ctx, now, row.SessionID); err != nil {
		return identity.User{}, err
	}

	return s.users.GetUserByID(ctx, row.UserID)
}

// Sync checks a bearer token without touching last_activity and echoes the
// plaintext token back for cross-domain re-propagation.
func (s *Service) Sync(ctx context.Context, now time.Time, tokenPlain string) (Synced, error) {
	row, err := s.activeRow(ctx, now, tokenPlain)
	if err != nil {
		return Synced{}, err
	}

	user, err := s.users.GetUserByID(ctx, row.UserID)
	if err != nil {
		return Synced{}, err
	}

	return Synced{
		Token:     tokenPlain,
		SessionID: row.SessionID,
		ExpiresAt: row.ExpiresAt,
		User:      user,
	}, nil
}

// Revoke revokes the session behind a bearer token and returns its session
// id (empty when the token matched nothing). Unknown and already-revoked
// tokens are not errors: logout must never fail observably.
func (s *Service) Revoke(ctx context.Context, now time.Time, tokenPlain string) (string, error) {
	tokenPlain = strings.TrimSpace(tokenPlain)
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return "", nil
	}

	hash := token.HashBearerTokenHex(tokenPlain)
	row, err := s.store.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", nil
		}
		return "", err
	}

	if err := s.store.Revoke(ctx, now, row.SessionID); err != nil {
		return "", err
	}
	return row.SessionID, nil
}

func (s *Service) activeRow(ctx context.Context, now time.Time, tokenPlain string) (Row, error) {
	tokenPlain = strings.TrimSpace(tokenPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return Row{}, ErrSessionNotFound
	}

	hash := token.HashBearerTokenHex(tokenPlain)
	row, err := s.store.GetByTokenHash(ctx, hash)
	if err != nil {
		return Row{}, err
	}

	if row.Revoked {
		return Row{}, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return Row{}, ErrSessionExpired
	}
	return row, nil
}

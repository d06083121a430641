package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (codegate.sessions).
// The pgx pool is owned by the caller; this store must NOT close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		schema = "codegate"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier")
	}
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return &PostgresStore{pool: pool, schema: schema}, nil
}

func (s *PostgresStore) table() string {
	return fmt.Sprintf("%q.sessions", s.schema)
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, row Row) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (
			session_id, user_id, access_token_hash,
			created_at, expires_at, last_activity,
			revoked, revoked_at, ip_address
		) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			false, NULL, $7
		)
	`, s.table()),
		row.SessionID, row.UserID, row.TokenHash,
		row.CreatedAt, row.ExpiresAt, row.LastActivity,
		nullIfEmpty(row.IP),
	)
	return err
}

// GetByTokenHash loads a session row by its bearer-token digest.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, hash string) (Row, error) {
	var row Row
	var ip *string

	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			session_id, user_id, access_token_hash,
			created_at, expires_at, last_activity,
			revoked, revoked_at, ip_address
		FROM %s
		WHERE access_token_hash = $1
	`, s.table()), hash).Scan(
		&row.SessionID,
		&row.UserID,
		&row.TokenHash,
		&row.CreatedAt,
		&row.ExpiresAt,
		&row.LastActivity,
		&row.Revoked,
		&row.RevokedAt,
		&ip,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	if ip != nil {
		row.IP = *ip
	}

	return row, nil
}

// Touch updates last_activity for a session.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET last_activity = $2
		WHERE session_id = $1
	`, s.table()), sessionID, now)
	return err
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET revoked = true,
		    revoked_at = COALESCE(revoked_at, $2)
		WHERE session_id = $1
	`, s.table()), sessionID, now)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

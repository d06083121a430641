package identity

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

// PostgresStore implements account persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are validated to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the account store (default "codegate").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "codegate",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) usersTable() string {
	return fmt.Sprintf("%q.users", s.schema)
}

// FindByContact implements Store.
func (s *PostgresStore) FindByContact(ctx context.Context, c Contact) (Account, error) {
	const op = "identity.FindByContact"

	column := "email"
	if c.Kind == KindPhone {
		column = "telephone_number"
	}

	var acct Account
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(telephone_number, ''), COALESCE(tokens, 0),
		       COALESCE(code, ''), code_issued_at
		FROM %s
		WHERE %s = $1
	`, s.usersTable(), column), c.Value).Scan(
		&acct.User.ID,
		&acct.User.Email,
		&acct.User.FirstName,
		&acct.User.LastName,
		&acct.User.Phone,
		&acct.User.UsageTokens,
		&acct.Code,
		&acct.CodeIssuedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}

// GetUserByID implements Store.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	var u User
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, COALESCE(email, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(telephone_number, ''), COALESCE(tokens, 0)
		FROM %s
		WHERE id = $1
	`, s.usersTable()), id).Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.UsageTokens,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// SetCode implements Store. The code slot is single-valued and idempotently overwritten.
func (s *PostgresStore) SetCode(ctx context.Context, userID, code string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET code = $2, code_issued_at = $3
		WHERE id = $1
	`, s.usersTable()), userID, code, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "identity.SetCode", Kind: ErrNotFound}
	}
	return nil
}

// ClearCode implements Store (idempotent).
func (s *PostgresStore) ClearCode(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE %s
		SET code = NULL, code_issued_at = NULL
		WHERE id = $1
	`, s.usersTable()), userID)
	return err
}

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"codegate/cmd/internal/recordstore"
)

// RecordStore implements Store on top of the external tabular record store.
//
// The user table is pre-existing; this store only reads accounts and mutates
// the single-slot code columns.
type RecordStore struct {
	client *recordstore.Client
	table  string
}

// NewRecordStore wraps a record-store client around the given user table id.
func NewRecordStore(client *recordstore.Client, usersTable string) (*RecordStore, error) {
	if client == nil {
		return nil, errors.New("identity: nil record store client")
	}
	if usersTable == "" {
		return nil, errors.New("identity: empty users table")
	}
	return &RecordStore{client: client, table: usersTable}, nil
}

// userRow mirrors the user table columns this subsystem touches.
// Code is a json.Number because numeric columns drop leading zeros;
// comparison happens on the zero-padded rendering (PadCode).
type userRow struct {
	ID           json.Number `json:"Id"`
	Email        string      `json:"email"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	Phone        string      `json:"telephone_number"`
	Tokens       int         `json:"tokens"`
	Code         json.Number `json:"code"`
	CodeIssuedAt *time.Time  `json:"code_issued_at"`
}

func (r userRow) toAccount() Account {
	acct := Account{
		User: User{
			ID:          r.ID.String(),
			Email:       r.Email,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Phone:       r.Phone,
			UsageTokens: r.Tokens,
		},
		CodeIssuedAt: r.CodeIssuedAt,
	}
	if r.Code.String() != "" {
		acct.Code = r.Code.String()
	}
	return acct
}

func contactColumn(kind ContactKind) string {
	if kind == KindPhone {
		return "telephone_number"
	}
	return "email"
}

// FindByContact implements Store.
func (s *RecordStore) FindByContact(ctx context.Context, c Contact) (Account, error) {
	const op = "identity.FindByContact"

	q := url.Values{}
	q.Set("where", recordstore.Eq(contactColumn(c.Kind), c.Value))

	var rows []userRow
	if err := s.client.List(ctx, s.table, q, &rows); err != nil {
		return Account{}, err
	}
	if len(rows) == 0 {
		return Account{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return rows[0].toAccount(), nil
}

// GetUserByID implements Store.
func (s *RecordStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	q := url.Values{}
	q.Set("where", recordstore.Eq("Id", id))

	var rows []userRow
	if err := s.client.List(ctx, s.table, q, &rows); err != nil {
		return User{}, err
	}
	if len(rows) == 0 {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	return rows[0].toAccount().User, nil
}

// SetCode implements Store.
func (s *RecordStore) SetCode(ctx context.Context, userID, code string, now time.Time) error {
	return s.client.Update(ctx, s.table, map[string]any{
		"Id":             json.Number(userID),
		"code":           code,
		"code_issued_at": now.UTC().Format(time.RFC3339),
	})
}

// ClearCode implements Store.
func (s *RecordStore) ClearCode(ctx context.Context, userID string) error {
	return s.client.Update(ctx, s.table, map[string]any{
		"Id":             json.Number(userID),
		"code":           nil,
		"code_issued_at": nil,
	})
}

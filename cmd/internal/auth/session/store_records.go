package session

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
// Each created session is additionally attached to its user row via the
// table's link relation; the user_id column stays authoritative for reads.
type RecordStore struct {
	client    *recordstore.Client
	table     string
	linkField string
}

// NewRecordStore wraps a record-store client around the given session table.
// linkField may be empty to skip link maintenance.
func NewRecordStore(client *recordstore.Client, sessionsTable, linkField string) (*RecordStore, error) {
	if client == nil {
		return nil, errors.New("session: nil record store client")
	}
	if sessionsTable == "" {
		return nil, errors.New("session: empty sessions table")
	}
	return &RecordStore{client: client, table: sessionsTable, linkField: linkField}, nil
}

type sessionRow struct {
	RecordID     json.Number `json:"Id,omitempty"`
	SessionID    string      `json:"session_id"`
	UserID       json.Number `json:"user_id"`
	TokenHash    string      `json:"access_token_hash"`
	CreatedAt    time.Time   `json:"created_at"`
	ExpiresAt    time.Time   `json:"expires_at"`
	LastActivity time.Time   `json:"last_activity"`
	Revoked      bool        `json:"revoked"`
	RevokedAt    *time.Time  `json:"revoked_at"`
	IP           string      `json:"ip_address"`
}

func (r sessionRow) toRow() Row {
	return Row{
		SessionID:    r.SessionID,
		UserID:       r.UserID.String(),
		TokenHash:    r.TokenHash,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		LastActivity: r.LastActivity,
		Revoked:      r.Revoked,
		RevokedAt:    r.RevokedAt,
		IP:           r.IP,
	}
}

// Create implements Store. The link to the user row is best-effort: the
// user_id column is written in the same request and is what reads use.
func (s *RecordStore) Create(ctx context.Context, row Row) error {
	body := sessionRow{
		SessionID:    row.SessionID,
		UserID:       json.Number(row.UserID),
		TokenHash:    row.TokenHash,
		CreatedAt:    row.CreatedAt.UTC(),
		ExpiresAt:    row.ExpiresAt.UTC(),
		LastActivity: row.LastActivity.UTC(),
		IP:           row.IP,
	}

	var created sessionRow
	if err := s.client.Create(ctx, s.table, body, &created); err != nil {
		return err
	}

	if s.linkField != "" && created.RecordID.String() != "" {
		_ = s.client.Link(ctx, s.table, s.linkField, created.RecordID.String(),
			[]recordstore.Ref{{ID: json.Number(row.UserID)}})
	}
	return nil
}

// GetByTokenHash implements Store.
func (s *RecordStore) GetByTokenHash(ctx context.Context, hash string) (Row, error) {
	row, err := s.findByHash(ctx, hash)
	if err != nil {
		return Row{}, err
	}
	return row.toRow(), nil
}

// Touch implements Store.
func (s *RecordStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	id, err := s.recordID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.client.Update(ctx, s.table, map[string]any{
		"Id":            id,
		"last_activity": now.UTC().Format(time.RFC3339),
	})
}

// Revoke implements Store.
func (s *RecordStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	id, err := s.recordID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.client.Update(ctx, s.table, map[string]any{
		"Id":         id,
		"revoked":    true,
		"revoked_at": now.UTC().Format(time.RFC3339),
	})
}

func (s *RecordStore) findByHash(ctx context.Context, hash string) (sessionRow, error) {
	q := url.Values{}
	q.Set("where", recordstore.Eq("access_token_hash", hash))

	var rows []sessionRow
	if err := s.client.List(ctx, s.table, q, &rows); err != nil {
		return sessionRow{}, err
	}
	if len(rows) == 0 {
		return sessionRow{}, ErrSessionNotFound
	}
	return rows[0], nil
}

func (s *RecordStore) recordID(ctx context.Context, sessionID string) (json.Number, error) {
	q := url.Values{}
	q.Set("where", recordstore.Eq("session_id", sessionID))

	var rows []sessionRow
	if err := s.client.List(ctx, s.table, q, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", ErrSessionNotFound
	}
	return rows[0].RecordID, nil
}

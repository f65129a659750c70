package draft

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
)

var ErrNotFound = errors.New("draft not found")

// Store persists drafts. Every row belongs to one Owner.
type Store interface {
	Save(ctx context.Context, owner Owner, d *Draft) error
	Load(ctx context.Context, owner Owner, formType string) (*Draft, error)
	Delete(ctx context.Context, owner Owner, formType string) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Stale, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stale identifies a draft that was not saved recently.
type Stale struct {
	TenantID string    `json:"tenant_id"`
	UserID   string    `json:"user_id"`
	FormType string    `json:"form_type"`
	SavedAt  time.Time `json:"saved_at"`
}

// sqliteFull is SQLITE_FULL, returned when the database or disk is full.
const sqliteFull = 13

var schema = []string{`
CREATE TABLE IF NOT EXISTS form_drafts (
	tenant_id TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	form_type TEXT NOT NULL,
	body      TEXT NOT NULL,
	saved_at  INTEGER NOT NULL,
	PRIMARY KEY (tenant_id, user_id, form_type)
)`,
	`CREATE INDEX IF NOT EXISTS form_drafts_saved_at ON form_drafts (saved_at)`,
}

// SQLiteStore keeps one row per owner and form type in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the draft database at path. Use ":memory:"
// for an ephemeral store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open draft db: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between auto-save ticks
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create drafts table: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, owner Owner, d *Draft) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO form_drafts (tenant_id, user_id, form_type, body, saved_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id, form_type) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
		owner.TenantID, owner.UserID, d.FormType, string(body), d.SavedAt.UnixMilli())
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, owner Owner, formType string) (*Draft, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM form_drafts WHERE tenant_id = ? AND user_id = ? AND form_type = ?`,
		owner.TenantID, owner.UserID, formType).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var d Draft
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	d.Snapshot = d.Snapshot.Normalize()
	return &d, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, owner Owner, formType string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM form_drafts WHERE tenant_id = ? AND user_id = ? AND form_type = ?`,
		owner.TenantID, owner.UserID, formType)
	return err
}

func (s *SQLiteStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Stale, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, user_id, form_type, saved_at FROM form_drafts WHERE saved_at < ? ORDER BY saved_at`, cutoff.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stale
	for rows.Next() {
		var st Stale
		var ms int64
		if err := rows.Scan(&st.TenantID, &st.UserID, &st.FormType, &ms); err != nil {
			return nil, err
		}
		st.SavedAt = time.UnixMilli(ms).UTC()
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_drafts WHERE saved_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// isStorageFull reports whether err means the device ran out of space.
func isStorageFull(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqliteFull {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "database or disk is full")
}

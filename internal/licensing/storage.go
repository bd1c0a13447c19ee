package licensing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/storepos/internal/license"
)

// Schema creates the licence tables. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS license_record (
    id              INTEGER PRIMARY KEY CHECK (id = 1),
    kind            TEXT NOT NULL,
    status          TEXT NOT NULL,
    installed_at    TIMESTAMPTZ NOT NULL,
    expires_at      TIMESTAMPTZ NOT NULL,
    activation_code TEXT,
    activated_at    TIMESTAMPTZ,
    first_run_seen  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS activation_code (
    code      TEXT PRIMARY KEY,
    kind      TEXT NOT NULL,
    issued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    used_at   TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS activation_history (
    id           UUID PRIMARY KEY,
    code         TEXT NOT NULL REFERENCES activation_code(code),
    kind         TEXT NOT NULL,
    days_added   INTEGER NOT NULL,
    activated_at TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL
);`

// Storage is the Postgres Repository.
type Storage struct {
	db *sql.DB
}

func NewStorage(db *sql.DB) *Storage { return &Storage{db: db} }

var _ Repository = (*Storage)(nil)

// Migrate applies Schema.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate license schema: %w", err)
	}
	return nil
}

// GetRecord returns the singleton row or nil if not present.
func (s *Storage) GetRecord(ctx context.Context) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, kind, status, installed_at, expires_at, activation_code, activated_at, first_run_seen, created_at, updated_at FROM license_record WHERE id=1`)

	var r Record
	var code sql.NullString
	var activated sql.NullTime
	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.InstalledAt, &r.ExpiresAt, &code, &activated, &r.FirstRunSeen, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query license_record: %w", err)
	}
	if code.Valid {
		r.ActivationCode = &code.String
	}
	if activated.Valid {
		r.ActivatedAt = &activated.Time
	}
	return &r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertRecord = `INSERT INTO license_record (id, kind, status, installed_at, expires_at, activation_code, activated_at, first_run_seen)
        VALUES (1, $1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            kind=EXCLUDED.kind,
            status=EXCLUDED.status,
            installed_at=EXCLUDED.installed_at,
            expires_at=EXCLUDED.expires_at,
            activation_code=EXCLUDED.activation_code,
            activated_at=EXCLUDED.activated_at,
            first_run_seen=license_record.first_run_seen OR EXCLUDED.first_run_seen,
            updated_at=now();`

func upsert(ctx context.Context, ex execer, r *Record) error {
	if r == nil {
		return errors.New("nil Record")
	}
	r.ID = 1
	_, err := ex.ExecContext(ctx, upsertRecord, r.Kind, r.Status, r.InstalledAt, r.ExpiresAt, r.ActivationCode, r.ActivatedAt, r.FirstRunSeen)
	if err != nil {
		return fmt.Errorf("upsert license_record: %w", err)
	}
	return nil
}

// UpsertRecord inserts or updates the singleton record.
func (s *Storage) UpsertRecord(ctx context.Context, r *Record) error {
	return upsert(ctx, s.db, r)
}

func (s *Storage) UpdateStatus(ctx context.Context, status license.Status) error {
	_, err := s.db.ExecContext(ctx, `UPDATE license_record SET status=$1, updated_at=now() WHERE id=1`, status)
	if err != nil {
		return fmt.Errorf("update license status: %w", err)
	}
	return nil
}

func (s *Storage) SetFirstRunSeen(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE license_record SET first_run_seen=TRUE, updated_at=now() WHERE id=1`)
	if err != nil {
		return fmt.Errorf("mark first run seen: %w", err)
	}
	return nil
}

func (s *Storage) GetCode(ctx context.Context, code string) (*ActivationCode, error) {
	var c ActivationCode
	var used sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT code, kind, issued_at, used_at FROM activation_code WHERE code=$1`, code).
		Scan(&c.Code, &c.Kind, &c.IssuedAt, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query activation_code: %w", err)
	}
	if used.Valid {
		c.UsedAt = &used.Time
	}
	return &c, nil
}

func (s *Storage) IssueCode(ctx context.Context, c ActivationCode) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO activation_code (code, kind, issued_at) VALUES ($1, $2, $3)`, c.Code, c.Kind, c.IssuedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrCodeExists
	}
	if err != nil {
		return fmt.Errorf("insert activation_code: %w", err)
	}
	return nil
}

// Redeem claims the code with a conditional update so two concurrent
// activations cannot both succeed.
func (s *Storage) Redeem(ctx context.Context, code string, r *Record, entry HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE activation_code SET used_at=$2 WHERE code=$1 AND used_at IS NULL`, code, entry.ActivatedAt)
	if err != nil {
		return fmt.Errorf("claim activation_code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCodeUsed
	}
	if err := upsert(ctx, tx, r); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activation_history (id, code, kind, days_added, activated_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.Code, entry.Kind, entry.DaysAdded, entry.ActivatedAt, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert activation_history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem: %w", err)
	}
	return nil
}

func (s *Storage) History(ctx context.Context) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, kind, days_added, activated_at, expires_at FROM activation_history ORDER BY activated_at`)
	if err != nil {
		return nil, fmt.Errorf("query activation_history: %w", err)
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Code, &h.Kind, &h.DaysAdded, &h.ActivatedAt, &h.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan activation_history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

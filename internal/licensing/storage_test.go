package licensing

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/storepos/internal/license"
)

// getDatabaseURL reads DATABASE_URL from env or a .env file (best effort).
func getDatabaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	f, err := os.Open(".env")
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "DATABASE_URL=") {
			return strings.Trim(strings.TrimPrefix(line, "DATABASE_URL="), "\"'")
		}
	}
	return ""
}

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	dsn := getDatabaseURL()
	if dsn == "" {
		t.Skip("DATABASE_URL not set (skipping DB-backed storage test)")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping db: %v", err)
	}
	s := NewStorage(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, q := range []string{"DELETE FROM activation_history", "DELETE FROM activation_code", "DELETE FROM license_record"} {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	return s
}

func TestStorage(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	got, err := s.GetRecord(ctx)
	if err != nil {
		t.Fatalf("GetRecord initial: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no record, got %+v", got)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := &Record{Kind: KindTrial, Status: license.StatusActive, InstalledAt: now, ExpiresAt: now.AddDate(0, 0, TrialDays)}
	if err := s.UpsertRecord(ctx, rec); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}
	if err := s.UpdateStatus(ctx, license.StatusGrace); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := s.SetFirstRunSeen(ctx); err != nil {
		t.Fatalf("SetFirstRunSeen: %v", err)
	}
	got, err = s.GetRecord(ctx)
	if err != nil || got == nil {
		t.Fatalf("GetRecord after upsert: %v %+v", err, got)
	}
	if got.Status != license.StatusGrace || !got.FirstRunSeen || got.Kind != KindTrial {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Fatalf("expires_at mismatch: %v vs %v", got.ExpiresAt, rec.ExpiresAt)
	}

	// a stale full-record write must not bring the welcome back
	stale := *rec
	stale.FirstRunSeen = false
	if err := s.UpsertRecord(ctx, &stale); err != nil {
		t.Fatalf("UpsertRecord stale: %v", err)
	}
	got, err = s.GetRecord(ctx)
	if err != nil || got == nil || !got.FirstRunSeen {
		t.Fatalf("first_run_seen reverted: %v %+v", err, got)
	}
}

func TestStorageRedeem(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.IssueCode(ctx, ActivationCode{Code: "POS-M-TEST-0000-0001", Kind: KindMonthly, IssuedAt: now}); err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if err := s.IssueCode(ctx, ActivationCode{Code: "POS-M-TEST-0000-0001", Kind: KindMonthly, IssuedAt: now}); err != ErrCodeExists {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}

	code := "POS-M-TEST-0000-0001"
	rec := &Record{Kind: KindMonthly, Status: license.StatusActive, InstalledAt: now, ExpiresAt: now.AddDate(0, 0, 30), ActivationCode: &code, ActivatedAt: &now}
	entry := HistoryEntry{ID: uuid.New(), Code: code, Kind: KindMonthly, DaysAdded: 30, ActivatedAt: now, ExpiresAt: rec.ExpiresAt}
	if err := s.Redeem(ctx, code, rec, entry); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	entry.ID = uuid.New()
	if err := s.Redeem(ctx, code, rec, entry); err != ErrCodeUsed {
		t.Fatalf("expected ErrCodeUsed, got %v", err)
	}

	ac, err := s.GetCode(ctx, code)
	if err != nil || ac == nil || !ac.Used() {
		t.Fatalf("code not marked used: %v %+v", err, ac)
	}
	hist, err := s.History(ctx)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history: %v %+v", err, hist)
	}
	got, _ := s.GetRecord(ctx)
	if got.ActivationCode == nil || *got.ActivationCode != code {
		t.Fatalf("record not updated: %+v", got)
	}
}

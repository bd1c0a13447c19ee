package licensing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/storepos/internal/license"
)

// Repository persists the licence record, issued codes and activation
// history.
type Repository interface {
	// GetRecord returns the singleton record or nil if none exists yet.
	GetRecord(ctx context.Context) (*Record, error)
	// UpsertRecord inserts or replaces the singleton record.
	UpsertRecord(ctx context.Context, r *Record) error
	// UpdateStatus persists a recomputed status.
	UpdateStatus(ctx context.Context, status license.Status) error
	// SetFirstRunSeen sets the first-run flag. Setting it twice is fine.
	SetFirstRunSeen(ctx context.Context) error

	// GetCode returns an issued code or nil.
	GetCode(ctx context.Context, code string) (*ActivationCode, error)
	// IssueCode registers a code as redeemable.
	IssueCode(ctx context.Context, c ActivationCode) error
	// Redeem marks the code used, replaces the record and appends entry in
	// one transaction. It returns ErrCodeUsed if the code was redeemed
	// concurrently.
	Redeem(ctx context.Context, code string, r *Record, entry HistoryEntry) error
	// History lists activations, oldest first.
	History(ctx context.Context) ([]HistoryEntry, error)
}

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	record  *Record
	codes   map[string]ActivationCode
	history []HistoryEntry
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{codes: make(map[string]ActivationCode), now: time.Now}
}

var _ Repository = (*MemoryRepository)(nil)

func (m *MemoryRepository) GetRecord(context.Context) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, nil
	}
	cp := *m.record
	return &cp, nil
}

func (m *MemoryRepository) UpsertRecord(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(r)
	return nil
}

func (m *MemoryRepository) upsertLocked(r *Record) {
	cp := *r
	cp.ID = 1
	if m.record == nil {
		cp.CreatedAt = m.now()
	} else {
		cp.CreatedAt = m.record.CreatedAt
		// first_run_seen never reverts
		cp.FirstRunSeen = cp.FirstRunSeen || m.record.FirstRunSeen
	}
	cp.UpdatedAt = m.now()
	m.record = &cp
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, status license.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record != nil {
		m.record.Status = status
		m.record.UpdatedAt = m.now()
	}
	return nil
}

func (m *MemoryRepository) SetFirstRunSeen(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record != nil {
		m.record.FirstRunSeen = true
	}
	return nil
}

func (m *MemoryRepository) GetCode(_ context.Context, code string) (*ActivationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryRepository) IssueCode(_ context.Context, c ActivationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[c.Code]; ok {
		return ErrCodeExists
	}
	m.codes[c.Code] = c
	return nil
}

func (m *MemoryRepository) Redeem(_ context.Context, code string, r *Record, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return ErrCodeNotFound
	}
	if c.Used() {
		return ErrCodeUsed
	}
	used := entry.ActivatedAt
	c.UsedAt = &used
	m.codes[code] = c
	m.upsertLocked(r)
	m.history = append(m.history, entry)
	return nil
}

func (m *MemoryRepository) History(context.Context) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]HistoryEntry(nil), m.history...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ActivatedAt.Before(out[j].ActivatedAt) })
	return out, nil
}

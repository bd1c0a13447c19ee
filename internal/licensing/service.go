package licensing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/storepos/internal/license"
)

// Outcome is the result of an activation attempt. A rejection is an Outcome
// with Success false, not an error.
type Outcome struct {
	Success bool
	Message string
	State   license.LicenseState
}

// Service owns the licence lifecycle on the server side.
type Service struct {
	repo  Repository
	clock quartz.Clock

	// serializes read-modify-write of the singleton record
	mu sync.Mutex
}

type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c quartz.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, clock: quartz.NewReal()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadOrInit returns the existing record or starts a trial.
func (s *Service) LoadOrInit(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadOrInitLocked(ctx)
}

func (s *Service) loadOrInitLocked(ctx context.Context) (*Record, error) {
	r, err := s.repo.GetRecord(ctx)
	if err != nil {
		return nil, err
	}
	if r != nil {
		return r, nil
	}
	now := s.clock.Now()
	r = &Record{
		Kind:        KindTrial,
		Status:      license.StatusActive,
		InstalledAt: now,
		ExpiresAt:   now.AddDate(0, 0, TrialDays),
	}
	if err := s.repo.UpsertRecord(ctx, r); err != nil {
		return nil, err
	}
	log.Info().Time("expires_at", r.ExpiresAt).Msg("trial started")
	return r, nil
}

// State computes the current licence state from the record and the clock.
func (s *Service) State(ctx context.Context) (license.LicenseState, error) {
	r, err := s.LoadOrInit(ctx)
	if err != nil {
		return license.LicenseState{}, err
	}
	return r.StateAt(s.clock.Now()), nil
}

// Reconcile recomputes the status and persists it when it changed.
func (s *Service) Reconcile(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.loadOrInitLocked(ctx)
	if err != nil {
		return false, err
	}
	st := r.StateAt(s.clock.Now())
	if st.Status == r.Status {
		return false, nil
	}
	if err := s.repo.UpdateStatus(ctx, st.Status); err != nil {
		return false, err
	}
	log.Info().
		Str("from", string(r.Status)).
		Str("to", string(st.Status)).
		Int("days_remaining", st.DaysRemaining).
		Msg("license status changed")
	return true, nil
}

// Activate redeems code. The code must already be normalized.
func (s *Service) Activate(ctx context.Context, code string) (Outcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Outcome{}, license.ErrEmptyCode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.loadOrInitLocked(ctx)
	if err != nil {
		return Outcome{}, err
	}
	now := s.clock.Now()
	reject := func(msg string) Outcome {
		return Outcome{Message: msg, State: r.StateAt(now)}
	}

	ac, err := s.repo.GetCode(ctx, code)
	if err != nil {
		return Outcome{}, err
	}
	if ac == nil || !ac.Kind.Valid() {
		log.Info().Str("code", maskCode(code)).Msg("activation rejected: unknown code")
		return reject(MsgInvalidCode), nil
	}
	if ac.Used() {
		log.Info().Str("code", maskCode(code)).Msg("activation rejected: code already used")
		return reject(MsgUsedCode), nil
	}

	days := ac.Kind.Days()
	next := *r
	next.Kind = ac.Kind
	next.Status = license.StatusActive
	next.ExpiresAt = now.AddDate(0, 0, days)
	next.ActivationCode = &code
	activatedAt := now
	next.ActivatedAt = &activatedAt

	entry := HistoryEntry{
		ID:          uuid.New(),
		Code:        code,
		Kind:        ac.Kind,
		DaysAdded:   days,
		ActivatedAt: now,
		ExpiresAt:   next.ExpiresAt,
	}
	if err := s.repo.Redeem(ctx, code, &next, entry); err != nil {
		if errors.Is(err, ErrCodeUsed) {
			return reject(MsgUsedCode), nil
		}
		if errors.Is(err, ErrCodeNotFound) {
			return reject(MsgInvalidCode), nil
		}
		return Outcome{}, err
	}
	log.Info().
		Str("kind", string(ac.Kind)).
		Str("history_id", entry.ID.String()).
		Time("expires_at", next.ExpiresAt).
		Msg("license activated")
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("License %s activated", ac.Kind),
		State:   next.StateAt(now),
	}, nil
}

// FirstRun reports whether the welcome has never been dismissed.
func (s *Service) FirstRun(ctx context.Context) (bool, error) {
	r, err := s.LoadOrInit(ctx)
	if err != nil {
		return false, err
	}
	return !r.FirstRunSeen, nil
}

// MarkFirstRunSeen clears the first-run flag. Repeated calls are no-ops.
func (s *Service) MarkFirstRunSeen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadOrInitLocked(ctx); err != nil {
		return err
	}
	return s.repo.SetFirstRunSeen(ctx)
}

// IssueCode registers an externally generated code as redeemable.
func (s *Service) IssueCode(ctx context.Context, code string, kind Kind) error {
	code = license.NormalizeCode(code)
	if code == "" {
		return license.ErrEmptyCode
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}
	return s.repo.IssueCode(ctx, ActivationCode{Code: code, Kind: kind, IssuedAt: s.clock.Now()})
}

// History returns past activations.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	return s.repo.History(ctx)
}

// maskCode keeps only the last segment for logs.
func maskCode(code string) string {
	if i := strings.LastIndex(code, "-"); i >= 0 {
		return "****" + code[i:]
	}
	if len(code) > 4 {
		return "****" + code[len(code)-4:]
	}
	return "****"
}

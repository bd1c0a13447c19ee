package license

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store owns the cached LicenseState and FirstRunState for the process.
// All mutations replace the cached value in one step under mu.
type Store struct {
	client Client

	mu       sync.RWMutex
	state    LicenseState
	known    bool
	firstRun FirstRunState

	lmu       sync.Mutex
	listeners []func(LicenseState)
}

func NewStore(client Client) *Store {
	return &Store{client: client}
}

// Current returns the cached state and whether one has ever been observed.
func (s *Store) Current() (LicenseState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.known
}

// FirstRun returns the cached first-run flag.
func (s *Store) FirstRun() FirstRunState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstRun
}

// OnChange registers fn to be called after the cached state changes value.
// Identical replacements do not notify.
func (s *Store) OnChange(fn func(LicenseState)) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Refresh queries the service and, on success, replaces the cached state and
// then asks the service to reconcile. A failed query keeps the previous
// value. A failed reconcile keeps the new value and returns a ReconcileError
// alongside it.
func (s *Store) Refresh(ctx context.Context) (LicenseState, error) {
	st, err := s.client.QueryState(ctx)
	if err != nil {
		prev, _ := s.Current()
		return prev, fmt.Errorf("query license state: %w", err)
	}
	s.replace(st)
	if err := s.client.Reconcile(ctx); err != nil {
		return st, ReconcileError{Err: err}
	}
	return st, nil
}

// SetFromActivation installs the state returned by a successful activation.
func (s *Store) SetFromActivation(st LicenseState) {
	s.replace(st)
}

// LoadFirstRun fetches the first-run flag. On failure the cached flag stays
// false so a flaky service never forces the welcome screens.
func (s *Store) LoadFirstRun(ctx context.Context) (FirstRunState, error) {
	first, err := s.client.QueryFirstRun(ctx)
	if err != nil {
		return s.FirstRun(), fmt.Errorf("query first run: %w", err)
	}
	s.mu.Lock()
	s.firstRun = FirstRunState{IsFirstRun: first}
	s.mu.Unlock()
	return FirstRunState{IsFirstRun: first}, nil
}

// MarkFirstRunSeen persists the "do not show again" choice and clears the
// cached flag once the service acknowledged it.
func (s *Store) MarkFirstRunSeen(ctx context.Context) error {
	if err := s.client.MarkFirstRunSeen(ctx); err != nil {
		return fmt.Errorf("mark first run seen: %w", err)
	}
	s.mu.Lock()
	s.firstRun = FirstRunState{IsFirstRun: false}
	s.mu.Unlock()
	return nil
}

func (s *Store) replace(st LicenseState) {
	s.mu.Lock()
	changed := !s.known || s.state != st
	s.state = st
	s.known = true
	s.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().
		Str("status", string(st.Status)).
		Str("type", string(st.LicenseType)).
		Int("days_remaining", st.DaysRemaining).
		Bool("read_only", st.ReadOnly).
		Msg("license state updated")

	s.lmu.Lock()
	listeners := append([]func(LicenseState){}, s.listeners...)
	s.lmu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

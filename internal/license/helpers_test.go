package license

import (
	"context"
	"errors"
	"sync"
)

var errUnreachable = errors.New("dial tcp 127.0.0.1:8890: connect: connection refused")

// fakeClient is an in-memory Client whose answers tests can change between calls.
type fakeClient struct {
	mu sync.Mutex

	state        LicenseState
	queryErr     error
	reconcileErr error
	activateResp ActivationResponse
	activateErr  error
	firstRun     bool
	firstRunErr  error
	markErr      error

	queries     int
	reconciles  int
	activations []string
	marks       int
}

func (f *fakeClient) QueryState(ctx context.Context) (LicenseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return LicenseState{}, f.queryErr
	}
	return f.state, nil
}

func (f *fakeClient) Reconcile(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciles++
	return f.reconcileErr
}

func (f *fakeClient) Activate(ctx context.Context, code string) (ActivationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations = append(f.activations, code)
	return f.activateResp, f.activateErr
}

func (f *fakeClient) QueryFirstRun(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstRun, f.firstRunErr
}

func (f *fakeClient) MarkFirstRunSeen(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks++
	if f.markErr != nil {
		return f.markErr
	}
	f.firstRun = false
	return nil
}

func (f *fakeClient) set(fn func(f *fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeClient) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func active(days int) LicenseState {
	return LicenseState{Status: StatusActive, LicenseType: TypeTrial, DaysRemaining: days}
}

func expired() LicenseState {
	return LicenseState{Status: StatusExpired, LicenseType: TypeTrial, DaysRemaining: -4, ReadOnly: true}
}

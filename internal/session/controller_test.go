package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/storepos/internal/license"
	"github.com/storepos/pkg/models"
)

type fakeClient struct {
	mu           sync.Mutex
	state        license.LicenseState
	queryErr     error
	firstRun     bool
	firstRunErr  error
	activateResp license.ActivationResponse
	queries      int
	marks        int
}

func (f *fakeClient) QueryState(context.Context) (license.LicenseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.state, f.queryErr
}

func (f *fakeClient) Reconcile(context.Context) error { return nil }

func (f *fakeClient) Activate(context.Context, string) (license.ActivationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activateResp, nil
}

func (f *fakeClient) QueryFirstRun(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.firstRun, f.firstRunErr
}

func (f *fakeClient) MarkFirstRunSeen(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks++
	f.firstRun = false
	return nil
}

func (f *fakeClient) setState(st license.LicenseState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func (f *fakeClient) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func trial(days int) license.LicenseState {
	return license.LicenseState{Status: license.StatusActive, LicenseType: license.TypeTrial, DaysRemaining: days}
}

func expiredTrial() license.LicenseState {
	return license.LicenseState{Status: license.StatusExpired, LicenseType: license.TypeTrial, DaysRemaining: -4, ReadOnly: true}
}

var cashier = models.User{ID: 2, Username: "maria", FullName: "Maria Lopez", RoleID: 2, Active: true}

type harness struct {
	ctx   context.Context
	clock *quartz.Mock
	trap  *quartz.Trap
	fc    *fakeClient
	store *license.Store
	c     *Controller
}

// newHarness builds a controller on a mock clock and starts it, returning
// once the verifier ticker is registered.
func newHarness(t *testing.T, fc *fakeClient) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().TickerFunc("license", "verifier")
	t.Cleanup(trap.Close)

	store := license.NewStore(fc)
	c := New(store, license.NewActivator(fc, store), license.NewGate(store), WithClock(mClock))
	h := &harness{ctx: ctx, clock: mClock, trap: trap, fc: fc, store: store, c: c}
	require.NoError(t, c.Start(ctx))
	h.releaseTicker(t)
	return h
}

func (h *harness) releaseTicker(t *testing.T) {
	t.Helper()
	h.trap.MustWait(h.ctx).MustRelease(h.ctx)
}

func (h *harness) tick() {
	h.clock.Advance(license.VerifyInterval).MustWait(h.ctx)
}

func TestSevenDayReminderShownOnceAcrossTicks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, &fakeClient{state: trial(7)})
	defer h.c.Close()

	snap := h.c.Snapshot()
	assert.Equal(t, ViewSplash, snap.View)
	assert.Equal(t, license.SplashReminder, snap.Splash)
	assert.Equal(t, "7 days left in your free trial", snap.SplashContent.Message)

	// a tick while the splash is up does not replace it
	h.tick()
	assert.Equal(t, ViewSplash, h.c.View())

	require.NoError(t, h.c.ContinueFromSplash())
	assert.Equal(t, ViewLogin, h.c.View())

	h.tick()
	assert.Equal(t, 3, h.fc.queryCount())
	assert.Equal(t, ViewLogin, h.c.View(), "the splash is never re-entered")
	assert.ErrorIs(t, h.c.ContinueFromSplash(), ErrInvalidTransition)
}

func TestExpiredAtStartupActivatesIntoApp(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	fc := &fakeClient{state: expiredTrial()}
	h := newHarness(t, fc)
	defer h.c.Close()

	require.Equal(t, ViewActivation, h.c.View())
	assert.True(t, h.c.Snapshot().ReadOnly)

	granted := license.LicenseState{Status: license.StatusActive, LicenseType: license.TypePaid, DaysRemaining: 30}
	fc.mu.Lock()
	fc.activateResp = license.ActivationResponse{Success: true, Message: "License MONTHLY activated", State: &granted}
	fc.mu.Unlock()

	res := h.c.SubmitActivation(h.ctx, " pos-m-a7k9-n2b5-01xm ")
	require.True(t, res.Success)
	assert.Equal(t, ViewLogin, h.c.View(), "no session yet, so activation returns to login")

	require.NoError(t, h.c.Login(cashier))
	snap := h.c.Snapshot()
	assert.Equal(t, ViewApp, snap.View)
	assert.False(t, snap.ReadOnly)
	assert.False(t, snap.Banner.Visible)
	assert.NotEqual(t, uuid.Nil, snap.SessionID)
}

func TestActivationFromAppReturnsToApp(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	fc := &fakeClient{state: expiredTrial()}
	h := newHarness(t, fc)
	defer h.c.Close()

	require.NoError(t, h.c.ContinueReadOnly())
	require.NoError(t, h.c.Login(cashier))
	snap := h.c.Snapshot()
	require.True(t, snap.ReadOnly)
	assert.Equal(t, license.TierError, snap.Banner.Tier)

	require.NoError(t, h.c.GoToActivation())
	fc.mu.Lock()
	fc.activateResp = license.ActivationResponse{Success: false, Message: "This code has already been used."}
	fc.mu.Unlock()
	res := h.c.SubmitActivation(h.ctx, "POS-M-A7K9-N2B5-01XM")
	assert.False(t, res.Success)
	assert.Equal(t, ViewActivation, h.c.View(), "a rejection stays on the activation screen")

	readOnly := false
	fc.mu.Lock()
	fc.activateResp = license.ActivationResponse{Success: true, ReadOnly: &readOnly}
	fc.mu.Unlock()
	res = h.c.SubmitActivation(h.ctx, "POS-M-A7K9-N2B5-01XN")
	require.True(t, res.Success)

	snap = h.c.Snapshot()
	assert.Equal(t, ViewApp, snap.View)
	assert.False(t, snap.ReadOnly)
	assert.Equal(t, "maria", snap.User.Username)
}

func TestVerifierOffersActivationOncePerLoggedOutPeriod(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	fc := &fakeClient{state: trial(10)}
	h := newHarness(t, fc)
	defer h.c.Close()
	require.Equal(t, ViewLogin, h.c.View())

	fc.setState(expiredTrial())
	h.tick()
	require.Equal(t, ViewActivation, h.c.View())

	require.NoError(t, h.c.ContinueReadOnly())
	h.tick()
	assert.Equal(t, ViewLogin, h.c.View(), "activation is not offered twice")

	require.NoError(t, h.c.Login(cashier))
	h.tick()
	assert.Equal(t, ViewApp, h.c.View(), "a logged in user is never interrupted")

	require.NoError(t, h.c.Logout())
	h.releaseTicker(t)
	h.tick()
	assert.Equal(t, ViewActivation, h.c.View())
}

func TestWelcomeOverlayFlow(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	fc := &fakeClient{state: trial(15), firstRun: true}
	h := newHarness(t, fc)
	defer h.c.Close()

	require.Equal(t, license.SplashWelcome, h.c.Snapshot().Splash)
	require.NoError(t, h.c.ContinueFromSplash())
	require.NoError(t, h.c.Login(cashier))
	assert.True(t, h.c.Snapshot().WelcomeOverlay)

	require.NoError(t, h.c.DismissWelcome(h.ctx, false))
	assert.False(t, h.c.Snapshot().WelcomeOverlay)

	require.NoError(t, h.c.Logout())
	h.releaseTicker(t)
	require.NoError(t, h.c.Login(cashier))
	assert.True(t, h.c.Snapshot().WelcomeOverlay, "shown again on the next login")

	require.NoError(t, h.c.DismissWelcome(h.ctx, true))
	require.NoError(t, h.c.Logout())
	h.releaseTicker(t)
	require.NoError(t, h.c.Login(cashier))
	assert.False(t, h.c.Snapshot().WelcomeOverlay)
	fc.mu.Lock()
	assert.Equal(t, 1, fc.marks)
	fc.mu.Unlock()
}

func TestLoadingFailureFallsBackToLogin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	fc := &fakeClient{
		queryErr:    errors.New("connection refused"),
		firstRunErr: errors.New("connection refused"),
	}
	h := newHarness(t, fc)
	defer h.c.Close()

	require.NoError(t, h.c.Login(cashier))
	want := Snapshot{
		View:      ViewApp,
		ReadOnly:  true,
		User:      &cashier,
		SessionID: h.c.Snapshot().SessionID,
	}
	if diff := cmp.Diff(want, h.c.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestBannerDismissedUntilNextLogin(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, &fakeClient{state: license.LicenseState{Status: license.StatusGrace, LicenseType: license.TypeTrial, DaysRemaining: -2}})
	defer h.c.Close()

	require.NoError(t, h.c.Login(cashier))
	assert.Equal(t, "License expired - grace period: 2 days", h.c.Snapshot().Banner.Message)

	h.c.DismissBanner()
	assert.False(t, h.c.Snapshot().Banner.Visible)

	require.NoError(t, h.c.Logout())
	h.releaseTicker(t)
	require.NoError(t, h.c.Login(cashier))
	assert.True(t, h.c.Snapshot().Banner.Visible)
}

func TestSubscribeCoalescesToLatest(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, &fakeClient{state: trial(20)})
	defer h.c.Close()

	ch, unsubscribe := h.c.Subscribe()
	defer unsubscribe()

	require.NoError(t, h.c.Login(cashier))
	require.NoError(t, h.c.GoToActivation())
	require.NoError(t, h.c.ContinueReadOnly())

	snap := <-ch
	assert.Equal(t, ViewApp, snap.View)
	select {
	case extra := <-ch:
		t.Fatalf("expected a single coalesced snapshot, got another: %+v", extra)
	default:
	}
}

func TestInvalidTransitions(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t, &fakeClient{state: trial(20)})
	defer h.c.Close()

	assert.ErrorIs(t, h.c.ContinueReadOnly(), ErrInvalidTransition)
	assert.ErrorIs(t, h.c.Logout(), ErrInvalidTransition)
	assert.ErrorIs(t, h.c.DismissWelcome(h.ctx, true), ErrInvalidTransition)
	require.NoError(t, h.c.Login(cashier))
	assert.ErrorIs(t, h.c.Login(cashier), ErrInvalidTransition)
}

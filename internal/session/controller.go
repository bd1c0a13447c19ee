package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/storepos/internal/license"
	"github.com/storepos/pkg/models"
)

// View is the top-level screen the UI should render.
type View string

const (
	ViewLoading    View = "loading"
	ViewSplash     View = "splash"
	ViewActivation View = "activation"
	ViewLogin      View = "login"
	ViewApp        View = "app"
)

// ErrInvalidTransition is returned when an action is not valid from the
// current view.
var ErrInvalidTransition = errors.New("session: invalid view transition")

// Snapshot is everything a renderer needs at a point in time.
type Snapshot struct {
	View           View
	Splash         license.SplashBucket
	SplashContent  license.SplashContent
	WelcomeOverlay bool
	ReadOnly       bool
	Banner         license.Banner
	User           *models.User
	SessionID      uuid.UUID
}

// Controller drives the screen flow around the licence lifecycle. It
// implements license.Session for the periodic verifier.
type Controller struct {
	store     *license.Store
	activator *license.Activator
	gate      *license.Gate
	verifier  *license.Verifier
	interval  time.Duration

	mu               sync.Mutex
	started          bool
	closed           bool
	view             View
	splash           license.SplashBucket
	user             *models.User
	sessionID        uuid.UUID
	welcomeDismissed bool
	bannerDismissed  bool
	offered          bool

	smu  sync.Mutex
	subs map[chan Snapshot]struct{}
}

type Option func(*options)

type options struct {
	clock    quartz.Clock
	interval time.Duration
}

// WithClock sets the clock used by the verifier.
func WithClock(c quartz.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithInterval overrides the verification interval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

func New(store *license.Store, activator *license.Activator, gate *license.Gate, opts ...Option) *Controller {
	o := options{interval: license.VerifyInterval}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Controller{
		store:     store,
		activator: activator,
		gate:      gate,
		interval:  o.interval,
		view:      ViewLoading,
		subs:      make(map[chan Snapshot]struct{}),
	}
	var vopts []license.VerifierOption
	if o.clock != nil {
		vopts = append(vopts, license.WithClock(o.clock))
	}
	c.verifier = license.NewVerifier(store, c, vopts...)
	store.OnChange(func(license.LicenseState) { c.publish() })
	return c
}

// Start runs the initial licence and first-run queries, picks the first
// screen and starts the verifier. Query failures are logged; the controller
// then proceeds with whatever is cached.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if _, err := c.store.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial license query failed")
	}
	if _, err := c.store.LoadFirstRun(ctx); err != nil {
		log.Warn().Err(err).Msg("initial first-run query failed")
	}

	st, known := c.store.Current()
	bucket := license.ClassifyAtStartup(st, c.store.FirstRun())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.splash = bucket
	switch {
	case bucket != license.SplashNone:
		c.view = ViewSplash
	case known && st.IsExpired():
		c.view = ViewActivation
		c.offered = true
	default:
		c.view = ViewLogin
	}
	view := c.view
	c.mu.Unlock()

	log.Info().Str("view", string(view)).Str("splash", string(bucket)).Msg("session started")
	c.verifier.Start(c.interval)
	c.publish()
	return nil
}

// Close stops the verifier and closes every subscription.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.verifier.Stop()

	c.smu.Lock()
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.smu.Unlock()
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// User returns the logged in user, or nil.
func (c *Controller) User() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Authenticated implements license.Session.
func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil
}

// OfferActivation implements license.Session. It moves Login to Activation
// at most once per logged-out period and never interrupts another screen.
func (c *Controller) OfferActivation() {
	c.mu.Lock()
	if c.closed || c.user != nil || c.offered || c.view != ViewLogin {
		c.mu.Unlock()
		return
	}
	c.offered = true
	c.view = ViewActivation
	c.mu.Unlock()

	log.Info().Msg("license expired; offering activation")
	c.publish()
}

// ContinueFromSplash leaves the launch splash. The splash is never shown
// again during this process.
func (c *Controller) ContinueFromSplash() error {
	return c.transition(func() error {
		if c.view != ViewSplash {
			return c.invalid(ViewLogin)
		}
		c.view = ViewLogin
		return nil
	})
}

// GoToActivation opens the activation screen from the splash, login or app.
func (c *Controller) GoToActivation() error {
	return c.transition(func() error {
		switch c.view {
		case ViewSplash, ViewLogin, ViewApp:
			c.view = ViewActivation
			return nil
		}
		return c.invalid(ViewActivation)
	})
}

// ContinueReadOnly leaves the activation screen without activating.
func (c *Controller) ContinueReadOnly() error {
	return c.transition(func() error {
		if c.view != ViewActivation {
			return c.invalid(c.afterActivation())
		}
		c.view = c.afterActivation()
		return nil
	})
}

// SubmitActivation sends code through the activator. On success the store is
// already updated when this returns, and the view moves on if the user is
// still on the activation screen.
func (c *Controller) SubmitActivation(ctx context.Context, code string) license.ActivationResult {
	res := c.activator.Submit(ctx, code)
	if !res.Success {
		return res
	}
	_ = c.transition(func() error {
		if c.view == ViewActivation {
			c.view = c.afterActivation()
		}
		return nil
	})
	return res
}

// Login starts an authenticated session and shows the app.
func (c *Controller) Login(user models.User) error {
	return c.transition(func() error {
		if c.view != ViewLogin {
			return c.invalid(ViewApp)
		}
		c.user = &user
		c.sessionID = uuid.New()
		c.welcomeDismissed = false
		c.bannerDismissed = false
		c.view = ViewApp
		log.Info().
			Str("user", user.Username).
			Int("role", user.RoleID).
			Str("session_id", c.sessionID.String()).
			Msg("user logged in")
		return nil
	})
}

// DismissWelcome hides the welcome overlay for this login. With never set
// the first-run flag is cleared on the service so the overlay is gone for
// good; a failure to persist that is returned but the overlay stays hidden.
func (c *Controller) DismissWelcome(ctx context.Context, never bool) error {
	err := c.transition(func() error {
		if c.view != ViewApp {
			return c.invalid(ViewApp)
		}
		c.welcomeDismissed = true
		return nil
	})
	if err != nil || !never {
		return err
	}
	if err := c.store.MarkFirstRunSeen(ctx); err != nil {
		log.Warn().Err(err).Msg("could not persist welcome dismissal")
		return err
	}
	c.publish()
	return nil
}

// DismissBanner hides the licence banner until the next login.
func (c *Controller) DismissBanner() {
	_ = c.transition(func() error {
		c.bannerDismissed = true
		return nil
	})
}

// Logout ends the session and returns to the login screen. The verifier is
// restarted so the new logged-out period gets its own schedule.
func (c *Controller) Logout() error {
	c.mu.Lock()
	if c.user == nil {
		view := c.view
		c.mu.Unlock()
		return fmt.Errorf("%w: logout from %s", ErrInvalidTransition, view)
	}
	c.mu.Unlock()

	c.verifier.Stop()

	c.mu.Lock()
	log.Info().Str("session_id", c.sessionID.String()).Msg("user logged out")
	c.user = nil
	c.sessionID = uuid.Nil
	c.welcomeDismissed = false
	c.bannerDismissed = false
	c.offered = false
	c.view = ViewLogin
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		c.verifier.Start(c.interval)
	}
	c.publish()
	return nil
}

// Snapshot returns the current render state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		View:      c.view,
		Splash:    c.splash,
		SessionID: c.sessionID,
	}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	welcomeDismissed, bannerDismissed := c.welcomeDismissed, c.bannerDismissed
	c.mu.Unlock()

	st, _ := c.store.Current()
	if snap.View == ViewSplash {
		snap.SplashContent = snap.Splash.Content(st.DaysRemaining)
	}
	snap.ReadOnly = !c.gate.CanWrite()
	if snap.View == ViewApp {
		snap.WelcomeOverlay = license.WelcomeModalDue(c.store.FirstRun(), welcomeDismissed)
		if !bannerDismissed {
			snap.Banner = c.gate.Banner()
		}
	}
	return snap
}

// Subscribe returns a channel that receives a Snapshot after every change.
// Slow readers only see the latest snapshot. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.smu.Lock()
	c.subs[ch] = struct{}{}
	c.smu.Unlock()
	return ch, func() {
		c.smu.Lock()
		defer c.smu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

func (c *Controller) publish() {
	snap := c.Snapshot()
	c.smu.Lock()
	defer c.smu.Unlock()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// transition applies fn under the lock and publishes if it succeeded.
func (c *Controller) transition(fn func() error) error {
	c.mu.Lock()
	from := c.view
	err := fn()
	to := c.view
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if from != to {
		log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("view changed")
	}
	c.publish()
	return nil
}

func (c *Controller) afterActivation() View {
	if c.user != nil {
		return ViewApp
	}
	return ViewLogin
}

func (c *Controller) invalid(to View) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.view, to)
}

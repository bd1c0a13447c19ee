package license

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
)

// Session is what the verifier needs to know about the running UI session.
type Session interface {
	// Authenticated reports whether a user is logged in.
	Authenticated() bool
	// OfferActivation asks the UI to show the activation flow. It must be
	// idempotent.
	OfferActivation()
}

// Verifier re-checks the licence on a fixed interval until stopped.
type Verifier struct {
	store   *Store
	session Session
	clock   quartz.Clock
	timeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	doneCh chan struct{}
}

type VerifierOption func(*Verifier)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c quartz.Clock) VerifierOption {
	return func(v *Verifier) { v.clock = c }
}

func NewVerifier(store *Store, session Session, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:   store,
		session: session,
		clock:   quartz.NewReal(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Start begins ticking every interval. Calling Start while running is a no-op.
// A stopped verifier may be started again.
func (v *Verifier) Start(interval time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		return
	}
	if interval < time.Second {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.doneCh = make(chan struct{})
	go v.loop(ctx, interval, v.doneCh)
}

// Stop cancels the timer and waits for an in-flight tick to finish.
func (v *Verifier) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.doneCh
	v.cancel, v.doneCh = nil, nil
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the timer is active.
func (v *Verifier) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancel != nil
}

func (v *Verifier) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	w := v.clock.TickerFunc(ctx, interval, func() error {
		v.runOnce(ctx)
		return nil
	}, "license", "verifier")
	_ = w.Wait()
}

func (v *Verifier) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, v.timeout)
	defer cancel()
	st, err := v.store.Refresh(ctx)
	if err != nil {
		var rerr ReconcileError
		if !errors.As(err, &rerr) {
			log.Warn().Err(err).Msg("license verification failed; keeping last known state")
			return
		}
		log.Warn().Err(err).Msg("license reconcile failed")
	}
	if st.IsExpired() && !v.session.Authenticated() {
		v.session.OfferActivation()
	}
}

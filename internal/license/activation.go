package license

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// User-facing messages for activation outcomes that do not come from the
// service.
const (
	MsgEmptyCode      = "Please enter an activation code."
	MsgActivationFail = "Could not activate the license. Please try again."
	MsgActivated      = "License activated."
)

// ActivationResult is what the activation screen needs to render.
type ActivationResult struct {
	Success  bool
	ReadOnly bool   // the grant itself is read-only
	Message  string // safe to show to the user
	Err      error  // ErrEmptyCode, RejectionError or a transport error
}

// Activator submits activation codes and installs the resulting state.
type Activator struct {
	client Client
	store  *Store
}

func NewActivator(client Client, store *Store) *Activator {
	return &Activator{client: client, store: store}
}

// NormalizeCode trims surrounding whitespace and uppercases the code. It does
// not reformat or validate it further.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Submit sends the code and, on success, updates the store from the
// response. Once sent, the request is not cancelled by ctx; the update is
// applied even if the caller has moved on.
func (a *Activator) Submit(ctx context.Context, raw string) ActivationResult {
	code := NormalizeCode(raw)
	if code == "" {
		return ActivationResult{Message: MsgEmptyCode, Err: ErrEmptyCode}
	}

	resp, err := a.client.Activate(context.WithoutCancel(ctx), code)
	if err != nil {
		log.Warn().Err(err).Msg("license activation request failed")
		return ActivationResult{Message: MsgActivationFail, Err: err}
	}
	if !resp.Success {
		log.Info().Str("reason", resp.Message).Msg("license activation rejected")
		return ActivationResult{Message: resp.Message, Err: RejectionError{Message: resp.Message}}
	}

	st := a.grantedState(resp)
	a.store.SetFromActivation(st)
	log.Info().
		Str("status", string(st.Status)).
		Bool("read_only", st.ReadOnly).
		Msg("license activated")

	msg := resp.Message
	if msg == "" {
		msg = MsgActivated
	}
	return ActivationResult{Success: true, ReadOnly: st.ReadOnly, Message: msg}
}

// grantedState builds the new cached state from the activation response. When
// the service did not echo a full state, the licence is taken to be active and
// paid; the day count is corrected by the next periodic refresh.
func (a *Activator) grantedState(resp ActivationResponse) LicenseState {
	var st LicenseState
	if resp.State != nil {
		st = *resp.State
	} else {
		prev, _ := a.store.Current()
		st = LicenseState{Status: StatusActive, LicenseType: TypePaid}
		if prev.DaysRemaining > 0 {
			st.DaysRemaining = prev.DaysRemaining
		}
	}
	if resp.ReadOnly != nil {
		st.ReadOnly = *resp.ReadOnly
	}
	return st
}

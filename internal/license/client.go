package license

import "context"

// Client is the narrow request/response contract of the licence service.
type Client interface {
	// QueryState returns the authoritative licence state.
	QueryState(ctx context.Context) (LicenseState, error)
	// Reconcile asks the service to recompute its own bookkeeping.
	Reconcile(ctx context.Context) error
	// Activate submits an already-normalized activation code.
	Activate(ctx context.Context, code string) (ActivationResponse, error)
	// QueryFirstRun reports whether the welcome has never been dismissed.
	QueryFirstRun(ctx context.Context) (bool, error)
	// MarkFirstRunSeen permanently clears the first-run flag.
	MarkFirstRunSeen(ctx context.Context) error
}

// ActivationResponse is the service's answer to an activation attempt.
// Success=false is a business rejection, not an error.
type ActivationResponse struct {
	Success  bool
	Message  string
	ReadOnly *bool
	State    *LicenseState
}

package license

import (
	"errors"
	"fmt"
)

// ErrEmptyCode is returned before any network call when the activation
// code is blank after trimming.
var ErrEmptyCode = errors.New("license: activation code is empty")

// NetworkError wraps transient network failures distinct from licence semantic errors.
type NetworkError struct{ Err error }

func (e NetworkError) Error() string { return "network: " + e.Err.Error() }
func (e NetworkError) Unwrap() error { return e.Err }

// ServiceError is a non-2xx or undecodable response from a backend service.
// Callers treat it like a NetworkError: the service could not be consulted.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("service http %d: %s", e.StatusCode, e.Body)
}

// RejectionError carries a structured refusal from the licence service. The
// message is meant to be shown to the user verbatim.
type RejectionError struct{ Message string }

func (e RejectionError) Error() string { return "license rejected: " + e.Message }

// ReconcileError reports that the bookkeeping call after a successful query
// failed. The cached state was still updated.
type ReconcileError struct{ Err error }

func (e ReconcileError) Error() string { return "reconcile license state: " + e.Err.Error() }
func (e ReconcileError) Unwrap() error { return e.Err }

// IsTransport reports whether err means the licence service could not be
// reached or answered with something unusable.
func IsTransport(err error) bool {
	var ne NetworkError
	var se ServiceError
	return errors.As(err, &ne) || errors.As(err, &se)
}

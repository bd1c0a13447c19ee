package models

// Licence service wire types. Shared by the client in internal/license and
// the reference service in internal/api.

// LicenseState is the body of GET /api/v1/license/state.
type LicenseState struct {
	Status        string `json:"status"`      // ACTIVE | GRACE | EXPIRED
	LicenseType   string `json:"licenseType"` // TRIAL | PAID
	DaysRemaining int    `json:"daysRemaining"`
	ReadOnly      bool   `json:"readOnly"`
}

// ActivationRequest is the body of POST /api/v1/license/activate.
type ActivationRequest struct {
	Code string `json:"code"`
}

// ActivationResponse is returned for both accepted and rejected codes.
// State is filled on success so clients can apply it without a second query.
type ActivationResponse struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	ReadOnly *bool         `json:"readOnly,omitempty"`
	State    *LicenseState `json:"state,omitempty"`
}

// FirstRunResponse is the body of GET /api/v1/license/first-run.
type FirstRunResponse struct {
	FirstRun bool `json:"firstRun"`
}

// Ack acknowledges side-effecting calls (reconcile, first-run/seen).
type Ack struct {
	OK bool `json:"ok"`
}

// ErrorResponse mirrors the {"error": "code"} bodies used by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

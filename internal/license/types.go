package license

import "github.com/storepos/pkg/models"

// Status values for the licence lifecycle as reported by the licence service.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusGrace   Status = "GRACE"
	StatusExpired Status = "EXPIRED"
)

// Type distinguishes trial installs from paid licences.
type Type string

const (
	TypeTrial Type = "TRIAL"
	TypePaid  Type = "PAID"
)

// LicenseState is the client's view of the licence. It is a value: every
// refresh replaces it wholesale.
type LicenseState struct {
	Status        Status
	LicenseType   Type
	DaysRemaining int // negative while in grace
	ReadOnly      bool
}

// FirstRunState reports whether the install has never dismissed the welcome.
type FirstRunState struct {
	IsFirstRun bool
}

// IsExpired reports whether the grace period has run out.
func (l LicenseState) IsExpired() bool { return l.Status == StatusExpired }

// IsTrial reports whether the state describes the bundled trial.
func (l LicenseState) IsTrial() bool { return l.LicenseType == TypeTrial }

func stateFromWire(w models.LicenseState) LicenseState {
	return LicenseState{
		Status:        Status(w.Status),
		LicenseType:   Type(w.LicenseType),
		DaysRemaining: w.DaysRemaining,
		ReadOnly:      w.ReadOnly,
	}
}

// ToWire converts the state to its JSON representation.
func (l LicenseState) ToWire() models.LicenseState {
	return models.LicenseState{
		Status:        string(l.Status),
		LicenseType:   string(l.LicenseType),
		DaysRemaining: l.DaysRemaining,
		ReadOnly:      l.ReadOnly,
	}
}

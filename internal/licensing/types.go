package licensing

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/storepos/internal/license"
)

// Kind is the kind of licence held by the install.
type Kind string

const (
	KindTrial   Kind = "TRIAL"
	KindMonthly Kind = "MONTHLY"
	KindAnnual  Kind = "ANNUAL"
)

const (
	// TrialDays is the length of the free trial counted from install.
	TrialDays = 15
	// GraceDays is how long after expiry the install keeps full access.
	GraceDays = 3
)

// Days returns how many days an activation of this kind grants.
func (k Kind) Days() int {
	switch k {
	case KindMonthly:
		return 30
	case KindAnnual:
		return 365
	case KindTrial:
		return TrialDays
	}
	return 0
}

// Valid reports whether k is a kind an activation code can carry.
func (k Kind) Valid() bool { return k == KindMonthly || k == KindAnnual }

// Record is the singleton licence row for the install.
type Record struct {
	ID             int
	Kind           Kind
	Status         license.Status
	InstalledAt    time.Time
	ExpiresAt      time.Time
	ActivationCode *string
	ActivatedAt    *time.Time
	FirstRunSeen   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ActivationCode is a code issued out of band and redeemable once.
type ActivationCode struct {
	Code     string
	Kind     Kind
	IssuedAt time.Time
	UsedAt   *time.Time
}

func (c ActivationCode) Used() bool { return c.UsedAt != nil }

// HistoryEntry records one successful activation.
type HistoryEntry struct {
	ID          uuid.UUID
	Code        string
	Kind        Kind
	DaysAdded   int
	ActivatedAt time.Time
	ExpiresAt   time.Time
}

// Sentinel errors
var (
	ErrCodeNotFound = errors.New("activation code not found")
	ErrCodeUsed     = errors.New("activation code already used")
	ErrCodeExists   = errors.New("activation code already issued")
	ErrInvalidKind  = errors.New("activation code kind must be MONTHLY or ANNUAL")
)

// Messages returned to clients on a rejected activation.
const (
	MsgInvalidCode = "Invalid activation code."
	MsgUsedCode    = "This code has already been used."
	MsgThrottled   = "Too many activation attempts. Wait a minute and try again."
)

// DaysRemaining is the number of whole days until expiresAt, truncated
// toward zero.
func DaysRemaining(now, expiresAt time.Time) int {
	return int(expiresAt.Sub(now) / (24 * time.Hour))
}

// StatusFor maps a day count onto the lifecycle status.
func StatusFor(days int) license.Status {
	switch {
	case days > 0:
		return license.StatusActive
	case days >= -GraceDays:
		return license.StatusGrace
	default:
		return license.StatusExpired
	}
}

// StateAt computes the client-facing state of r at now.
func (r *Record) StateAt(now time.Time) license.LicenseState {
	days := DaysRemaining(now, r.ExpiresAt)
	status := StatusFor(days)
	lt := license.TypePaid
	if r.Kind == KindTrial {
		lt = license.TypeTrial
	}
	return license.LicenseState{
		Status:        status,
		LicenseType:   lt,
		DaysRemaining: days,
		ReadOnly:      status == license.StatusExpired,
	}
}

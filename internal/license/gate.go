package license

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrReadOnly is returned by gated write paths while the licence is read-only
// or not yet known.
var ErrReadOnly = errors.New("license: read-only mode")

// ReadOnlyNotice is the single message every module shows on a denied write.
const ReadOnlyNotice = "Activate your license to make changes."

// Gate answers "may this client mutate data right now". It only forwards the
// service's readOnly flag; the service remains the authority.
type Gate struct {
	store *Store
}

func NewGate(store *Store) *Gate { return &Gate{store: store} }

// CanWrite is false until a state has been observed.
func (g *Gate) CanWrite() bool {
	st, known := g.store.Current()
	if !known {
		return false
	}
	return !st.ReadOnly
}

// Check returns ErrReadOnly when writes are not allowed.
func (g *Gate) Check() error {
	if g.CanWrite() {
		return nil
	}
	return ErrReadOnly
}

// Banner returns the passive status banner for the current state.
func (g *Gate) Banner() Banner {
	st, known := g.store.Current()
	if !known {
		return Banner{}
	}
	return BannerFor(st)
}

// Tier is the banner severity.
type Tier string

const (
	TierNone    Tier = ""
	TierWarning Tier = "warning"
	TierError   Tier = "error"
)

// Banner describes the persistent licence banner.
type Banner struct {
	Visible bool
	Tier    Tier
	Message string
}

// BannerFor maps a state onto the banner. Healthy licences (active, more
// than three days left) show nothing.
func BannerFor(st LicenseState) Banner {
	switch {
	case st.Status == StatusExpired:
		return Banner{Visible: true, Tier: TierError, Message: "License expired - read-only mode is active"}
	case st.Status == StatusGrace:
		days := st.DaysRemaining
		if days < 0 {
			days = -days
		}
		return Banner{Visible: true, Tier: TierWarning, Message: fmt.Sprintf("License expired - grace period: %s", plural(days, "day"))}
	case st.Status == StatusActive && st.DaysRemaining > 3:
		return Banner{}
	}
	what := "license"
	if st.IsTrial() {
		what = "trial"
	}
	return Banner{Visible: true, Tier: TierWarning, Message: fmt.Sprintf("Your %s expires in %s", what, plural(st.DaysRemaining, "day"))}
}

func plural(n int, unit string) string {
	if n == 1 || n == -1 {
		return strconv.Itoa(n) + " " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

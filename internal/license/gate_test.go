package license

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBannerHiddenForHealthyLicence(t *testing.T) {
	for days := 4; days <= 400; days++ {
		for _, lt := range []Type{TypeTrial, TypePaid} {
			b := BannerFor(LicenseState{Status: StatusActive, LicenseType: lt, DaysRemaining: days})
			if b.Visible {
				t.Fatalf("days=%d type=%s: banner should be hidden", days, lt)
			}
		}
	}
}

func TestBannerTiers(t *testing.T) {
	cases := []struct {
		name    string
		state   LicenseState
		tier    Tier
		message string
	}{
		{"expired", expired(), TierError, "License expired - read-only mode is active"},
		{"expired not read-only", LicenseState{Status: StatusExpired, DaysRemaining: -10}, TierError, "License expired - read-only mode is active"},
		{"grace", LicenseState{Status: StatusGrace, LicenseType: TypeTrial, DaysRemaining: -2}, TierWarning, "License expired - grace period: 2 days"},
		{"grace one day", LicenseState{Status: StatusGrace, DaysRemaining: -1}, TierWarning, "License expired - grace period: 1 day"},
		{"trial three days", active(3), TierWarning, "Your trial expires in 3 days"},
		{"trial one day", active(1), TierWarning, "Your trial expires in 1 day"},
		{"paid two days", LicenseState{Status: StatusActive, LicenseType: TypePaid, DaysRemaining: 2}, TierWarning, "Your license expires in 2 days"},
		{"active zero", active(0), TierWarning, "Your trial expires in 0 days"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := BannerFor(tc.state)
			assert.True(t, b.Visible)
			assert.Equal(t, tc.tier, b.Tier)
			assert.Equal(t, tc.message, b.Message)
		})
	}
}

func TestGateForwardsReadOnlyFlag(t *testing.T) {
	ctx := context.Background()
	// Grace without readOnly keeps writes on: the client never infers
	// read-only from status.
	fc := &fakeClient{state: LicenseState{Status: StatusGrace, DaysRemaining: -1}}
	store := NewStore(fc)
	gate := NewGate(store)
	_, err := store.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, gate.CanWrite())

	// An active licence flagged read-only by the service is read-only.
	fc.set(func(f *fakeClient) { f.state = LicenseState{Status: StatusActive, DaysRemaining: 20, ReadOnly: true} })
	_, err = store.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, gate.CanWrite())
	assert.ErrorIs(t, gate.Check(), ErrReadOnly)

	fc.set(func(f *fakeClient) { f.state = expired() })
	_, err = store.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, TierError, gate.Banner().Tier)
}

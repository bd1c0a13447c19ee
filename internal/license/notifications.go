package license

// SplashBucket names the single full-screen interstitial chosen at launch.
type SplashBucket string

const (
	SplashNone          SplashBucket = ""
	SplashWelcome       SplashBucket = "welcome"
	SplashReminder      SplashBucket = "reminder"
	SplashUrgent        SplashBucket = "urgent"
	SplashFinal         SplashBucket = "final"
	SplashExpiredNotice SplashBucket = "expired_notice"
)

// ClassifyAtStartup picks the launch splash. It is evaluated once per process
// start and never again for that process, so crossing a day boundary while
// the app is open does not interrupt the user.
func ClassifyAtStartup(state LicenseState, firstRun FirstRunState) SplashBucket {
	if firstRun.IsFirstRun {
		return SplashWelcome
	}
	switch d := state.DaysRemaining; {
	case d == 7:
		return SplashReminder
	case d == 3 || d == 2:
		return SplashUrgent
	case d == 1:
		return SplashFinal
	case d == 0 && state.Status == StatusExpired:
		return SplashExpiredNotice
	}
	return SplashNone
}

// SplashContent is the copy shown for a bucket.
type SplashContent struct {
	Title         string
	Message       string
	ContinueLabel string
}

// Content returns the display copy for b given the days remaining.
func (b SplashBucket) Content(daysRemaining int) SplashContent {
	switch b {
	case SplashWelcome:
		return SplashContent{"Welcome to Store POS!", plural(daysRemaining, "day") + " of free trial with every feature enabled", "Get started"}
	case SplashReminder:
		return SplashContent{"Trial reminder", plural(daysRemaining, "day") + " left in your free trial", "Continue"}
	case SplashUrgent:
		return SplashContent{"Only a few days left!", "Your trial expires in " + plural(daysRemaining, "day"), "Remind me later"}
	case SplashFinal:
		return SplashContent{"Last day of your trial!", "Your trial expires today; tomorrow the app becomes read-only", "Got it"}
	case SplashExpiredNotice:
		return SplashContent{"Trial expired", "Activate a license to keep using every feature", "Read-only mode"}
	}
	return SplashContent{}
}

// WelcomeModalDue reports whether the post-login welcome modal should be
// layered over the app. It depends only on the first-run flag and whether the
// modal was already dismissed during the current login.
func WelcomeModalDue(firstRun FirstRunState, dismissedThisLogin bool) bool {
	return firstRun.IsFirstRun && !dismissedThisLogin
}

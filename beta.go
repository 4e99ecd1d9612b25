package auth

import "time"

// BetaState is the persisted beta access flag on an account. Review states
// such as "pending review" or "reapplicable" are derived, never stored.
type BetaState string

const (
	BetaStateUnset    BetaState = "unset"
	BetaStateApproved BetaState = "approved"
	BetaStateDenied   BetaState = "denied"
)

// BetaDenialCooldown is how long a denial blocks reapplication.
var BetaDenialCooldown = 7 * 24 * time.Hour

// BetaAccess is the tri-state access flag: unset, approved, or denied with
// the instant the denial cooldown lapses. The zero value is unset.
type BetaAccess struct {
	state       BetaState
	deniedUntil time.Time
}

func BetaAccessUnset() BetaAccess {
	return BetaAccess{state: BetaStateUnset}
}

func BetaAccessApproved() BetaAccess {
	return BetaAccess{state: BetaStateApproved}
}

func BetaAccessDenied(until time.Time) BetaAccess {
	return BetaAccess{state: BetaStateDenied, deniedUntil: until}
}

func (b BetaAccess) State() BetaState {
	if b.state == "" {
		return BetaStateUnset
	}
	return b.state
}

// DeniedUntil returns the cooldown expiry; zero unless the state is denied.
func (b BetaAccess) DeniedUntil() time.Time {
	if b.State() != BetaStateDenied {
		return time.Time{}
	}
	return b.deniedUntil
}

// CooldownActive reports whether a denial still blocks this account at now.
func (b BetaAccess) CooldownActive(now time.Time) bool {
	return b.State() == BetaStateDenied && now.Before(b.deniedUntil)
}

// Reapplicable reports whether a past denial has lapsed, letting the account
// apply again. Derived at read time from the stored expiry.
func (b BetaAccess) Reapplicable(now time.Time) bool {
	return b.State() == BetaStateDenied && !now.Before(b.deniedUntil)
}

// ReviewState is the derived position of an account in the beta program,
// computed from the beta flag plus email verification.
type ReviewState string

const (
	// ReviewStateUnverified: applied but the email is not verified yet.
	ReviewStateUnverified ReviewState = "unverified"
	// ReviewStatePending: email verified, waiting on a reviewer decision.
	ReviewStatePending ReviewState = "pending_review"
	ReviewStateApproved ReviewState = "approved"
	ReviewStateDenied   ReviewState = "denied"
	// ReviewStateReapplicable: denied, but the cooldown has lapsed.
	ReviewStateReapplicable ReviewState = "reapplicable"
)

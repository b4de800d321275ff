package domain

// BonusTapInterval is the tap count period that earns the bonus award.
const BonusTapInterval = 11

// ScoringPolicy describes how a role's taps are scored.
type ScoringPolicy struct {
	// Regular is awarded on every tap that is not a bonus tap.
	Regular int64
	// Bonus is awarded on every BonusTapInterval-th tap.
	Bonus int64
	// CountsTowardTotal reports whether earned points are added to the round total.
	CountsTowardTotal bool
}

var defaultPolicy = ScoringPolicy{Regular: 1, Bonus: 10, CountsTowardTotal: true}

var scoringPolicies = map[Role]ScoringPolicy{
	RoleSurvivor: defaultPolicy,
	RoleAdmin:    defaultPolicy,
	RoleObserver: {Regular: 0, Bonus: 0, CountsTowardTotal: false},
}

// PolicyFor returns the scoring policy of role. Unknown roles score like survivors.
func PolicyFor(role Role) ScoringPolicy {
	if p, ok := scoringPolicies[role]; ok {
		return p
	}
	return defaultPolicy
}

// Award returns the points earned by the tap that brings the participant to
// taps, and whether that tap is a bonus tap.
func (p ScoringPolicy) Award(taps int64) (points int64, bonus bool) {
	bonus = taps > 0 && taps%BonusTapInterval == 0
	if bonus {
		return p.Bonus, true
	}
	return p.Regular, false
}

// ExpectedScore is the closed-form score of n taps under p.
func (p ScoringPolicy) ExpectedScore(n int64) int64 {
	bonusTaps := n / BonusTapInterval
	return bonusTaps*p.Bonus + (n-bonusTaps)*p.Regular
}

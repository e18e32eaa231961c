// Package progression derives a user's standing on the three-tier ladder
// (SOLO -> TRADE -> COLLABORATION) from completed participation records.
// The ladder is reward-based, not lock-based: no tier is ever inaccessible,
// but higher tiers carry bonus rewards once their milestones are met.
//
// All computation here is pure and idempotent: the same completion history
// always yields the same profile, which makes caching safe with invalidation
// keyed on the user's completed-count.
package progression

import (
	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
)

// Milestone requirements per tier. A tier's bonus unlocks when the user has
// enough completions on the previous rung AND enough inferred skill.
var (
	// RequiredCompletions maps a tier to the completed-count required on the
	// previous rung for bonus eligibility.
	RequiredCompletions = map[challenge.Tier]int{
		challenge.TierTrade:         3,
		challenge.TierCollaboration: 5,
	}

	// RequiredSkillLevel maps a tier to the minimum inferred skill level for
	// bonus eligibility. Skill level is derived by the XP ledger and passed
	// in; it is never computed here.
	RequiredSkillLevel = map[challenge.Tier]int{
		challenge.TierTrade:         2,
		challenge.TierCollaboration: 3,
	}
)

// Reward multipliers per tier, applied by the ledger on top of base XP.
var tierMultipliers = map[challenge.Tier]float64{
	challenge.TierSolo:          1.0,
	challenge.TierTrade:         1.5,
	challenge.TierCollaboration: 2.0,
}

// TierStanding summarizes a user's position on one tier.
type TierStanding struct {
	// Tier is the ladder rung.
	Tier challenge.Tier

	// Completions is the number of completed challenges on this tier.
	Completions int

	// EligibleForBonus is true once the milestone requirements are met.
	// SOLO is always eligible: it is the entry rung.
	EligibleForBonus bool

	// NextMilestone is the number of additional previous-rung completions
	// still needed for bonus eligibility. Zero when already eligible or
	// when only the skill requirement is outstanding.
	NextMilestone int
}

// Profile is the derived progression summary for one user. It is not
// persisted authoritatively; it is recomputed from participation history.
type Profile struct {
	// UserID is the profile owner.
	UserID string

	// SkillLevel is the externally-derived skill level used as input.
	SkillLevel int

	// Standings holds one entry per tier, in ladder order.
	Standings []TierStanding

	// TotalCompletions is the sum across tiers.
	TotalCompletions int

	// RewardMultiplier is the multiplier for the highest bonus-eligible
	// tier. 1.0 when only SOLO is eligible.
	RewardMultiplier float64
}

// Standing returns the standing for a tier.
func (p *Profile) Standing(tier challenge.Tier) (TierStanding, bool) {
	for _, s := range p.Standings {
		if s.Tier == tier {
			return s, true
		}
	}
	return TierStanding{}, false
}

// CacheKeySuffix returns a value that changes whenever the profile inputs
// change: total completions plus skill level. Callers key cached profiles
// on it so stale entries are never served.
func (p *Profile) CacheKeySuffix() int {
	return p.TotalCompletions*100 + p.SkillLevel
}

// Tracker computes progression profiles. Stateless and safe for concurrent
// use.
type Tracker struct{}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ComputeProfile derives the progression profile from completed
// participation records and the externally-derived skill level. Records
// that are not completed are ignored; the caller usually passes the result
// of FindCompletedByUser.
func (t *Tracker) ComputeProfile(userID string, completed []*participation.UserChallenge, skillLevel int) *Profile {
	counts := make(map[challenge.Tier]int, len(challenge.AllTiers))
	total := 0
	for _, uc := range completed {
		if uc == nil || uc.Status != participation.StatusCompleted {
			continue
		}
		counts[uc.Tier]++
		total++
	}

	profile := &Profile{
		UserID:           userID,
		SkillLevel:       skillLevel,
		Standings:        make([]TierStanding, 0, len(challenge.AllTiers)),
		TotalCompletions: total,
		RewardMultiplier: tierMultipliers[challenge.TierSolo],
	}

	for _, tier := range challenge.AllTiers {
		standing := TierStanding{
			Tier:        tier,
			Completions: counts[tier],
		}

		required, hasMilestone := RequiredCompletions[tier]
		if !hasMilestone {
			// Entry rung: always bonus-eligible.
			standing.EligibleForBonus = true
		} else {
			prev, _ := tier.Previous()
			prevCount := counts[prev]
			standing.EligibleForBonus = prevCount >= required && skillLevel >= RequiredSkillLevel[tier]
			if prevCount < required {
				standing.NextMilestone = required - prevCount
			}
		}

		if standing.EligibleForBonus {
			if m, ok := tierMultipliers[tier]; ok && m > profile.RewardMultiplier {
				profile.RewardMultiplier = m
			}
		}

		profile.Standings = append(profile.Standings, standing)
	}

	return profile
}

// Multiplier returns the reward multiplier for a tier.
func Multiplier(tier challenge.Tier) float64 {
	if m, ok := tierMultipliers[tier]; ok {
		return m
	}
	return 1.0
}

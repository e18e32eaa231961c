// Package recommendation ranks the active challenge catalog for a user.
// The engine is a pure compute path: given the catalog, the user's completed
// history and engaged challenge IDs, it returns a deterministic ranking.
// Same inputs always produce the same ordering, which keeps results testable
// and cacheable.
package recommendation

import (
	"sort"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
)

// Scoring weights, highest-priority criterion first. Category affinity
// dominates, then difficulty proximity, then recency. The weights are
// spaced so a lower criterion can never outvote a higher one: the
// smallest gap between adjacent difficulty-band contributions is
// 100/3 - 100/4 ≈ 8.33, so the maximum recency boost stays below it.
const (
	weightCategoryMatch  = 1000.0
	weightDifficultyBase = 100.0
	weightRecencyMax     = 8.0

	// recencyHorizon is the window over which start-date recency decays
	// from full weight to zero.
	recencyHorizon = 30 * 24 * time.Hour
)

// Candidate is one ranked recommendation.
type Candidate struct {
	// Challenge is the recommended challenge.
	Challenge *challenge.Challenge

	// Score is the computed ranking score. Higher ranks first.
	Score float64
}

// Input bundles everything the engine needs for one ranking run.
type Input struct {
	// Catalog is the candidate set, normally the active catalog. Inactive
	// entries are filtered out defensively.
	Catalog []*challenge.Challenge

	// Completed is the user's completed participation history. Empty for
	// new users.
	Completed []*participation.UserChallenge

	// EngagedChallengeIDs are challenges the user already joined (any
	// non-terminal status or completed); they are excluded from results.
	EngagedChallengeIDs []string

	// SkillLevel is the user's inferred skill level from the XP ledger.
	// Zero (new user) falls back to beginner-first ranking.
	SkillLevel int

	// Now anchors recency scoring. Zero means time.Now.
	Now time.Time
}

// Engine ranks challenges. Stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Recommend returns the ranked, deduplicated candidate list. Ties after all
// criteria break by challenge ID lexical order so repeated calls against an
// unchanged catalog return the same ordering.
func (e *Engine) Recommend(in Input, limit int) []Candidate {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	excluded := make(map[string]struct{}, len(in.EngagedChallengeIDs))
	for _, id := range in.EngagedChallengeIDs {
		excluded[id] = struct{}{}
	}

	affinity := categoryAffinity(in.Completed)
	targetBand := targetDifficultyBand(in.SkillLevel)

	seen := make(map[string]struct{}, len(in.Catalog))
	candidates := make([]Candidate, 0, len(in.Catalog))

	for _, c := range in.Catalog {
		if c == nil || c.Status != challenge.StatusActive {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		if _, joined := excluded[c.ID]; joined {
			continue
		}

		candidates = append(candidates, Candidate{
			Challenge: c,
			Score:     e.score(c, affinity, targetBand, now),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		// Under-subscribed challenges first on equal score.
		if a.Challenge.ParticipantCount != b.Challenge.ParticipantCount {
			return a.Challenge.ParticipantCount < b.Challenge.ParticipantCount
		}
		return a.Challenge.ID < b.Challenge.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// score computes the ranking score for one challenge.
func (e *Engine) score(c *challenge.Challenge, affinity map[challenge.Category]int, targetBand int, now time.Time) float64 {
	score := 0.0

	// (1) Category affinity: weight by how often the user completed
	// challenges in this category.
	if n := affinity[c.Category]; n > 0 {
		score += weightCategoryMatch * float64(n)
	}

	// (2) Difficulty proximity: exact band match scores highest, each band
	// of distance reduces the contribution monotonically.
	distance := c.Difficulty.Band() - targetBand
	if distance < 0 {
		distance = -distance
	}
	score += weightDifficultyBase / float64(1+distance)

	// (3) Recency of the start date: newer challenges score higher, fading
	// to zero over the horizon. Untimed challenges get no recency boost.
	if c.StartDate != nil {
		age := now.Sub(*c.StartDate)
		if age < 0 {
			age = 0
		}
		if age < recencyHorizon {
			score += weightRecencyMax * (1 - float64(age)/float64(recencyHorizon))
		}
	}

	return score
}

// categoryAffinity counts completed challenges per category.
func categoryAffinity(completed []*participation.UserChallenge) map[challenge.Category]int {
	affinity := make(map[challenge.Category]int)
	for _, uc := range completed {
		if uc == nil || uc.Status != participation.StatusCompleted {
			continue
		}
		affinity[uc.Category]++
	}
	return affinity
}

// targetDifficultyBand maps the inferred skill level onto a difficulty
// band. New users (level 0) target beginner.
func targetDifficultyBand(skillLevel int) int {
	switch {
	case skillLevel <= 1:
		return challenge.DifficultyBeginner.Band()
	case skillLevel == 2:
		return challenge.DifficultyIntermediate.Band()
	case skillLevel == 3:
		return challenge.DifficultyAdvanced.Band()
	default:
		return challenge.DifficultyExpert.Band()
	}
}

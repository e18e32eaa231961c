// Package query contains read operations following the CQRS pattern.
// Queries never mutate state; they assemble DTOs from repositories, caches
// and the pure domain compute paths (progression tracker, recommendation
// engine).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESSION PROFILE QUERY
// Derives the three-tier progression profile from completed participation
// records. Cached with a key that embeds the completed-count and skill level,
// so any new completion naturally misses the cache.
// ══════════════════════════════════════════════════════════════════════════════

// SkillLevelProvider returns the externally-derived skill level for a user.
// Backed by the XP ledger client; a lookup failure degrades to level zero.
type SkillLevelProvider interface {
	SkillLevel(ctx context.Context, userID string) (int, error)
}

// ProfileCache caches computed progression profiles. Implementations live in
// infrastructure/persistence/redis.
type ProfileCache interface {
	// GetProfile returns the cached profile for the key, or false on miss.
	GetProfile(ctx context.Context, key string) (*progression.Profile, bool)

	// SetProfile stores the profile under the key with a TTL.
	SetProfile(ctx context.Context, key string, profile *progression.Profile, ttl time.Duration)
}

// GetProgressionProfileQuery contains the query parameters.
type GetProgressionProfileQuery struct {
	// UserID is the profile owner.
	UserID string
}

// Validate validates the query.
func (q GetProgressionProfileQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_progression_profile: user_id is required")
	}
	return nil
}

// TierStandingDTO is one tier's standing for API consumers.
type TierStandingDTO struct {
	Tier             string  `json:"tier"`
	Completions      int     `json:"completions"`
	EligibleForBonus bool    `json:"eligible_for_bonus"`
	NextMilestone    int     `json:"next_milestone,omitempty"`
	Multiplier       float64 `json:"multiplier"`
}

// ProgressionProfileDTO is the full profile for API consumers.
type ProgressionProfileDTO struct {
	UserID           string            `json:"user_id"`
	SkillLevel       int               `json:"skill_level"`
	TotalCompletions int               `json:"total_completions"`
	RewardMultiplier float64           `json:"reward_multiplier"`
	Standings        []TierStandingDTO `json:"standings"`
}

// profileCacheTTL bounds staleness from out-of-band skill level changes; the
// completed-count in the key already invalidates on new completions.
const profileCacheTTL = 15 * time.Minute

// GetProgressionProfileHandler handles the query.
type GetProgressionProfileHandler struct {
	participationRepo ParticipationReader
	tracker           *progression.Tracker
	skills            SkillLevelProvider
	cache             ProfileCache
}

// NewGetProgressionProfileHandler creates the handler. Skills and cache may
// be nil.
func NewGetProgressionProfileHandler(
	participationRepo ParticipationReader,
	tracker *progression.Tracker,
	skills SkillLevelProvider,
	cache ProfileCache,
) *GetProgressionProfileHandler {
	if tracker == nil {
		tracker = progression.NewTracker()
	}
	return &GetProgressionProfileHandler{
		participationRepo: participationRepo,
		tracker:           tracker,
		skills:            skills,
		cache:             cache,
	}
}

// Handle executes the query.
func (h *GetProgressionProfileHandler) Handle(ctx context.Context, q GetProgressionProfileQuery) (*ProgressionProfileDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	skillLevel := 0
	if h.skills != nil {
		if lvl, err := h.skills.SkillLevel(ctx, q.UserID); err == nil {
			skillLevel = lvl
		}
	}

	profile, err := h.loadProfile(ctx, q.UserID, skillLevel)
	if err != nil {
		return nil, err
	}

	return toProfileDTO(profile), nil
}

// loadProfile serves from cache when the cheap completed-count aggregate
// matches a cached entry, otherwise recomputes from full history.
func (h *GetProgressionProfileHandler) loadProfile(ctx context.Context, userID string, skillLevel int) (*progression.Profile, error) {
	var cacheKey string
	if h.cache != nil {
		if counts, err := h.participationRepo.CountCompletedByTier(ctx, userID); err == nil {
			total := 0
			for _, n := range counts {
				total += n
			}
			cacheKey = fmt.Sprintf("%s:%d:%d", userID, total, skillLevel)
			if cached, ok := h.cache.GetProfile(ctx, cacheKey); ok {
				return cached, nil
			}
		}
	}

	completed, err := h.participationRepo.FindCompletedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := h.tracker.ComputeProfile(userID, completed, skillLevel)

	if h.cache != nil && cacheKey != "" {
		h.cache.SetProfile(ctx, cacheKey, profile, profileCacheTTL)
	}
	return profile, nil
}

func toProfileDTO(p *progression.Profile) *ProgressionProfileDTO {
	dto := &ProgressionProfileDTO{
		UserID:           p.UserID,
		SkillLevel:       p.SkillLevel,
		TotalCompletions: p.TotalCompletions,
		RewardMultiplier: p.RewardMultiplier,
		Standings:        make([]TierStandingDTO, 0, len(p.Standings)),
	}
	for _, s := range p.Standings {
		dto.Standings = append(dto.Standings, TierStandingDTO{
			Tier:             string(s.Tier),
			Completions:      s.Completions,
			EligibleForBonus: s.EligibleForBonus,
			NextMilestone:    s.NextMilestone,
			Multiplier:       progression.Multiplier(s.Tier),
		})
	}
	return dto
}

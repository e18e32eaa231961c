package query

import (
	"context"
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/recommendation"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECOMMENDATIONS QUERY
// Ranks the active catalog for a user. The ranking itself is the pure
// recommendation engine; this handler only assembles its inputs.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultRecommendationLimit = 10
	maxRecommendationLimit     = 50

	// catalogFetchLimit bounds how much of the active catalog is ranked per
	// request. Large catalogs are ranked over the newest slice.
	catalogFetchLimit = 500
)

// GetRecommendationsQuery contains the query parameters.
type GetRecommendationsQuery struct {
	// UserID is the user to recommend for.
	UserID string

	// Limit is the maximum number of recommendations. Zero means the
	// default; values above the maximum are clamped.
	Limit int
}

// Validate validates and normalizes the query.
func (q *GetRecommendationsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("get_recommendations: user_id is required")
	}
	if q.Limit <= 0 {
		q.Limit = defaultRecommendationLimit
	}
	if q.Limit > maxRecommendationLimit {
		q.Limit = maxRecommendationLimit
	}
	return nil
}

// RecommendationDTO is one ranked recommendation for API consumers.
type RecommendationDTO struct {
	ChallengeID      string     `json:"challenge_id"`
	Title            string     `json:"title"`
	Category         string     `json:"category"`
	Difficulty       string     `json:"difficulty"`
	Tier             string     `json:"tier"`
	XP               int        `json:"xp"`
	ParticipantCount int        `json:"participant_count"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Score            float64    `json:"score"`
}

// GetRecommendationsHandler handles the query.
type GetRecommendationsHandler struct {
	challengeRepo     ChallengeReader
	participationRepo ParticipationReader
	engine            *recommendation.Engine
	skills            SkillLevelProvider
}

// NewGetRecommendationsHandler creates the handler. Skills may be nil.
func NewGetRecommendationsHandler(
	challengeRepo ChallengeReader,
	participationRepo ParticipationReader,
	engine *recommendation.Engine,
	skills SkillLevelProvider,
) *GetRecommendationsHandler {
	if engine == nil {
		engine = recommendation.NewEngine()
	}
	return &GetRecommendationsHandler{
		challengeRepo:     challengeRepo,
		participationRepo: participationRepo,
		engine:            engine,
		skills:            skills,
	}
}

// Handle executes the query. New users with no history get a valid ranking
// driven by difficulty proximity and recency alone.
func (h *GetRecommendationsHandler) Handle(ctx context.Context, q GetRecommendationsQuery) ([]RecommendationDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	catalog, err := h.challengeRepo.FindActive(ctx, challenge.DefaultListOptions().WithLimit(catalogFetchLimit))
	if err != nil {
		return nil, err
	}

	completed, err := h.participationRepo.FindCompletedByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	engaged, err := h.participationRepo.FindEngagedChallengeIDs(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	skillLevel := 0
	if h.skills != nil {
		if lvl, serr := h.skills.SkillLevel(ctx, q.UserID); serr == nil {
			skillLevel = lvl
		}
	}

	candidates := h.engine.Recommend(recommendation.Input{
		Catalog:             catalog,
		Completed:           completed,
		EngagedChallengeIDs: engaged,
		SkillLevel:          skillLevel,
	}, q.Limit)

	dtos := make([]RecommendationDTO, 0, len(candidates))
	for _, cand := range candidates {
		c := cand.Challenge
		dtos = append(dtos, RecommendationDTO{
			ChallengeID:      c.ID,
			Title:            c.Title,
			Category:         string(c.Category),
			Difficulty:       string(c.Difficulty),
			Tier:             string(c.Tier),
			XP:               c.Rewards.XP,
			ParticipantCount: c.ParticipantCount,
			EndDate:          c.EndDate,
			Score:            cand.Score,
		})
	}
	return dtos, nil
}

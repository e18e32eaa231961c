package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CHALLENGE CATALOG QUERY
// Paginated catalog listing with optional category filtering. Backed by a
// short-TTL cache because the active catalog only changes on scheduler ticks
// and admin actions.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultCatalogLimit = 50
	maxCatalogLimit     = 200

	catalogCacheTTL = 2 * time.Minute
)

// GetCatalogQuery contains the query parameters.
type GetCatalogQuery struct {
	// Category optionally filters by discipline. Empty means all.
	Category challenge.Category

	// Status filters by lifecycle state. Empty means active.
	Status challenge.Status

	// Limit/Offset paginate the result.
	Limit  int
	Offset int
}

// Validate validates and normalizes the query.
func (q *GetCatalogQuery) Validate() error {
	if q.Status == "" {
		q.Status = challenge.StatusActive
	}
	if !q.Status.IsValid() {
		return errors.New("get_catalog: unknown status")
	}
	if q.Category != "" && !q.Category.IsValid() {
		return errors.New("get_catalog: unknown category")
	}
	if q.Limit <= 0 {
		q.Limit = defaultCatalogLimit
	}
	if q.Limit > maxCatalogLimit {
		q.Limit = maxCatalogLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return nil
}

// cacheKey builds a stable key covering every filter dimension.
func (q GetCatalogQuery) cacheKey() string {
	return fmt.Sprintf("%s:%s:%d:%d", q.Status, q.Category, q.Limit, q.Offset)
}

// ChallengeSummaryDTO is one catalog entry for API consumers.
type ChallengeSummaryDTO struct {
	ChallengeID      string     `json:"challenge_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	Difficulty       string     `json:"difficulty"`
	Type             string     `json:"type"`
	Tier             string     `json:"tier"`
	Status           string     `json:"status"`
	XP               int        `json:"xp"`
	Badges           []string   `json:"badges,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	SeriesID         string     `json:"series_id,omitempty"`
	SeriesOrder      int        `json:"series_order,omitempty"`
	ParticipantCount int        `json:"participant_count"`
}

// GetCatalogHandler handles the query.
type GetCatalogHandler struct {
	challengeRepo ChallengeReader
	cache         CatalogCache
}

// NewGetCatalogHandler creates the handler. Cache may be nil.
func NewGetCatalogHandler(challengeRepo ChallengeReader, cache CatalogCache) *GetCatalogHandler {
	return &GetCatalogHandler{challengeRepo: challengeRepo, cache: cache}
}

// Handle executes the query.
func (h *GetCatalogHandler) Handle(ctx context.Context, q GetCatalogQuery) ([]ChallengeSummaryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := q.cacheKey()
	if h.cache != nil {
		if cached, ok := h.cache.GetCatalog(ctx, key); ok {
			return toSummaryDTOs(cached), nil
		}
	}

	opts := challenge.DefaultListOptions().WithLimit(q.Limit).WithOffset(q.Offset)

	var (
		challenges []*challenge.Challenge
		err        error
	)
	if q.Category != "" {
		challenges, err = h.challengeRepo.FindByCategory(ctx, q.Category, q.Status, opts)
	} else if q.Status == challenge.StatusActive {
		challenges, err = h.challengeRepo.FindActive(ctx, opts)
	} else {
		challenges, err = h.challengeRepo.FindByStatus(ctx, q.Status, opts)
	}
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		h.cache.SetCatalog(ctx, key, challenges, catalogCacheTTL)
	}
	return toSummaryDTOs(challenges), nil
}

func toSummaryDTOs(challenges []*challenge.Challenge) []ChallengeSummaryDTO {
	dtos := make([]ChallengeSummaryDTO, 0, len(challenges))
	for _, c := range challenges {
		dtos = append(dtos, ChallengeSummaryDTO{
			ChallengeID:      c.ID,
			Title:            c.Title,
			Description:      c.Description,
			Category:         string(c.Category),
			Difficulty:       string(c.Difficulty),
			Type:             string(c.Type),
			Tier:             string(c.Tier),
			Status:           string(c.Status),
			XP:               c.Rewards.XP,
			Badges:           c.Rewards.Badges,
			StartDate:        c.StartDate,
			EndDate:          c.EndDate,
			SeriesID:         c.SeriesID,
			SeriesOrder:      c.SeriesOrder,
			ParticipantCount: c.ParticipantCount,
		})
	}
	return dtos
}

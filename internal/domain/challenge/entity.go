// Package challenge contains the domain model for challenge definitions:
// the catalog entries users can join, their lifecycle states, reward
// definitions, and recurring templates. This is core business logic with no
// infrastructure dependencies.
package challenge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Category identifies the creative discipline a challenge belongs to.
type Category string

const (
	CategoryDesign      Category = "design"
	CategoryDevelopment Category = "development"
	CategoryAudio       Category = "audio"
	CategoryVideo       Category = "video"
	CategoryWriting     Category = "writing"
	CategoryPhotography Category = "photography"
	Category3D          Category = "3d"
	CategoryMixedMedia  Category = "mixed_media"
)

// AllCategories lists every valid category, in canonical order.
var AllCategories = []Category{
	CategoryDesign, CategoryDevelopment, CategoryAudio, CategoryVideo,
	CategoryWriting, CategoryPhotography, Category3D, CategoryMixedMedia,
}

// IsValid checks that the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDesign, CategoryDevelopment, CategoryAudio, CategoryVideo,
		CategoryWriting, CategoryPhotography, Category3D, CategoryMixedMedia:
		return true
	default:
		return false
	}
}

// String returns the string representation of the category.
func (c Category) String() string { return string(c) }

// Difficulty represents the skill band a challenge targets.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// IsValid checks that the difficulty is one of the known values.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	default:
		return false
	}
}

// Band returns the numeric band of the difficulty (beginner = 1).
// Used for difficulty-proximity scoring in recommendations.
func (d Difficulty) Band() int {
	switch d {
	case DifficultyBeginner:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	case DifficultyExpert:
		return 4
	default:
		return 0
	}
}

// Type classifies the shape of a challenge.
type Type string

const (
	TypeSkill         Type = "skill"
	TypeIndustry      Type = "industry"
	TypeQuick         Type = "quick"
	TypeComprehensive Type = "comprehensive"
	TypeDaily         Type = "daily"
	TypeWeekly        Type = "weekly"
	TypeMonthly       Type = "monthly"
	TypeSeries        Type = "series"
)

// IsValid checks that the type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeSkill, TypeIndustry, TypeQuick, TypeComprehensive,
		TypeDaily, TypeWeekly, TypeMonthly, TypeSeries:
		return true
	default:
		return false
	}
}

// Status represents the lifecycle state of a challenge definition.
// Transitions between statuses go through Transition (lifecycle.go) only.
type Status string

const (
	// StatusDraft - the challenge is being authored and is not visible.
	StatusDraft Status = "draft"
	// StatusScheduled - the challenge has a future start date.
	StatusScheduled Status = "scheduled"
	// StatusActive - the challenge is open for joining and submissions.
	StatusActive Status = "active"
	// StatusCompleted - the challenge window has closed.
	StatusCompleted Status = "completed"
	// StatusArchived - terminal. Archived challenges are immutable.
	StatusArchived Status = "archived"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses with no outgoing transitions other
// than force-archive.
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// IsJoinable returns true if users may join a challenge in this status.
func (s Status) IsJoinable() bool {
	return s == StatusActive
}

// Tier identifies the progression rung a challenge belongs to.
// Tiers are reward bands, never joinability gates.
type Tier string

const (
	// TierSolo - individual foundation challenges.
	TierSolo Tier = "SOLO"
	// TierTrade - paired skill-exchange challenges.
	TierTrade Tier = "TRADE"
	// TierCollaboration - team challenges.
	TierCollaboration Tier = "COLLABORATION"
)

// AllTiers lists the tiers in ladder order.
var AllTiers = []Tier{TierSolo, TierTrade, TierCollaboration}

// IsValid checks that the tier is one of the known values.
func (t Tier) IsValid() bool {
	switch t {
	case TierSolo, TierTrade, TierCollaboration:
		return true
	default:
		return false
	}
}

// Rung returns the ladder position of the tier (SOLO = 1).
func (t Tier) Rung() int {
	switch t {
	case TierSolo:
		return 1
	case TierTrade:
		return 2
	case TierCollaboration:
		return 3
	default:
		return 0
	}
}

// Previous returns the tier one rung below, or false for SOLO.
func (t Tier) Previous() (Tier, bool) {
	switch t {
	case TierTrade:
		return TierSolo, true
	case TierCollaboration:
		return TierTrade, true
	default:
		return "", false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// Rewards defines what a participant earns on completion.
type Rewards struct {
	// XP is the base experience awarded at completion, before tier multipliers.
	XP int

	// Badges is the set of badge IDs granted at completion.
	Badges []string

	// BonusCriteria are opaque descriptors of optional bonus conditions
	// (e.g. "first_50_finishers"). Evaluated by the reward ledger, not here.
	BonusCriteria []string
}

// IsValid checks the rewards definition.
func (r Rewards) IsValid() bool {
	return r.XP >= 0
}

// BadgeSet returns the badges as a lookup set.
func (r Rewards) BadgeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Badges))
	for _, b := range r.Badges {
		set[b] = struct{}{}
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge is a challenge definition: a task with a reward and an optional
// time window. Participation records reference challenges by ID.
type Challenge struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// TemplateID links a materialized instance back to its recurring
	// template. Empty for one-off challenges.
	TemplateID string

	// Title is the short display name.
	Title string

	// Description is the full challenge brief. Opaque content.
	Description string

	// Category is the creative discipline.
	Category Category

	// Difficulty is the targeted skill band.
	Difficulty Difficulty

	// Type classifies the challenge shape and drives the review policy.
	Type Type

	// Tier is the progression rung this challenge belongs to.
	Tier Tier

	// StartDate/EndDate bound the active window. Nil for untimed drafts.
	StartDate *time.Time
	EndDate   *time.Time

	// Status is the lifecycle state. Mutated only through Transition.
	Status Status

	// Rewards defines completion rewards.
	Rewards Rewards

	// SeriesID/SeriesOrder link challenges into an ordered series.
	SeriesID    string
	SeriesOrder int

	// ParticipantCount is derived from participation records. It only
	// grows while the challenge is active.
	ParticipantCount int

	// CreatedAt/UpdatedAt are record timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidTitle - title is missing or too long.
	ErrInvalidTitle = errors.New("invalid title: must be 1-200 chars")

	// ErrInvalidCategory - unknown category value.
	ErrInvalidCategory = errors.New("invalid challenge category")

	// ErrInvalidDifficulty - unknown difficulty value.
	ErrInvalidDifficulty = errors.New("invalid challenge difficulty")

	// ErrInvalidType - unknown challenge type value.
	ErrInvalidType = errors.New("invalid challenge type")

	// ErrInvalidTier - unknown tier value.
	ErrInvalidTier = errors.New("invalid challenge tier")

	// ErrInvalidStatus - unknown status value.
	ErrInvalidStatus = errors.New("invalid challenge status")

	// ErrInvalidRewards - negative XP or malformed rewards.
	ErrInvalidRewards = errors.New("invalid rewards: xp must be non-negative")

	// ErrInvalidWindow - startDate after endDate.
	ErrInvalidWindow = errors.New("invalid window: start date must not be after end date")

	// ErrChallengeNotFound - challenge does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeAlreadyExists - duplicate challenge ID.
	ErrChallengeAlreadyExists = errors.New("challenge already exists")

	// ErrArchivedImmutable - archived challenges reject all mutation.
	ErrArchivedImmutable = errors.New("archived challenge is immutable")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewChallengeParams contains parameters for creating a new challenge.
type NewChallengeParams struct {
	ID          string
	TemplateID  string
	Title       string
	Description string
	Category    Category
	Difficulty  Difficulty
	Type        Type
	Tier        Tier
	StartDate   *time.Time
	EndDate     *time.Time
	Rewards     Rewards
	SeriesID    string
	SeriesOrder int
}

// NewChallenge creates a challenge in draft status with all fields validated.
func NewChallenge(params NewChallengeParams) (*Challenge, error) {
	if params.ID == "" {
		return nil, errors.New("challenge id is required")
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	if !params.Category.IsValid() {
		return nil, ErrInvalidCategory
	}
	if !params.Difficulty.IsValid() {
		return nil, ErrInvalidDifficulty
	}
	if !params.Type.IsValid() {
		return nil, ErrInvalidType
	}
	if !params.Tier.IsValid() {
		return nil, ErrInvalidTier
	}
	if !params.Rewards.IsValid() {
		return nil, ErrInvalidRewards
	}
	if err := validateWindow(params.StartDate, params.EndDate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	return &Challenge{
		ID:          params.ID,
		TemplateID:  params.TemplateID,
		Title:       title,
		Description: params.Description,
		Category:    params.Category,
		Difficulty:  params.Difficulty,
		Type:        params.Type,
		Tier:        params.Tier,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		Status:      StatusDraft,
		Rewards:     params.Rewards,
		SeriesID:    params.SeriesID,
		SeriesOrder: params.SeriesOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// validateWindow enforces startDate <= endDate when both are present.
func validateWindow(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return ErrInvalidWindow
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// HasStarted returns true if the challenge window has opened at the given time.
// Untimed challenges never start on their own.
func (c *Challenge) HasStarted(at time.Time) bool {
	return c.StartDate != nil && !c.StartDate.After(at)
}

// HasEnded returns true if the challenge window has closed at the given time.
// Challenges without an end date never expire on their own.
func (c *Challenge) HasEnded(at time.Time) bool {
	return c.EndDate != nil && !c.EndDate.After(at)
}

// IsJoinable returns true if users can join the challenge right now.
func (c *Challenge) IsJoinable() bool {
	return c.Status.IsJoinable()
}

// PartOfSeries returns true if the challenge belongs to an ordered series.
func (c *Challenge) PartOfSeries() bool {
	return c.SeriesID != ""
}

// RecordParticipant bumps the derived participant count. Only legal while
// the challenge is active; the count never decreases.
func (c *Challenge) RecordParticipant() error {
	if c.Status != StatusActive {
		return shared.ErrChallengeNotJoinable
	}
	c.ParticipantCount++
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// String returns a compact representation for logging.
func (c *Challenge) String() string {
	return fmt.Sprintf(
		"Challenge{ID: %s, Title: %q, Tier: %s, Status: %s}",
		c.ID, c.Title, c.Tier, c.Status,
	)
}

// Clone creates a copy of the challenge. The rewards slices are copied so
// mutations on the clone never leak back.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}

	clone := *c
	if c.StartDate != nil {
		start := *c.StartDate
		clone.StartDate = &start
	}
	if c.EndDate != nil {
		end := *c.EndDate
		clone.EndDate = &end
	}
	clone.Rewards.Badges = append([]string(nil), c.Rewards.Badges...)
	clone.Rewards.BonusCriteria = append([]string(nil), c.Rewards.BonusCriteria...)
	return &clone
}

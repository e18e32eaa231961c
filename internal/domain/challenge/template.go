package challenge

import (
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECURRING TEMPLATES
// ══════════════════════════════════════════════════════════════════════════════

// Recurrence is the rule for regenerating time-boxed challenge instances.
type Recurrence string

const (
	// RecurrenceNone - the template does not recur.
	RecurrenceNone Recurrence = "none"
	// RecurrenceDaily - one instance per day.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekly - one instance per ISO week (Monday-Sunday).
	RecurrenceWeekly Recurrence = "weekly"
	// RecurrenceMonthly - one instance per calendar month.
	RecurrenceMonthly Recurrence = "monthly"
)

// IsValid checks that the recurrence is one of the known values.
func (r Recurrence) IsValid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// Recurs returns true if the rule produces instances.
func (r Recurrence) Recurs() bool {
	return r == RecurrenceDaily || r == RecurrenceWeekly || r == RecurrenceMonthly
}

// Template domain errors.
var (
	// ErrTemplateNotFound - template does not exist.
	ErrTemplateNotFound = errors.New("challenge template not found")

	// ErrInvalidRecurrence - unknown recurrence value.
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")

	// ErrTemplateNotRecurring - template has no recurrence rule.
	ErrTemplateNotRecurring = errors.New("template is not recurring")
)

// Template is a reusable challenge definition. Templates with a recurrence
// rule are materialized into scheduled Challenge instances by the scheduler.
type Template struct {
	// ID is the unique identifier.
	ID string

	// Title/Description/Category/Difficulty/Type/Tier/Rewards carry over
	// verbatim onto materialized instances.
	Title       string
	Description string
	Category    Category
	Difficulty  Difficulty
	Type        Type
	Tier        Tier
	Rewards     Rewards

	// Recurrence is the regeneration rule.
	Recurrence Recurrence

	// Enabled disables materialization without deleting the template.
	Enabled bool

	// CreatedAt/UpdatedAt are record timestamps.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTemplateParams contains parameters for creating a template.
type NewTemplateParams struct {
	ID          string
	Title       string
	Description string
	Category    Category
	Difficulty  Difficulty
	Type        Type
	Tier        Tier
	Rewards     Rewards
	Recurrence  Recurrence
}

// NewTemplate creates a template with all fields validated.
func NewTemplate(params NewTemplateParams) (*Template, error) {
	if params.ID == "" {
		return nil, errors.New("template id is required")
	}
	if params.Title == "" {
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
	if !params.Recurrence.IsValid() {
		return nil, ErrInvalidRecurrence
	}

	now := time.Now().UTC()

	return &Template{
		ID:          params.ID,
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Difficulty:  params.Difficulty,
		Type:        params.Type,
		Tier:        params.Tier,
		Rewards:     params.Rewards,
		Recurrence:  params.Recurrence,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NextWindow computes the start and end of the next recurrence window that
// opens at or after the given time. Windows are aligned to UTC day, ISO
// week, and calendar month boundaries so repeated materialization runs
// compute identical windows.
func (t *Template) NextWindow(after time.Time) (start, end time.Time, err error) {
	if !t.Recurrence.Recurs() {
		return time.Time{}, time.Time{}, ErrTemplateNotRecurring
	}

	switch t.Recurrence {
	case RecurrenceDaily:
		start, end = timeutil.NextDayWindow(after)
	case RecurrenceWeekly:
		start, end = timeutil.NextWeekWindow(after)
	case RecurrenceMonthly:
		start, end = timeutil.NextMonthWindow(after)
	}

	return start, end, nil
}

// Materialize creates a new scheduled-ready Challenge instance for the next
// window after the given time. The caller persists it and transitions it to
// scheduled through the state machine.
func (t *Template) Materialize(instanceID string, after time.Time) (*Challenge, error) {
	start, end, err := t.NextWindow(after)
	if err != nil {
		return nil, err
	}

	c, err := NewChallenge(NewChallengeParams{
		ID:          instanceID,
		TemplateID:  t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Difficulty:  t.Difficulty,
		Type:        t.Type,
		Tier:        t.Tier,
		StartDate:   &start,
		EndDate:     &end,
		Rewards:     t.Rewards,
	})
	if err != nil {
		return nil, err
	}

	return c, nil
}

package challenge

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the contract with the persistence layer.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the persistence operations for challenges.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create persists a new challenge.
	// Returns ErrChallengeAlreadyExists if the ID is taken.
	Create(ctx context.Context, c *Challenge) error

	// GetByID returns a challenge by ID.
	// Returns ErrChallengeNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Challenge, error)

	// Update persists challenge changes.
	// Returns ErrChallengeNotFound if it does not exist and
	// ErrArchivedImmutable if the stored challenge is archived.
	Update(ctx context.Context, c *Challenge) error

	// ─────────────────────────────────────────────────────────────────────────
	// Status Queries (scheduler candidate sets)
	// ─────────────────────────────────────────────────────────────────────────

	// FindByStatus returns challenges with the given status.
	FindByStatus(ctx context.Context, status Status, opts ListOptions) ([]*Challenge, error)

	// FindDueForActivation returns scheduled challenges whose start date has
	// arrived at the given time.
	FindDueForActivation(ctx context.Context, now time.Time) ([]*Challenge, error)

	// FindDueForCompletion returns active challenges whose end date has
	// passed at the given time.
	FindDueForCompletion(ctx context.Context, now time.Time) ([]*Challenge, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog Queries
	// ─────────────────────────────────────────────────────────────────────────

	// FindActive returns the active challenge catalog.
	FindActive(ctx context.Context, opts ListOptions) ([]*Challenge, error)

	// FindByCategory returns challenges of the given category and status.
	FindByCategory(ctx context.Context, category Category, status Status, opts ListOptions) ([]*Challenge, error)

	// FindBySeries returns the challenges of a series ordered by SeriesOrder.
	FindBySeries(ctx context.Context, seriesID string) ([]*Challenge, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Recurrence Support
	// ─────────────────────────────────────────────────────────────────────────

	// FindUnexpiredByTemplate returns instances of a template whose end date
	// has not passed (scheduled or active). Used to guard against double
	// materialization.
	FindUnexpiredByTemplate(ctx context.Context, templateID string, now time.Time) ([]*Challenge, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Derived Counters
	// ─────────────────────────────────────────────────────────────────────────

	// IncrementParticipantCount bumps the derived participant counter.
	// The counter never decreases.
	IncrementParticipantCount(ctx context.Context, id string) error

	// Count returns the number of challenges with the given status.
	Count(ctx context.Context, status Status) (int, error)
}

// TemplateRepository defines persistence operations for recurring templates.
type TemplateRepository interface {
	// Create persists a new template.
	Create(ctx context.Context, t *Template) error

	// GetByID returns a template by ID.
	// Returns ErrTemplateNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Template, error)

	// Update persists template changes.
	Update(ctx context.Context, t *Template) error

	// FindRecurring returns all enabled templates with a recurrence rule.
	FindRecurring(ctx context.Context) ([]*Template, error)
}

// ListOptions contains pagination and sorting parameters.
type ListOptions struct {
	// Offset - pagination offset.
	Offset int

	// Limit - maximum number of records. Zero means the default.
	Limit int

	// SortBy - sort field (repository-defined column names).
	SortBy string

	// SortDesc - descending sort.
	SortDesc bool
}

// DefaultListOptions returns the default pagination.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    100,
		SortBy:   "start_date",
		SortDesc: true,
	}
}

// WithLimit sets the limit.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithOffset sets the offset.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithSort sets the sort field and direction.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

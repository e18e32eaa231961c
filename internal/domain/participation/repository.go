package participation

import (
	"context"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence. The store must support
// a conditional write (compare-and-set on status) for CompleteWithRewards.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines the persistence operations for participation records.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create persists a new participation record.
	// Returns ErrRecordAlreadyExists if (userID, challengeID) is taken.
	Create(ctx context.Context, uc *UserChallenge) error

	// Get returns the record for (userID, challengeID).
	// Returns ErrRecordNotFound if it does not exist.
	Get(ctx context.Context, userID, challengeID string) (*UserChallenge, error)

	// Update persists record changes, including appended submissions.
	Update(ctx context.Context, uc *UserChallenge) error

	// ─────────────────────────────────────────────────────────────────────────
	// Reward Issuance (compare-and-set)
	// ─────────────────────────────────────────────────────────────────────────

	// CompleteWithRewards atomically moves the record to completed and
	// populates xpEarned/badgesEarned, writing only if the stored status is
	// not already completed. Returns true if this call performed the write
	// and false if another writer completed the record first. This is the
	// at-most-once reward guarantee.
	CompleteWithRewards(ctx context.Context, userID, challengeID string, xp int, badges []string, completedAt time.Time) (bool, error)

	// ─────────────────────────────────────────────────────────────────────────
	// History Queries
	// ─────────────────────────────────────────────────────────────────────────

	// FindByUser returns all records for a user, newest first.
	FindByUser(ctx context.Context, userID string) ([]*UserChallenge, error)

	// FindCompletedByUser returns the user's completed records. This is the
	// input to progression and recommendation computation.
	FindCompletedByUser(ctx context.Context, userID string) ([]*UserChallenge, error)

	// FindEngagedChallengeIDs returns the IDs of challenges the user has
	// joined in any non-terminal status plus completed. Used to exclude
	// challenges from recommendations.
	FindEngagedChallengeIDs(ctx context.Context, userID string) ([]string, error)

	// FindUnfinishedByChallenge returns joined/in_progress records for a
	// challenge. Used by the completion job to fail lingering work.
	FindUnfinishedByChallenge(ctx context.Context, challengeID string) ([]*UserChallenge, error)

	// CountCompletedByTier returns the user's completed-challenge counts per
	// tier. Cheap aggregate for cache invalidation keys.
	CountCompletedByTier(ctx context.Context, userID string) (map[challenge.Tier]int, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Submissions
	// ─────────────────────────────────────────────────────────────────────────

	// AppendSubmission persists a submission record and links it to the
	// participation history. Submissions are immutable once written.
	AppendSubmission(ctx context.Context, sub *Submission) error

	// GetSubmissions returns the submission history for (userID,
	// challengeID), oldest first.
	GetSubmissions(ctx context.Context, userID, challengeID string) ([]Submission, error)
}

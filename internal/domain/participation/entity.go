// Package participation contains the domain model for a user's participation
// in a challenge: the UserChallenge record, its submission history, and the
// participation state machine. Records are keyed by (userID, challengeID) and
// are never deleted - terminal states are retained for history and
// progression calculations.
package participation

import (
	"errors"
	"fmt"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status represents the state of a participation record.
// Transitions between statuses go through Advance (lifecycle.go) only.
type Status string

const (
	// StatusJoined - the user joined but has not submitted anything.
	StatusJoined Status = "joined"
	// StatusInProgress - at least one progress update was submitted.
	StatusInProgress Status = "in_progress"
	// StatusSubmitted - the final submission was created.
	StatusSubmitted Status = "submitted"
	// StatusPendingReview - the final submission awaits review.
	StatusPendingReview Status = "pending_review"
	// StatusCompleted - terminal. Rewards are populated exactly once here.
	StatusCompleted Status = "completed"
	// StatusAbandoned - terminal. Explicit user action or inactivity policy.
	StatusAbandoned Status = "abandoned"
	// StatusFailed - terminal. Review rejected or challenge expired.
	StatusFailed Status = "failed"
)

// IsValid checks that the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusJoined, StatusInProgress, StatusSubmitted, StatusPendingReview,
		StatusCompleted, StatusAbandoned, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed, abandoned and failed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusFailed
}

// CountsAsEngaged returns true for statuses that exclude a challenge from
// recommendations: any non-terminal status plus completed.
func (s Status) CountsAsEngaged() bool {
	return !s.IsTerminal() || s == StatusCompleted
}

// SubmissionType distinguishes progress updates from the final submission.
type SubmissionType string

const (
	// SubmissionProgressUpdate - an intermediate progress report.
	SubmissionProgressUpdate SubmissionType = "progress_update"
	// SubmissionFinal - the final submission that closes the work.
	SubmissionFinal SubmissionType = "final_submission"
)

// IsValid checks that the submission type is one of the known values.
func (t SubmissionType) IsValid() bool {
	return t == SubmissionProgressUpdate || t == SubmissionFinal
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSIONS
// ══════════════════════════════════════════════════════════════════════════════

// EvidenceLink is an externally-hosted proof-of-work reference. The preview
// metadata comes from the link resolver and is stored verbatim; this core
// never interprets it.
type EvidenceLink struct {
	// URL is the evidence location.
	URL string

	// Platform/Title/Thumbnail/DurationOrSize are resolver-provided preview
	// metadata. May be empty if resolution failed.
	Platform       string
	Title          string
	Thumbnail      string
	DurationOrSize string
}

// Submission is an immutable record of one progress update or final
// submission.
type Submission struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// UserID/ChallengeID identify the owning participation record.
	UserID      string
	ChallengeID string

	// Content is the submission text. Opaque.
	Content string

	// EvidenceLinks are proof-of-work references with preview metadata.
	EvidenceLinks []EvidenceLink

	// Type distinguishes progress updates from the final submission.
	Type SubmissionType

	// CreatedAt is the submission timestamp.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// UserChallenge is one user's participation record for one challenge.
// The composite key (UserID, ChallengeID) is unique.
type UserChallenge struct {
	// UserID is the opaque authenticated user identifier.
	UserID string

	// ChallengeID references the challenge definition.
	ChallengeID string

	// Tier is denormalized from the challenge at join time so progression
	// can be computed from participation records alone.
	Tier challenge.Tier

	// Category is denormalized from the challenge at join time for
	// recommendation affinity scoring.
	Category challenge.Category

	// Status is the participation state. Mutated only through Advance.
	Status Status

	// Progress/MaxProgress track advancement: 0 <= Progress <= MaxProgress.
	Progress    int
	MaxProgress int

	// JoinedAt/SubmittedAt/CompletedAt are monotonically ordered when present.
	JoinedAt    time.Time
	SubmittedAt *time.Time
	CompletedAt *time.Time

	// XPEarned/BadgesEarned are populated exactly once, at completion, and
	// are immutable thereafter.
	XPEarned     int
	BadgesEarned []string

	// Submissions is the append-only submission history, oldest first.
	Submissions []Submission

	// UpdatedAt is the record timestamp.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrRecordNotFound - no participation record for (user, challenge).
	ErrRecordNotFound = errors.New("participation record not found")

	// ErrRecordAlreadyExists - duplicate (user, challenge) record.
	ErrRecordAlreadyExists = errors.New("participation record already exists")

	// ErrInvalidProgress - progress outside [0, maxProgress].
	ErrInvalidProgress = errors.New("invalid progress: must be within [0, max]")

	// ErrInvalidSubmission - submission fails validation.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrTerminalState - record is in a terminal state and rejects mutation.
	ErrTerminalState = errors.New("participation record is in a terminal state")

	// ErrRewardsAlreadyIssued - completion rewards were already populated.
	ErrRewardsAlreadyIssued = errors.New("rewards already issued for this participation")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewUserChallenge creates a participation record in joined status.
func NewUserChallenge(userID, challengeID string, tier challenge.Tier, category challenge.Category, maxProgress int) (*UserChallenge, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if challengeID == "" {
		return nil, errors.New("challenge id is required")
	}
	if !tier.IsValid() {
		return nil, challenge.ErrInvalidTier
	}
	if !category.IsValid() {
		return nil, challenge.ErrInvalidCategory
	}
	if maxProgress < 0 {
		return nil, ErrInvalidProgress
	}
	if maxProgress == 0 {
		maxProgress = 1
	}

	now := time.Now().UTC()

	return &UserChallenge{
		UserID:      userID,
		ChallengeID: challengeID,
		Tier:        tier,
		Category:    category,
		Status:      StatusJoined,
		Progress:    0,
		MaxProgress: maxProgress,
		JoinedAt:    now,
		Submissions: make([]Submission, 0),
		UpdatedAt:   now,
	}, nil
}

// NewSubmission creates a validated submission record.
func NewSubmission(id, userID, challengeID, content string, links []EvidenceLink, subType SubmissionType) (*Submission, error) {
	if id == "" || userID == "" || challengeID == "" {
		return nil, ErrInvalidSubmission
	}
	if !subType.IsValid() {
		return nil, ErrInvalidSubmission
	}
	if content == "" && len(links) == 0 {
		return nil, ErrInvalidSubmission
	}

	return &Submission{
		ID:            id,
		UserID:        userID,
		ChallengeID:   challengeID,
		Content:       content,
		EvidenceLinks: append([]EvidenceLink(nil), links...),
		Type:          subType,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// AppendSubmission adds a submission to the append-only history. Legal only
// in non-terminal states.
func (uc *UserChallenge) AppendSubmission(sub Submission) error {
	if uc.Status.IsTerminal() {
		return ErrTerminalState
	}
	uc.Submissions = append(uc.Submissions, sub)
	uc.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateProgress sets the progress counter, clamped to valid bounds.
func (uc *UserChallenge) UpdateProgress(progress int) error {
	if uc.Status.IsTerminal() {
		return ErrTerminalState
	}
	if progress < 0 || progress > uc.MaxProgress {
		return ErrInvalidProgress
	}
	uc.Progress = progress
	uc.UpdatedAt = time.Now().UTC()
	return nil
}

// IssueRewards populates XPEarned/BadgesEarned. Legal exactly once, and only
// when the record is completed. The persistence layer additionally enforces
// this with a conditional write; this guard catches in-process misuse.
func (uc *UserChallenge) IssueRewards(xp int, badges []string) error {
	if uc.Status != StatusCompleted {
		return fmt.Errorf("cannot issue rewards in status %q", uc.Status)
	}
	if uc.XPEarned != 0 || len(uc.BadgesEarned) > 0 {
		return ErrRewardsAlreadyIssued
	}
	uc.XPEarned = xp
	uc.BadgesEarned = append([]string(nil), badges...)
	uc.UpdatedAt = time.Now().UTC()
	return nil
}

// LatestSubmission returns the most recent submission, or nil.
func (uc *UserChallenge) LatestSubmission() *Submission {
	if len(uc.Submissions) == 0 {
		return nil
	}
	return &uc.Submissions[len(uc.Submissions)-1]
}

// String returns a compact representation for logging.
func (uc *UserChallenge) String() string {
	return fmt.Sprintf(
		"UserChallenge{User: %s, Challenge: %s, Status: %s, Progress: %d/%d}",
		uc.UserID, uc.ChallengeID, uc.Status, uc.Progress, uc.MaxProgress,
	)
}

// Clone creates a deep copy of the participation record.
func (uc *UserChallenge) Clone() *UserChallenge {
	if uc == nil {
		return nil
	}

	clone := *uc
	if uc.SubmittedAt != nil {
		t := *uc.SubmittedAt
		clone.SubmittedAt = &t
	}
	if uc.CompletedAt != nil {
		t := *uc.CompletedAt
		clone.CompletedAt = &t
	}
	clone.BadgesEarned = append([]string(nil), uc.BadgesEarned...)
	clone.Submissions = append([]Submission(nil), uc.Submissions...)
	return &clone
}

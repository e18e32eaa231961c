package command

import (
	"context"
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/progression"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW SUBMISSION COMMAND
// Resolves a pending_review record: approval completes it with rewards
// through the same conditional write as auto-approved submissions, rejection
// moves it to failed.
// ══════════════════════════════════════════════════════════════════════════════

// ReviewDecision is the reviewer's verdict.
type ReviewDecision string

const (
	// DecisionApprove completes the record and issues rewards.
	DecisionApprove ReviewDecision = "approve"
	// DecisionReject fails the record. No rewards.
	DecisionReject ReviewDecision = "reject"
)

// ReviewSubmissionCommand contains the review verdict.
type ReviewSubmissionCommand struct {
	// UserID/ChallengeID identify the record under review.
	UserID      string
	ChallengeID string

	// ReviewerID is recorded for audit logging only.
	ReviewerID string

	// Decision is approve or reject.
	Decision ReviewDecision
}

// Validate validates the command.
func (c ReviewSubmissionCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("review_submission: user_id is required")
	}
	if c.ChallengeID == "" {
		return errors.New("review_submission: challenge_id is required")
	}
	if c.Decision != DecisionApprove && c.Decision != DecisionReject {
		return errors.New("review_submission: decision must be approve or reject")
	}
	return nil
}

// ReviewSubmissionResult contains the resolved record.
type ReviewSubmissionResult struct {
	// Record is the record after the verdict was applied.
	Record *participation.UserChallenge

	// XPAwarded is the XP written on approval. Zero on rejection.
	XPAwarded int

	// AlreadyCompleted is true when a concurrent writer completed the record
	// before this review landed.
	AlreadyCompleted bool
}

// ReviewSubmissionHandler handles the ReviewSubmissionCommand.
type ReviewSubmissionHandler struct {
	challengeRepo     challenge.Repository
	participationRepo participation.Repository
	tracker           *progression.Tracker
	ledger            XPLedger
	eventPublisher    shared.EventPublisher
}

// NewReviewSubmissionHandler creates the handler. Ledger may be nil.
func NewReviewSubmissionHandler(
	challengeRepo challenge.Repository,
	participationRepo participation.Repository,
	tracker *progression.Tracker,
	ledger XPLedger,
	eventPublisher shared.EventPublisher,
) *ReviewSubmissionHandler {
	if tracker == nil {
		tracker = progression.NewTracker()
	}
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	return &ReviewSubmissionHandler{
		challengeRepo:     challengeRepo,
		participationRepo: participationRepo,
		tracker:           tracker,
		ledger:            ledger,
		eventPublisher:    eventPublisher,
	}
}

// Handle executes the command.
func (h *ReviewSubmissionHandler) Handle(ctx context.Context, cmd ReviewSubmissionCommand) (*ReviewSubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record, err := h.participationRepo.Get(ctx, cmd.UserID, cmd.ChallengeID)
	if err != nil {
		if errors.Is(err, participation.ErrRecordNotFound) {
			return nil, shared.WrapError(
				"participation", "ReviewSubmission",
				shared.ErrNotParticipating,
				"no record for user "+cmd.UserID+" on challenge "+cmd.ChallengeID,
				nil,
			)
		}
		return nil, err
	}

	now := time.Now().UTC()
	fromStatus := record.Status

	if cmd.Decision == DecisionReject {
		if err := record.RejectReview(now); err != nil {
			return nil, err
		}
		if err := h.participationRepo.Update(ctx, record); err != nil {
			return nil, err
		}
		h.publish(record, fromStatus, shared.EventParticipationFailed)
		return &ReviewSubmissionResult{Record: record}, nil
	}

	// Approval path. Validate the transition in memory before writing.
	if err := record.ApproveReview(now); err != nil {
		return nil, err
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	completed, err := h.participationRepo.FindCompletedByUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	skillLevel := 0
	if h.ledger != nil {
		if lvl, lerr := h.ledger.SkillLevel(ctx, cmd.UserID); lerr == nil {
			skillLevel = lvl
		}
	}

	profile := h.tracker.ComputeProfile(cmd.UserID, completed, skillLevel)
	xp := rewardXP(ch, profile)
	badges := append([]string(nil), ch.Rewards.Badges...)

	won, err := h.participationRepo.CompleteWithRewards(ctx, cmd.UserID, cmd.ChallengeID, xp, badges, now)
	if err != nil {
		return nil, err
	}
	if !won {
		stored, gerr := h.participationRepo.Get(ctx, cmd.UserID, cmd.ChallengeID)
		if gerr != nil {
			return nil, gerr
		}
		return &ReviewSubmissionResult{Record: stored, AlreadyCompleted: true}, nil
	}

	record.XPEarned = xp
	record.BadgesEarned = badges

	if h.ledger != nil {
		_ = h.ledger.CreditXP(ctx, cmd.UserID, xp, "challenge:"+cmd.ChallengeID)
	}

	h.publish(record, fromStatus, shared.EventParticipationCompleted)

	return &ReviewSubmissionResult{Record: record, XPAwarded: xp}, nil
}

func (h *ReviewSubmissionHandler) publish(record *participation.UserChallenge, from participation.Status, eventType shared.EventType) {
	_ = h.eventPublisher.Publish(shared.ParticipationEvent{
		BaseEvent:   shared.NewBaseEvent(eventType, record.ChallengeID),
		UserID:      record.UserID,
		ChallengeID: record.ChallengeID,
		FromStatus:  string(from),
		ToStatus:    string(record.Status),
		XPEarned:    record.XPEarned,
		Badges:      record.BadgesEarned,
	})
}

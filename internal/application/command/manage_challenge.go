package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE ADMIN COMMANDS
// Create, schedule, complete and archive operations. The scheduler jobs reuse
// CompleteChallengeCommand with the scheduler trigger so manual and automated
// completion share one code path, including the fail-out of unfinished
// participation records.
// ══════════════════════════════════════════════════════════════════════════════

// CreateChallengeCommand contains the definition for a new challenge.
type CreateChallengeCommand struct {
	Title       string
	Description string
	Category    challenge.Category
	Difficulty  challenge.Difficulty
	Type        challenge.Type
	Tier        challenge.Tier
	StartDate   *time.Time
	EndDate     *time.Time
	Rewards     challenge.Rewards
	SeriesID    string
	SeriesOrder int
}

// ScheduleChallengeCommand moves a draft challenge to scheduled.
type ScheduleChallengeCommand struct {
	ChallengeID string
	Trigger     challenge.Trigger
}

// CompleteChallengeCommand moves an active challenge to completed.
type CompleteChallengeCommand struct {
	ChallengeID string
	Trigger     challenge.Trigger

	// DueOnly restricts completion to challenges whose end date has passed.
	// The scheduler sets this; admins complete unconditionally.
	DueOnly bool

	// Now is the evaluation time. Zero means time.Now.
	Now time.Time
}

// ArchiveChallengeCommand moves a challenge to archived.
type ArchiveChallengeCommand struct {
	ChallengeID string
	Trigger     challenge.Trigger

	// Force archives from any status, not just completed. Logged on the
	// emitted event via the trigger.
	Force bool
}

// ChallengeAdminHandler executes the admin commands.
type ChallengeAdminHandler struct {
	challengeRepo     challenge.Repository
	participationRepo participation.Repository
	eventPublisher    shared.EventPublisher
	logger            *slog.Logger
}

// NewChallengeAdminHandler creates the handler.
func NewChallengeAdminHandler(
	challengeRepo challenge.Repository,
	participationRepo participation.Repository,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
) *ChallengeAdminHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeAdminHandler{
		challengeRepo:     challengeRepo,
		participationRepo: participationRepo,
		eventPublisher:    eventPublisher,
		logger:            logger,
	}
}

// HandleCreate creates a challenge in draft status.
func (h *ChallengeAdminHandler) HandleCreate(ctx context.Context, cmd CreateChallengeCommand) (*challenge.Challenge, error) {
	ch, err := challenge.NewChallenge(challenge.NewChallengeParams{
		ID:          uuid.NewString(),
		Title:       cmd.Title,
		Description: cmd.Description,
		Category:    cmd.Category,
		Difficulty:  cmd.Difficulty,
		Type:        cmd.Type,
		Tier:        cmd.Tier,
		StartDate:   cmd.StartDate,
		EndDate:     cmd.EndDate,
		Rewards:     cmd.Rewards,
		SeriesID:    cmd.SeriesID,
		SeriesOrder: cmd.SeriesOrder,
	})
	if err != nil {
		return nil, err
	}
	if err := h.challengeRepo.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// HandleSchedule moves a draft challenge to scheduled.
func (h *ChallengeAdminHandler) HandleSchedule(ctx context.Context, cmd ScheduleChallengeCommand) (*challenge.Challenge, error) {
	if cmd.ChallengeID == "" {
		return nil, errors.New("schedule_challenge: challenge_id is required")
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	from := ch.Status
	if err := ch.Schedule(cmd.Trigger, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := h.challengeRepo.Update(ctx, ch); err != nil {
		return nil, err
	}

	h.publishLifecycle(shared.EventChallengeScheduled, ch, from, cmd.Trigger)
	return ch, nil
}

// HandleComplete moves an active challenge to completed and fails its
// unfinished participation records. Submitted and pending_review records are
// left alone; they resolve through the review flow.
func (h *ChallengeAdminHandler) HandleComplete(ctx context.Context, cmd CompleteChallengeCommand) (*challenge.Challenge, error) {
	if cmd.ChallengeID == "" {
		return nil, errors.New("complete_challenge: challenge_id is required")
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	from := ch.Status
	if cmd.DueOnly {
		err = ch.CompleteDue(now)
	} else {
		err = ch.Complete(cmd.Trigger, now)
	}
	if err != nil {
		return nil, err
	}

	if err := h.challengeRepo.Update(ctx, ch); err != nil {
		return nil, err
	}

	h.publishLifecycle(shared.EventChallengeCompleted, ch, from, cmd.Trigger)
	h.failUnfinished(ctx, ch.ID, now)

	return ch, nil
}

// HandleArchive moves a challenge to archived.
func (h *ChallengeAdminHandler) HandleArchive(ctx context.Context, cmd ArchiveChallengeCommand) (*challenge.Challenge, error) {
	if cmd.ChallengeID == "" {
		return nil, errors.New("archive_challenge: challenge_id is required")
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	from := ch.Status
	if err := ch.Archive(cmd.Trigger, cmd.Force, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := h.challengeRepo.Update(ctx, ch); err != nil {
		return nil, err
	}

	h.publishLifecycle(shared.EventChallengeArchived, ch, from, cmd.Trigger)
	return ch, nil
}

// failUnfinished moves lingering joined/in_progress records of a completed
// challenge to failed. Per-record failures are skipped rather than aborting
// the batch; the next completion sweep retries them.
func (h *ChallengeAdminHandler) failUnfinished(ctx context.Context, challengeID string, now time.Time) {
	records, err := h.participationRepo.FindUnfinishedByChallenge(ctx, challengeID)
	if err != nil {
		h.logger.Error("failed to load unfinished participation records",
			"challenge_id", challengeID,
			"error", err,
		)
		return
	}

	for _, record := range records {
		from := record.Status
		if err := record.FailExpired(now); err != nil {
			h.logger.Warn("skipping participation record that cannot be failed",
				"challenge_id", challengeID,
				"user_id", record.UserID,
				"status", string(record.Status),
				"error", err,
			)
			continue
		}
		if err := h.participationRepo.Update(ctx, record); err != nil {
			h.logger.Error("failed to persist failed participation record",
				"challenge_id", challengeID,
				"user_id", record.UserID,
				"error", err,
			)
			continue
		}
		_ = h.eventPublisher.Publish(shared.ParticipationEvent{
			BaseEvent:   shared.NewBaseEvent(shared.EventParticipationFailed, challengeID),
			UserID:      record.UserID,
			ChallengeID: challengeID,
			FromStatus:  string(from),
			ToStatus:    string(record.Status),
		})
	}
}

func (h *ChallengeAdminHandler) publishLifecycle(eventType shared.EventType, ch *challenge.Challenge, from challenge.Status, trigger challenge.Trigger) {
	_ = h.eventPublisher.Publish(shared.ChallengeEvent{
		BaseEvent:   shared.NewBaseEvent(eventType, ch.ID),
		ChallengeID: ch.ID,
		FromStatus:  string(from),
		ToStatus:    string(ch.Status),
		Trigger:     string(trigger),
	})
}

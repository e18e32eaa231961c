package command

import (
	"context"
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ABANDON CHALLENGE COMMAND
// Explicit user withdrawal. Legal from any non-terminal status; the record is
// retained for history. The participant counter is intentionally not
// decremented.
// ══════════════════════════════════════════════════════════════════════════════

// AbandonChallengeCommand contains the data needed to abandon.
type AbandonChallengeCommand struct {
	// UserID is the withdrawing user.
	UserID string

	// ChallengeID is the challenge being abandoned.
	ChallengeID string
}

// Validate validates the command.
func (c AbandonChallengeCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("abandon_challenge: user_id is required")
	}
	if c.ChallengeID == "" {
		return errors.New("abandon_challenge: challenge_id is required")
	}
	return nil
}

// AbandonChallengeHandler handles the AbandonChallengeCommand.
type AbandonChallengeHandler struct {
	participationRepo participation.Repository
	eventPublisher    shared.EventPublisher
}

// NewAbandonChallengeHandler creates the handler.
func NewAbandonChallengeHandler(
	participationRepo participation.Repository,
	eventPublisher shared.EventPublisher,
) *AbandonChallengeHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	return &AbandonChallengeHandler{
		participationRepo: participationRepo,
		eventPublisher:    eventPublisher,
	}
}

// Handle executes the command.
func (h *AbandonChallengeHandler) Handle(ctx context.Context, cmd AbandonChallengeCommand) (*participation.UserChallenge, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record, err := h.participationRepo.Get(ctx, cmd.UserID, cmd.ChallengeID)
	if err != nil {
		if errors.Is(err, participation.ErrRecordNotFound) {
			return nil, shared.WrapError(
				"participation", "Abandon",
				shared.ErrNotParticipating,
				"user "+cmd.UserID+" has no record for challenge "+cmd.ChallengeID,
				nil,
			)
		}
		return nil, err
	}

	from := record.Status
	if err := record.Abandon(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := h.participationRepo.Update(ctx, record); err != nil {
		return nil, err
	}

	_ = h.eventPublisher.Publish(shared.ParticipationEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventParticipationAbandoned, cmd.ChallengeID),
		UserID:      cmd.UserID,
		ChallengeID: cmd.ChallengeID,
		FromStatus:  string(from),
		ToStatus:    string(record.Status),
	})

	return record, nil
}

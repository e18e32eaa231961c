// Package command contains write operations following the CQRS pattern.
// Each command is a self-contained use case with its own request/response
// types and explicit dependencies. Commands are the only code paths that
// mutate challenge and participation state, and they do so exclusively
// through the domain state machines.
package command

import (
	"context"
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOIN CHALLENGE COMMAND
// Creates a participation record for (user, challenge). Tiers are never a
// joinability gate: any user may join any active challenge regardless of
// progression standing.
// ══════════════════════════════════════════════════════════════════════════════

// JoinChallengeCommand contains the data needed to join a challenge.
type JoinChallengeCommand struct {
	// UserID is the opaque authenticated user identifier.
	UserID string

	// ChallengeID is the challenge to join.
	ChallengeID string

	// MaxProgress optionally overrides the progress scale for this record.
	// Zero means a single-step challenge.
	MaxProgress int
}

// Validate validates the command.
func (c JoinChallengeCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("join_challenge: user_id is required")
	}
	if c.ChallengeID == "" {
		return errors.New("join_challenge: challenge_id is required")
	}
	if c.MaxProgress < 0 {
		return errors.New("join_challenge: max_progress cannot be negative")
	}
	return nil
}

// JoinChallengeResult contains the result of joining.
type JoinChallengeResult struct {
	// Record is the created participation record.
	Record *participation.UserChallenge

	// JoinedAt is when the record was created.
	JoinedAt time.Time
}

// JoinChallengeHandler handles the JoinChallengeCommand.
type JoinChallengeHandler struct {
	challengeRepo     challenge.Repository
	participationRepo participation.Repository
	eventPublisher    shared.EventPublisher
}

// NewJoinChallengeHandler creates the handler.
func NewJoinChallengeHandler(
	challengeRepo challenge.Repository,
	participationRepo participation.Repository,
	eventPublisher shared.EventPublisher,
) *JoinChallengeHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NoopPublisher{}
	}
	return &JoinChallengeHandler{
		challengeRepo:     challengeRepo,
		participationRepo: participationRepo,
		eventPublisher:    eventPublisher,
	}
}

// Handle executes the command.
//
// Failure modes surfaced to the caller:
//   - shared.ErrChallengeNotJoinable when the challenge is not active
//   - shared.ErrAlreadyJoined when a record already exists
func (h *JoinChallengeHandler) Handle(ctx context.Context, cmd JoinChallengeCommand) (*JoinChallengeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	if !ch.IsJoinable() {
		return nil, shared.WrapError(
			"participation", "Join",
			shared.ErrChallengeNotJoinable,
			"challenge "+ch.ID+" has status "+string(ch.Status),
			nil,
		)
	}

	record, err := participation.NewUserChallenge(cmd.UserID, cmd.ChallengeID, ch.Tier, ch.Category, cmd.MaxProgress)
	if err != nil {
		return nil, err
	}

	// The unique (user_id, challenge_id) constraint in the store is the
	// real duplicate guard; a prior read would only race.
	if err := h.participationRepo.Create(ctx, record); err != nil {
		if errors.Is(err, participation.ErrRecordAlreadyExists) {
			return nil, shared.WrapError(
				"participation", "Join",
				shared.ErrAlreadyJoined,
				"user "+cmd.UserID+" already joined challenge "+cmd.ChallengeID,
				nil,
			)
		}
		return nil, err
	}

	// Participant count is a derived counter; failing to bump it must not
	// fail the join.
	if err := h.challengeRepo.IncrementParticipantCount(ctx, ch.ID); err != nil && !shared.IsNotFound(err) {
		// Count drift is repaired by the next catalog rebuild.
		_ = err
	}

	event := shared.ParticipationEvent{
		BaseEvent:   shared.NewBaseEvent(shared.EventParticipationJoined, cmd.ChallengeID),
		UserID:      cmd.UserID,
		ChallengeID: cmd.ChallengeID,
		ToStatus:    string(participation.StatusJoined),
	}
	_ = h.eventPublisher.Publish(event)

	return &JoinChallengeResult{
		Record:   record,
		JoinedAt: record.JoinedAt,
	}, nil
}

package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

func TestAbandonChallenge(t *testing.T) {
	participationRepo := newFakeParticipationRepo()
	participationRepo.seed(joinedRecord(t, "user-1", "ch-1", challenge.TierSolo))
	publisher := &capturePublisher{}

	handler := NewAbandonChallengeHandler(participationRepo, publisher)

	record, err := handler.Handle(context.Background(), AbandonChallengeCommand{
		UserID:      "user-1",
		ChallengeID: "ch-1",
	})

	require.NoError(t, err)
	assert.Equal(t, participation.StatusAbandoned, record.Status)

	stored, err := participationRepo.Get(context.Background(), "user-1", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, participation.StatusAbandoned, stored.Status)

	events := publisher.byType(shared.EventParticipationAbandoned)
	require.Len(t, events, 1)
	ev, ok := events[0].(shared.ParticipationEvent)
	require.True(t, ok)
	assert.Equal(t, string(participation.StatusJoined), ev.FromStatus)
	assert.Equal(t, string(participation.StatusAbandoned), ev.ToStatus)
}

func TestAbandonChallenge_FromPendingReview(t *testing.T) {
	participationRepo := newFakeParticipationRepo()
	uc := joinedRecord(t, "user-1", "ch-1", challenge.TierSolo)
	now := time.Now().UTC()
	require.NoError(t, uc.Advance(participation.StatusSubmitted, now))
	require.NoError(t, uc.Advance(participation.StatusPendingReview, now))
	participationRepo.seed(uc)

	handler := NewAbandonChallengeHandler(participationRepo, nil)

	record, err := handler.Handle(context.Background(), AbandonChallengeCommand{
		UserID:      "user-1",
		ChallengeID: "ch-1",
	})
	require.NoError(t, err)
	assert.Equal(t, participation.StatusAbandoned, record.Status)
}

func TestAbandonChallenge_TerminalRejected(t *testing.T) {
	participationRepo := newFakeParticipationRepo()
	uc := joinedRecord(t, "user-1", "ch-1", challenge.TierSolo)
	participationRepo.seed(uc)
	_, err := participationRepo.CompleteWithRewards(context.Background(), "user-1", "ch-1", 100, nil, time.Now().UTC())
	require.NoError(t, err)

	handler := NewAbandonChallengeHandler(participationRepo, nil)

	_, err = handler.Handle(context.Background(), AbandonChallengeCommand{
		UserID:      "user-1",
		ChallengeID: "ch-1",
	})
	assert.True(t, shared.IsInvalidTransition(err))
}

func TestAbandonChallenge_NotParticipating(t *testing.T) {
	handler := NewAbandonChallengeHandler(newFakeParticipationRepo(), nil)

	_, err := handler.Handle(context.Background(), AbandonChallengeCommand{
		UserID:      "user-1",
		ChallengeID: "ch-1",
	})
	assert.ErrorIs(t, err, shared.ErrNotParticipating)
}

func TestAbandonChallenge_Validation(t *testing.T) {
	handler := NewAbandonChallengeHandler(newFakeParticipationRepo(), nil)

	_, err := handler.Handle(context.Background(), AbandonChallengeCommand{ChallengeID: "ch-1"})
	assert.Error(t, err)

	_, err = handler.Handle(context.Background(), AbandonChallengeCommand{UserID: "user-1"})
	assert.Error(t, err)
}

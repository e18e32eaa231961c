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

func TestAdminCreate(t *testing.T) {
	challengeRepo := newFakeChallengeRepo()
	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), nil, nil)

	ch, err := handler.HandleCreate(context.Background(), CreateChallengeCommand{
		Title:      "Portrait study",
		Category:   challenge.CategoryPhotography,
		Difficulty: challenge.DifficultyAdvanced,
		Type:       challenge.TypeSkill,
		Tier:       challenge.TierSolo,
		Rewards:    challenge.Rewards{XP: 200},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.Equal(t, challenge.StatusDraft, ch.Status)

	stored, err := challengeRepo.GetByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Portrait study", stored.Title)
}

func TestAdminCreate_InvalidDefinition(t *testing.T) {
	handler := NewChallengeAdminHandler(newFakeChallengeRepo(), newFakeParticipationRepo(), nil, nil)

	_, err := handler.HandleCreate(context.Background(), CreateChallengeCommand{
		Title:      "",
		Category:   challenge.CategoryPhotography,
		Difficulty: challenge.DifficultyAdvanced,
		Type:       challenge.TypeSkill,
		Tier:       challenge.TierSolo,
	})
	assert.ErrorIs(t, err, challenge.ErrInvalidTitle)
}

func TestAdminSchedule(t *testing.T) {
	start := time.Now().UTC().Add(24 * time.Hour)
	ch := activeTestChallenge(t, "ch-1")
	ch.Status = challenge.StatusDraft
	ch.StartDate = &start
	challengeRepo := newFakeChallengeRepo(ch)
	publisher := &capturePublisher{}

	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), publisher, nil)

	out, err := handler.HandleSchedule(context.Background(), ScheduleChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})

	require.NoError(t, err)
	assert.Equal(t, challenge.StatusScheduled, out.Status)

	events := publisher.byType(shared.EventChallengeScheduled)
	require.Len(t, events, 1)
	ev, ok := events[0].(shared.ChallengeEvent)
	require.True(t, ok)
	assert.Equal(t, string(challenge.StatusDraft), ev.FromStatus)
	assert.Equal(t, string(challenge.TriggerAdmin), ev.Trigger)
}

func TestAdminSchedule_GuardRejected(t *testing.T) {
	ch := activeTestChallenge(t, "ch-1")
	ch.Status = challenge.StatusDraft
	ch.StartDate = nil
	challengeRepo := newFakeChallengeRepo(ch)
	publisher := &capturePublisher{}

	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), publisher, nil)

	_, err := handler.HandleSchedule(context.Background(), ScheduleChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})

	assert.True(t, shared.IsInvalidTransition(err))
	assert.Empty(t, publisher.events, "no event on a rejected transition")

	stored, gerr := challengeRepo.GetByID(context.Background(), "ch-1")
	require.NoError(t, gerr)
	assert.Equal(t, challenge.StatusDraft, stored.Status)
}

func TestAdminComplete_FailsUnfinishedRecords(t *testing.T) {
	ch := activeTestChallenge(t, "ch-1")
	challengeRepo := newFakeChallengeRepo(ch)
	participationRepo := newFakeParticipationRepo()
	publisher := &capturePublisher{}

	// One lingering joined record, one in progress, one submitted, one done.
	participationRepo.seed(joinedRecord(t, "user-a", "ch-1", challenge.TierSolo))

	inProgress := joinedRecord(t, "user-b", "ch-1", challenge.TierSolo)
	require.NoError(t, inProgress.RecordProgressUpdate(time.Now().UTC()))
	participationRepo.seed(inProgress)

	submitted := joinedRecord(t, "user-c", "ch-1", challenge.TierSolo)
	require.NoError(t, submitted.Advance(participation.StatusSubmitted, time.Now().UTC()))
	participationRepo.seed(submitted)

	done := joinedRecord(t, "user-d", "ch-1", challenge.TierSolo)
	participationRepo.seed(done)
	_, err := participationRepo.CompleteWithRewards(context.Background(), "user-d", "ch-1", 100, nil, time.Now().UTC())
	require.NoError(t, err)

	handler := NewChallengeAdminHandler(challengeRepo, participationRepo, publisher, nil)

	out, err := handler.HandleComplete(context.Background(), CompleteChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})

	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, out.Status)

	// joined and in_progress fail; submitted and completed are untouched.
	for user, want := range map[string]participation.Status{
		"user-a": participation.StatusFailed,
		"user-b": participation.StatusFailed,
		"user-c": participation.StatusSubmitted,
		"user-d": participation.StatusCompleted,
	} {
		stored, gerr := participationRepo.Get(context.Background(), user, "ch-1")
		require.NoError(t, gerr)
		assert.Equal(t, want, stored.Status, "user %s", user)
	}

	assert.Len(t, publisher.byType(shared.EventParticipationFailed), 2)
	assert.Len(t, publisher.byType(shared.EventChallengeCompleted), 1)
}

// brokenUpdateRepo fails Update for one user so the fail-out sweep has to
// skip past that record.
type brokenUpdateRepo struct {
	*fakeParticipationRepo
	failUser string
}

func (r *brokenUpdateRepo) Update(ctx context.Context, uc *participation.UserChallenge) error {
	if uc.UserID == r.failUser {
		return shared.ErrStoreUnavailable
	}
	return r.fakeParticipationRepo.Update(ctx, uc)
}

func TestAdminComplete_RecordFailureDoesNotAbortSweep(t *testing.T) {
	ch := activeTestChallenge(t, "ch-1")
	challengeRepo := newFakeChallengeRepo(ch)
	publisher := &capturePublisher{}

	inner := newFakeParticipationRepo()
	inner.seed(joinedRecord(t, "user-a", "ch-1", challenge.TierSolo))
	inner.seed(joinedRecord(t, "user-b", "ch-1", challenge.TierSolo))
	participationRepo := &brokenUpdateRepo{fakeParticipationRepo: inner, failUser: "user-a"}

	handler := NewChallengeAdminHandler(challengeRepo, participationRepo, publisher, nil)

	out, err := handler.HandleComplete(context.Background(), CompleteChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})

	require.NoError(t, err, "a per-record store failure must not fail the completion")
	assert.Equal(t, challenge.StatusCompleted, out.Status)

	// user-a is left for the next sweep, user-b still fails out.
	storedA, gerr := inner.Get(context.Background(), "user-a", "ch-1")
	require.NoError(t, gerr)
	assert.Equal(t, participation.StatusJoined, storedA.Status)

	storedB, gerr := inner.Get(context.Background(), "user-b", "ch-1")
	require.NoError(t, gerr)
	assert.Equal(t, participation.StatusFailed, storedB.Status)

	events := publisher.byType(shared.EventParticipationFailed)
	require.Len(t, events, 1)
	ev, ok := events[0].(shared.ParticipationEvent)
	require.True(t, ok)
	assert.Equal(t, "user-b", ev.UserID)
}

func TestAdminComplete_DueOnly(t *testing.T) {
	now := time.Now().UTC()
	ch := activeTestChallenge(t, "ch-1")
	end := now.Add(24 * time.Hour)
	ch.EndDate = &end
	challengeRepo := newFakeChallengeRepo(ch)

	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), nil, nil)

	// Window still open: the scheduler path refuses.
	_, err := handler.HandleComplete(context.Background(), CompleteChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerScheduler,
		DueOnly:     true,
		Now:         now,
	})
	assert.True(t, shared.IsInvalidTransition(err))

	// Past the end date it goes through.
	out, err := handler.HandleComplete(context.Background(), CompleteChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerScheduler,
		DueOnly:     true,
		Now:         end.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, out.Status)
}

func TestAdminArchive(t *testing.T) {
	ch := activeTestChallenge(t, "ch-1")
	ch.Status = challenge.StatusCompleted
	challengeRepo := newFakeChallengeRepo(ch)
	publisher := &capturePublisher{}

	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), publisher, nil)

	out, err := handler.HandleArchive(context.Background(), ArchiveChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})

	require.NoError(t, err)
	assert.Equal(t, challenge.StatusArchived, out.Status)
	assert.Len(t, publisher.byType(shared.EventChallengeArchived), 1)
}

func TestAdminArchive_ForceFromActive(t *testing.T) {
	ch := activeTestChallenge(t, "ch-1")
	challengeRepo := newFakeChallengeRepo(ch)

	handler := NewChallengeAdminHandler(challengeRepo, newFakeParticipationRepo(), nil, nil)

	// Without force an active challenge cannot be archived.
	_, err := handler.HandleArchive(context.Background(), ArchiveChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
	})
	assert.True(t, shared.IsInvalidTransition(err))

	out, err := handler.HandleArchive(context.Background(), ArchiveChallengeCommand{
		ChallengeID: "ch-1",
		Trigger:     challenge.TriggerAdmin,
		Force:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusArchived, out.Status)
}

func TestAdmin_ChallengeNotFound(t *testing.T) {
	handler := NewChallengeAdminHandler(newFakeChallengeRepo(), newFakeParticipationRepo(), nil, nil)

	_, err := handler.HandleSchedule(context.Background(), ScheduleChallengeCommand{ChallengeID: "missing"})
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)

	_, err = handler.HandleComplete(context.Background(), CompleteChallengeCommand{ChallengeID: "missing"})
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)

	_, err = handler.HandleArchive(context.Background(), ArchiveChallengeCommand{ChallengeID: "missing"})
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)
}

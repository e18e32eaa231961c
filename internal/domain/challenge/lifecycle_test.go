package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

func newTestChallenge(t *testing.T, status Status, start, end *time.Time) *Challenge {
	t.Helper()

	c, err := NewChallenge(NewChallengeParams{
		ID:         "ch-1",
		Title:      "Design a poster",
		Category:   CategoryDesign,
		Difficulty: DifficultyBeginner,
		Type:       TypeSkill,
		Tier:       TierSolo,
		StartDate:  start,
		EndDate:    end,
		Rewards:    Rewards{XP: 100},
	})
	require.NoError(t, err)

	c.Status = status
	return c
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusScheduled))
	assert.True(t, CanTransition(StatusScheduled, StatusActive))
	assert.True(t, CanTransition(StatusActive, StatusCompleted))
	assert.True(t, CanTransition(StatusCompleted, StatusArchived))

	assert.False(t, CanTransition(StatusDraft, StatusActive))
	assert.False(t, CanTransition(StatusDraft, StatusCompleted))
	assert.False(t, CanTransition(StatusScheduled, StatusCompleted))
	assert.False(t, CanTransition(StatusActive, StatusDraft))
	assert.False(t, CanTransition(StatusCompleted, StatusActive))
	assert.False(t, CanTransition(StatusArchived, StatusDraft))
	assert.False(t, CanTransition(StatusArchived, StatusActive))
}

func TestTransition_RejectionLeavesChallengeUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestChallenge(t, StatusDraft, nil, nil)
	before := *c

	// draft -> active skips scheduled and must be rejected.
	err := c.Transition(TransitionRequest{To: StatusActive, Trigger: TriggerAdmin, Now: now})

	require.Error(t, err)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, before.Status, c.Status)
	assert.Equal(t, before.UpdatedAt, c.UpdatedAt)
}

func TestTransition_UnknownTargetStatus(t *testing.T) {
	c := newTestChallenge(t, StatusDraft, nil, nil)

	err := c.Transition(TransitionRequest{To: Status("bogus"), Trigger: TriggerAdmin})

	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusDraft, c.Status)
}

func TestSchedule_RequiresFutureStartDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No start date at all.
	c := newTestChallenge(t, StatusDraft, nil, nil)
	err := c.Schedule(TriggerAdmin, now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusDraft, c.Status)

	// Start date in the past.
	c = newTestChallenge(t, StatusDraft, timePtr(now.Add(-time.Hour)), nil)
	err = c.Schedule(TriggerAdmin, now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusDraft, c.Status)

	// Start date exactly now is not in the future.
	c = newTestChallenge(t, StatusDraft, timePtr(now), nil)
	err = c.Schedule(TriggerAdmin, now)
	assert.True(t, shared.IsInvalidTransition(err))

	// Future start date succeeds.
	c = newTestChallenge(t, StatusDraft, timePtr(now.Add(time.Hour)), nil)
	err = c.Schedule(TriggerAdmin, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusScheduled, c.Status)
	assert.Equal(t, now, c.UpdatedAt)
}

func TestActivate_RequiresWindowOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Window not yet open.
	c := newTestChallenge(t, StatusScheduled, timePtr(now.Add(time.Hour)), nil)
	err := c.Activate(TriggerScheduler, now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusScheduled, c.Status)

	// Start date exactly now counts as open.
	c = newTestChallenge(t, StatusScheduled, timePtr(now), nil)
	err = c.Activate(TriggerScheduler, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)

	// Start date in the past counts as open.
	c = newTestChallenge(t, StatusScheduled, timePtr(now.Add(-time.Minute)), nil)
	err = c.Activate(TriggerScheduler, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, c.Status)
}

func TestComplete_ManualAlwaysLegalFromActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// End date far in the future: admin can still complete.
	c := newTestChallenge(t, StatusActive, timePtr(now.Add(-time.Hour)), timePtr(now.Add(24*time.Hour)))
	err := c.Complete(TriggerAdmin, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, c.Status)

	// No end date at all: still legal.
	c = newTestChallenge(t, StatusActive, timePtr(now.Add(-time.Hour)), nil)
	err = c.Complete(TriggerAdmin, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, c.Status)
}

func TestCompleteDue_RequiresEndDatePassed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// End date still in the future: scheduler must not complete.
	c := newTestChallenge(t, StatusActive, timePtr(now.Add(-time.Hour)), timePtr(now.Add(time.Hour)))
	err := c.CompleteDue(now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusActive, c.Status)

	// No end date: never due.
	c = newTestChallenge(t, StatusActive, timePtr(now.Add(-time.Hour)), nil)
	err = c.CompleteDue(now)
	assert.True(t, shared.IsInvalidTransition(err))

	// End date exactly now: due.
	c = newTestChallenge(t, StatusActive, timePtr(now.Add(-time.Hour)), timePtr(now))
	err = c.CompleteDue(now)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, c.Status)
}

func TestArchive_FromCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := newTestChallenge(t, StatusCompleted, nil, nil)
	err := c.Archive(TriggerAdmin, false, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusArchived, c.Status)
}

func TestArchive_ForceFromAnyNonArchivedStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusDraft, StatusScheduled, StatusActive, StatusCompleted} {
		c := newTestChallenge(t, status, nil, nil)
		err := c.Archive(TriggerAdmin, true, now)
		assert.NoError(t, err, "force-archive from %s", status)
		assert.Equal(t, StatusArchived, c.Status)
	}
}

func TestArchive_WithoutForceRejectedFromNonCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusDraft, StatusScheduled, StatusActive} {
		c := newTestChallenge(t, status, nil, nil)
		err := c.Archive(TriggerAdmin, false, now)
		assert.True(t, shared.IsInvalidTransition(err), "archive from %s without force", status)
		assert.Equal(t, status, c.Status)
	}
}

func TestArchive_AlreadyArchivedRejectedEvenWithForce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := newTestChallenge(t, StatusArchived, nil, nil)
	err := c.Archive(TriggerAdmin, true, now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusArchived, c.Status)
}

func TestFullLifecyclePath(t *testing.T) {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	c := newTestChallenge(t, StatusDraft, &start, &end)

	require.NoError(t, c.Schedule(TriggerAdmin, start.Add(-24*time.Hour)))
	require.NoError(t, c.Activate(TriggerScheduler, start))
	require.NoError(t, c.CompleteDue(end))
	require.NoError(t, c.Archive(TriggerSystem, false, end.Add(time.Hour)))

	assert.Equal(t, StatusArchived, c.Status)
}

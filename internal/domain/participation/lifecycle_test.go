package participation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

func newTestRecord(t *testing.T, status Status) *UserChallenge {
	t.Helper()

	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 3)
	require.NoError(t, err)
	uc.Status = status
	return uc
}

func TestCanTransition_Table(t *testing.T) {
	assert.True(t, CanTransition(StatusJoined, StatusInProgress))
	assert.True(t, CanTransition(StatusJoined, StatusSubmitted))
	assert.True(t, CanTransition(StatusInProgress, StatusSubmitted))
	assert.True(t, CanTransition(StatusSubmitted, StatusPendingReview))
	assert.True(t, CanTransition(StatusSubmitted, StatusCompleted))
	assert.True(t, CanTransition(StatusPendingReview, StatusCompleted))
	assert.True(t, CanTransition(StatusPendingReview, StatusFailed))

	assert.False(t, CanTransition(StatusJoined, StatusCompleted))
	assert.False(t, CanTransition(StatusInProgress, StatusJoined))
	assert.False(t, CanTransition(StatusSubmitted, StatusInProgress))
	assert.False(t, CanTransition(StatusCompleted, StatusJoined))
	assert.False(t, CanTransition(StatusFailed, StatusJoined))
	assert.False(t, CanTransition(StatusAbandoned, StatusJoined))
}

func TestAdvance_RejectionLeavesRecordUnchanged(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusJoined)
	before := *uc

	err := uc.Advance(StatusCompleted, now)

	require.Error(t, err)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, before.Status, uc.Status)
	assert.Equal(t, before.UpdatedAt, uc.UpdatedAt)
	assert.Nil(t, uc.CompletedAt)
}

func TestAdvance_SetsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusJoined)

	require.NoError(t, uc.Advance(StatusSubmitted, now))
	require.NotNil(t, uc.SubmittedAt)
	assert.Equal(t, now, *uc.SubmittedAt)
	assert.Nil(t, uc.CompletedAt)

	later := now.Add(time.Hour)
	require.NoError(t, uc.Advance(StatusCompleted, later))
	require.NotNil(t, uc.CompletedAt)
	assert.Equal(t, later, *uc.CompletedAt)
}

func TestRecordProgressUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusJoined)

	require.NoError(t, uc.RecordProgressUpdate(now))
	assert.Equal(t, StatusInProgress, uc.Status)

	// A second progress update is a no-op transition, not an error.
	later := now.Add(time.Hour)
	require.NoError(t, uc.RecordProgressUpdate(later))
	assert.Equal(t, StatusInProgress, uc.Status)
	assert.Equal(t, later, uc.UpdatedAt)

	// But not from a terminal state.
	uc = newTestRecord(t, StatusCompleted)
	err := uc.RecordProgressUpdate(now)
	assert.True(t, shared.IsInvalidTransition(err))
}

func TestRecordFinalSubmission_AutoApprove(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusInProgress)

	err := uc.RecordFinalSubmission(challenge.TypeSkill, DefaultReviewPolicy(), now)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, uc.Status)
	require.NotNil(t, uc.SubmittedAt)
	require.NotNil(t, uc.CompletedAt)
	assert.Equal(t, now, *uc.SubmittedAt)
	assert.Equal(t, now, *uc.CompletedAt)
}

func TestRecordFinalSubmission_FirstSubmissionIsFinal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusJoined)

	// A final submission with no prior progress update goes straight from
	// joined; no in_progress state is fabricated along the way.
	err := uc.RecordFinalSubmission(challenge.TypeSkill, DefaultReviewPolicy(), now)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, uc.Status)
	require.NotNil(t, uc.SubmittedAt)
	assert.Equal(t, now, *uc.SubmittedAt)
}

func TestRecordFinalSubmission_RequiresReview(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, ct := range []challenge.Type{challenge.TypeComprehensive, challenge.TypeIndustry} {
		uc := newTestRecord(t, StatusJoined)
		err := uc.RecordFinalSubmission(ct, DefaultReviewPolicy(), now)

		require.NoError(t, err)
		assert.Equal(t, StatusPendingReview, uc.Status, "type %s", ct)
		assert.NotNil(t, uc.SubmittedAt)
		assert.Nil(t, uc.CompletedAt)
	}
}

func TestRecordFinalSubmission_NilPolicyAutoApproves(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusJoined)

	err := uc.RecordFinalSubmission(challenge.TypeComprehensive, nil, now)

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, uc.Status)
}

func TestRecordFinalSubmission_RejectedFromTerminal(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	uc := newTestRecord(t, StatusCompleted)

	err := uc.RecordFinalSubmission(challenge.TypeSkill, DefaultReviewPolicy(), now)
	assert.True(t, shared.IsInvalidTransition(err))
	assert.Equal(t, StatusCompleted, uc.Status)
}

func TestReviewDecisions(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	uc := newTestRecord(t, StatusPendingReview)
	require.NoError(t, uc.ApproveReview(now))
	assert.Equal(t, StatusCompleted, uc.Status)
	require.NotNil(t, uc.CompletedAt)

	uc = newTestRecord(t, StatusPendingReview)
	require.NoError(t, uc.RejectReview(now))
	assert.Equal(t, StatusFailed, uc.Status)
	assert.Nil(t, uc.CompletedAt)

	// Review decisions are only legal from pending_review.
	uc = newTestRecord(t, StatusJoined)
	assert.True(t, shared.IsInvalidTransition(uc.ApproveReview(now)))
	assert.True(t, shared.IsInvalidTransition(uc.RejectReview(now)))
}

func TestAbandon_FromAnyNonTerminalState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusJoined, StatusInProgress, StatusSubmitted, StatusPendingReview} {
		uc := newTestRecord(t, status)
		err := uc.Abandon(now)
		assert.NoError(t, err, "abandon from %s", status)
		assert.Equal(t, StatusAbandoned, uc.Status)
	}

	for _, status := range []Status{StatusCompleted, StatusAbandoned, StatusFailed} {
		uc := newTestRecord(t, status)
		err := uc.Abandon(now)
		assert.True(t, shared.IsInvalidTransition(err), "abandon from %s", status)
		assert.Equal(t, status, uc.Status)
	}
}

func TestFailExpired_OnlyUnfinishedRecords(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, status := range []Status{StatusJoined, StatusInProgress} {
		uc := newTestRecord(t, status)
		err := uc.FailExpired(now)
		assert.NoError(t, err, "fail expired from %s", status)
		assert.Equal(t, StatusFailed, uc.Status)
	}

	// Submitted work and terminal records are untouched by expiry.
	for _, status := range []Status{StatusSubmitted, StatusPendingReview, StatusCompleted, StatusAbandoned, StatusFailed} {
		uc := newTestRecord(t, status)
		err := uc.FailExpired(now)
		assert.True(t, shared.IsInvalidTransition(err), "fail expired from %s", status)
		assert.Equal(t, status, uc.Status)
	}
}

func TestDefaultReviewPolicy(t *testing.T) {
	policy := DefaultReviewPolicy()

	assert.True(t, policy.RequiresReview(challenge.TypeComprehensive))
	assert.True(t, policy.RequiresReview(challenge.TypeIndustry))
	assert.False(t, policy.RequiresReview(challenge.TypeSkill))
	assert.False(t, policy.RequiresReview(challenge.TypeQuick))
	assert.False(t, policy.RequiresReview(challenge.TypeDaily))
	assert.False(t, policy.RequiresReview(challenge.TypeWeekly))
}

func TestStatusCountsAsEngaged(t *testing.T) {
	assert.True(t, StatusJoined.CountsAsEngaged())
	assert.True(t, StatusInProgress.CountsAsEngaged())
	assert.True(t, StatusSubmitted.CountsAsEngaged())
	assert.True(t, StatusPendingReview.CountsAsEngaged())
	assert.True(t, StatusCompleted.CountsAsEngaged())

	// Abandoned and failed challenges may be recommended again.
	assert.False(t, StatusAbandoned.CountsAsEngaged())
	assert.False(t, StatusFailed.CountsAsEngaged())
}

package participation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
)

func TestNewUserChallenge(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierTrade, challenge.CategoryWriting, 5)
	require.NoError(t, err)

	assert.Equal(t, StatusJoined, uc.Status)
	assert.Equal(t, challenge.TierTrade, uc.Tier)
	assert.Equal(t, challenge.CategoryWriting, uc.Category)
	assert.Equal(t, 0, uc.Progress)
	assert.Equal(t, 5, uc.MaxProgress)
	assert.Empty(t, uc.Submissions)
	assert.False(t, uc.JoinedAt.IsZero())
}

func TestNewUserChallenge_Validation(t *testing.T) {
	_, err := NewUserChallenge("", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 1)
	assert.Error(t, err)

	_, err = NewUserChallenge("user-1", "", challenge.TierSolo, challenge.CategoryDesign, 1)
	assert.Error(t, err)

	_, err = NewUserChallenge("user-1", "ch-1", challenge.Tier("DUO"), challenge.CategoryDesign, 1)
	assert.ErrorIs(t, err, challenge.ErrInvalidTier)

	_, err = NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.Category("knitting"), 1)
	assert.ErrorIs(t, err, challenge.ErrInvalidCategory)

	_, err = NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, -1)
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestNewUserChallenge_DefaultsMaxProgress(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, uc.MaxProgress)
}

func TestNewSubmission(t *testing.T) {
	links := []EvidenceLink{{URL: "https://example.com/work.png", Platform: "imgur"}}

	sub, err := NewSubmission("sub-1", "user-1", "ch-1", "done", links, SubmissionFinal)
	require.NoError(t, err)
	assert.Equal(t, SubmissionFinal, sub.Type)
	assert.Len(t, sub.EvidenceLinks, 1)
	assert.False(t, sub.CreatedAt.IsZero())

	// Links alone are sufficient.
	_, err = NewSubmission("sub-2", "user-1", "ch-1", "", links, SubmissionProgressUpdate)
	assert.NoError(t, err)

	// Content alone is sufficient.
	_, err = NewSubmission("sub-3", "user-1", "ch-1", "halfway there", nil, SubmissionProgressUpdate)
	assert.NoError(t, err)
}

func TestNewSubmission_Validation(t *testing.T) {
	_, err := NewSubmission("", "user-1", "ch-1", "x", nil, SubmissionFinal)
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	_, err = NewSubmission("sub-1", "user-1", "ch-1", "x", nil, SubmissionType("draft"))
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	// Neither content nor links.
	_, err = NewSubmission("sub-1", "user-1", "ch-1", "", nil, SubmissionFinal)
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestAppendSubmission(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 1)
	require.NoError(t, err)

	sub, err := NewSubmission("sub-1", "user-1", "ch-1", "progress", nil, SubmissionProgressUpdate)
	require.NoError(t, err)

	require.NoError(t, uc.AppendSubmission(*sub))
	require.Len(t, uc.Submissions, 1)
	assert.Equal(t, "sub-1", uc.LatestSubmission().ID)

	uc.Status = StatusCompleted
	err = uc.AppendSubmission(*sub)
	assert.ErrorIs(t, err, ErrTerminalState)
	assert.Len(t, uc.Submissions, 1)
}

func TestUpdateProgress(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 3)
	require.NoError(t, err)

	require.NoError(t, uc.UpdateProgress(2))
	assert.Equal(t, 2, uc.Progress)

	assert.ErrorIs(t, uc.UpdateProgress(-1), ErrInvalidProgress)
	assert.ErrorIs(t, uc.UpdateProgress(4), ErrInvalidProgress)
	assert.Equal(t, 2, uc.Progress)

	require.NoError(t, uc.UpdateProgress(3))
	assert.Equal(t, 3, uc.Progress)

	uc.Status = StatusFailed
	assert.ErrorIs(t, uc.UpdateProgress(1), ErrTerminalState)
}

func TestIssueRewards(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 1)
	require.NoError(t, err)

	// Not completed yet.
	err = uc.IssueRewards(100, []string{"finisher"})
	assert.Error(t, err)

	uc.Status = StatusCompleted
	require.NoError(t, uc.IssueRewards(100, []string{"finisher"}))
	assert.Equal(t, 100, uc.XPEarned)
	assert.Equal(t, []string{"finisher"}, uc.BadgesEarned)

	// Exactly once.
	err = uc.IssueRewards(100, nil)
	assert.ErrorIs(t, err, ErrRewardsAlreadyIssued)
	assert.Equal(t, 100, uc.XPEarned)
}

func TestLatestSubmission_Empty(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 1)
	require.NoError(t, err)
	assert.Nil(t, uc.LatestSubmission())
}

func TestClone_IsolatesMutations(t *testing.T) {
	uc, err := NewUserChallenge("user-1", "ch-1", challenge.TierSolo, challenge.CategoryDesign, 1)
	require.NoError(t, err)

	sub, err := NewSubmission("sub-1", "user-1", "ch-1", "done", nil, SubmissionFinal)
	require.NoError(t, err)
	require.NoError(t, uc.AppendSubmission(*sub))

	now := uc.JoinedAt.Add(time.Hour)
	require.NoError(t, uc.Advance(StatusSubmitted, now))
	require.NoError(t, uc.Advance(StatusCompleted, now))
	require.NoError(t, uc.IssueRewards(50, []string{"finisher"}))

	clone := uc.Clone()
	clone.BadgesEarned[0] = "changed"
	clone.Submissions[0].Content = "changed"
	*clone.CompletedAt = clone.CompletedAt.AddDate(0, 0, 1)

	assert.Equal(t, "finisher", uc.BadgesEarned[0])
	assert.Equal(t, "done", uc.Submissions[0].Content)
}

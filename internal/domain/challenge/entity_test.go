package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

func validParams() NewChallengeParams {
	return NewChallengeParams{
		ID:         "ch-1",
		Title:      "Compose a short jingle",
		Category:   CategoryAudio,
		Difficulty: DifficultyIntermediate,
		Type:       TypeQuick,
		Tier:       TierSolo,
		Rewards:    Rewards{XP: 50, Badges: []string{"first_note"}},
	}
}

func TestNewChallenge_Valid(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)

	assert.Equal(t, StatusDraft, c.Status)
	assert.Equal(t, "Compose a short jingle", c.Title)
	assert.Equal(t, CategoryAudio, c.Category)
	assert.Equal(t, 50, c.Rewards.XP)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
}

func TestNewChallenge_TrimsTitle(t *testing.T) {
	params := validParams()
	params.Title = "  Compose a short jingle  "

	c, err := NewChallenge(params)
	require.NoError(t, err)
	assert.Equal(t, "Compose a short jingle", c.Title)
}

func TestNewChallenge_Validation(t *testing.T) {
	params := validParams()
	params.ID = ""
	_, err := NewChallenge(params)
	assert.Error(t, err)

	params = validParams()
	params.Title = "   "
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidTitle)

	params = validParams()
	params.Title = strings.Repeat("x", 201)
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidTitle)

	params = validParams()
	params.Category = Category("knitting")
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	params = validParams()
	params.Difficulty = Difficulty("impossible")
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidDifficulty)

	params = validParams()
	params.Type = Type("marathon")
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidType)

	params = validParams()
	params.Tier = Tier("DUO")
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidTier)

	params = validParams()
	params.Rewards = Rewards{XP: -1}
	_, err = NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidRewards)
}

func TestNewChallenge_WindowValidation(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	params := validParams()
	params.StartDate = &start
	params.EndDate = &end
	_, err := NewChallenge(params)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	// Equal start and end is a legal zero-length window.
	params.EndDate = &start
	_, err = NewChallenge(params)
	assert.NoError(t, err)
}

func TestHasStartedHasEnded_BoundaryInclusive(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := &Challenge{StartDate: &at, EndDate: &at}

	assert.True(t, c.HasStarted(at))
	assert.True(t, c.HasEnded(at))
	assert.False(t, c.HasStarted(at.Add(-time.Second)))
	assert.False(t, c.HasEnded(at.Add(-time.Second)))

	untimed := &Challenge{}
	assert.False(t, untimed.HasStarted(at))
	assert.False(t, untimed.HasEnded(at))
}

func TestRecordParticipant_OnlyWhileActive(t *testing.T) {
	c, err := NewChallenge(validParams())
	require.NoError(t, err)

	err = c.RecordParticipant()
	assert.ErrorIs(t, err, shared.ErrChallengeNotJoinable)
	assert.Equal(t, 0, c.ParticipantCount)

	c.Status = StatusActive
	require.NoError(t, c.RecordParticipant())
	require.NoError(t, c.RecordParticipant())
	assert.Equal(t, 2, c.ParticipantCount)
}

func TestDifficultyBand(t *testing.T) {
	assert.Equal(t, 1, DifficultyBeginner.Band())
	assert.Equal(t, 2, DifficultyIntermediate.Band())
	assert.Equal(t, 3, DifficultyAdvanced.Band())
	assert.Equal(t, 4, DifficultyExpert.Band())
	assert.Equal(t, 0, Difficulty("bogus").Band())
}

func TestTierLadder(t *testing.T) {
	assert.Equal(t, 1, TierSolo.Rung())
	assert.Equal(t, 2, TierTrade.Rung())
	assert.Equal(t, 3, TierCollaboration.Rung())

	prev, ok := TierTrade.Previous()
	assert.True(t, ok)
	assert.Equal(t, TierSolo, prev)

	prev, ok = TierCollaboration.Previous()
	assert.True(t, ok)
	assert.Equal(t, TierTrade, prev)

	_, ok = TierSolo.Previous()
	assert.False(t, ok)
}

func TestStatusIsJoinable(t *testing.T) {
	assert.True(t, StatusActive.IsJoinable())
	assert.False(t, StatusDraft.IsJoinable())
	assert.False(t, StatusScheduled.IsJoinable())
	assert.False(t, StatusCompleted.IsJoinable())
	assert.False(t, StatusArchived.IsJoinable())
}

func TestClone_IsolatesMutations(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	params := validParams()
	params.StartDate = &start
	params.Rewards.BonusCriteria = []string{"first_50_finishers"}

	c, err := NewChallenge(params)
	require.NoError(t, err)

	clone := c.Clone()
	clone.Title = "changed"
	clone.Rewards.Badges[0] = "changed"
	*clone.StartDate = start.AddDate(0, 0, 1)

	assert.Equal(t, "Compose a short jingle", c.Title)
	assert.Equal(t, "first_note", c.Rewards.Badges[0])
	assert.Equal(t, start, *c.StartDate)
}

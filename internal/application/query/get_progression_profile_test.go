package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/progression"
)

type fakeProfileCache struct {
	entries map[string]*progression.Profile
	sets    int
	hits    int
}

func newFakeProfileCache() *fakeProfileCache {
	return &fakeProfileCache{entries: make(map[string]*progression.Profile)}
}

func (c *fakeProfileCache) GetProfile(_ context.Context, key string) (*progression.Profile, bool) {
	p, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return p, ok
}

func (c *fakeProfileCache) SetProfile(_ context.Context, key string, p *progression.Profile, _ time.Duration) {
	c.entries[key] = p
	c.sets++
}

type fakeSkills struct {
	level int
	err   error
}

func (s *fakeSkills) SkillLevel(_ context.Context, _ string) (int, error) {
	return s.level, s.err
}

func completedParticipation(userID string, tier challenge.Tier) *participation.UserChallenge {
	return &participation.UserChallenge{
		UserID: userID,
		Tier:   tier,
		Status: participation.StatusCompleted,
	}
}

func TestGetProgressionProfile(t *testing.T) {
	reader := &fakeParticipationReader{records: []*participation.UserChallenge{
		completedParticipation("user-1", challenge.TierSolo),
		completedParticipation("user-1", challenge.TierSolo),
		completedParticipation("user-1", challenge.TierSolo),
	}}
	handler := NewGetProgressionProfileHandler(reader, nil, &fakeSkills{level: 2}, nil)

	dto, err := handler.Handle(context.Background(), GetProgressionProfileQuery{UserID: "user-1"})

	require.NoError(t, err)
	assert.Equal(t, "user-1", dto.UserID)
	assert.Equal(t, 2, dto.SkillLevel)
	assert.Equal(t, 3, dto.TotalCompletions)
	assert.Equal(t, 1.5, dto.RewardMultiplier, "TRADE bonus unlocked")
	require.Len(t, dto.Standings, 3)
	assert.Equal(t, "SOLO", dto.Standings[0].Tier)
	assert.True(t, dto.Standings[1].EligibleForBonus)
	assert.Equal(t, 1.5, dto.Standings[1].Multiplier)
}

func TestGetProgressionProfile_SkillLookupFailureDegrades(t *testing.T) {
	reader := &fakeParticipationReader{}
	handler := NewGetProgressionProfileHandler(reader, nil, &fakeSkills{err: errors.New("ledger down")}, nil)

	dto, err := handler.Handle(context.Background(), GetProgressionProfileQuery{UserID: "user-1"})

	require.NoError(t, err)
	assert.Equal(t, 0, dto.SkillLevel)
	assert.Equal(t, 1.0, dto.RewardMultiplier)
}

func TestGetProgressionProfile_CacheInvalidatesOnNewCompletion(t *testing.T) {
	reader := &fakeParticipationReader{records: []*participation.UserChallenge{
		completedParticipation("user-1", challenge.TierSolo),
	}}
	cache := newFakeProfileCache()
	handler := NewGetProgressionProfileHandler(reader, nil, &fakeSkills{level: 1}, cache)

	_, err := handler.Handle(context.Background(), GetProgressionProfileQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Same inputs: cache hit.
	_, err = handler.Handle(context.Background(), GetProgressionProfileQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	// A new completion changes the completed-count in the key: miss, recompute.
	reader.records = append(reader.records, completedParticipation("user-1", challenge.TierSolo))
	dto, err := handler.Handle(context.Background(), GetProgressionProfileQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.TotalCompletions)
	assert.Equal(t, 2, cache.sets)
	assert.Equal(t, 1, cache.hits, "stale entry not served")
}

func TestGetProgressionProfile_Validation(t *testing.T) {
	handler := NewGetProgressionProfileHandler(&fakeParticipationReader{}, nil, nil, nil)

	_, err := handler.Handle(context.Background(), GetProgressionProfileQuery{})
	assert.Error(t, err)
}

package command

import (
	"context"
	"sync"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// In-memory repository fakes shared by the command handler tests. They mirror
// the postgres semantics the handlers rely on: duplicate-key errors, not-found
// sentinels and the conditional completion write.

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[string]*challenge.Challenge
	updates    int
}

func newFakeChallengeRepo(chs ...*challenge.Challenge) *fakeChallengeRepo {
	repo := &fakeChallengeRepo{challenges: make(map[string]*challenge.Challenge)}
	for _, ch := range chs {
		repo.challenges[ch.ID] = ch.Clone()
	}
	return repo
}

func (r *fakeChallengeRepo) Create(_ context.Context, c *challenge.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.challenges[c.ID]; ok {
		return challenge.ErrChallengeAlreadyExists
	}
	r.challenges[c.ID] = c.Clone()
	return nil
}

func (r *fakeChallengeRepo) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.challenges[id]
	if !ok {
		return nil, challenge.ErrChallengeNotFound
	}
	return ch.Clone(), nil
}

func (r *fakeChallengeRepo) Update(_ context.Context, c *challenge.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.challenges[c.ID]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	if stored.Status == challenge.StatusArchived {
		return challenge.ErrArchivedImmutable
	}
	r.challenges[c.ID] = c.Clone()
	r.updates++
	return nil
}

func (r *fakeChallengeRepo) FindByStatus(_ context.Context, status challenge.Status, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.Status == status {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) FindDueForActivation(_ context.Context, now time.Time) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.Status == challenge.StatusScheduled && ch.HasStarted(now) {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) FindDueForCompletion(_ context.Context, now time.Time) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.Status == challenge.StatusActive && ch.HasEnded(now) {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) FindActive(_ context.Context, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	return r.FindByStatus(context.Background(), challenge.StatusActive, challenge.ListOptions{})
}

func (r *fakeChallengeRepo) FindByCategory(_ context.Context, category challenge.Category, status challenge.Status, _ challenge.ListOptions) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.Category == category && ch.Status == status {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) FindBySeries(_ context.Context, seriesID string) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.SeriesID == seriesID {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) FindUnexpiredByTemplate(_ context.Context, templateID string, now time.Time) ([]*challenge.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*challenge.Challenge
	for _, ch := range r.challenges {
		if ch.TemplateID == templateID && !ch.HasEnded(now) &&
			(ch.Status == challenge.StatusScheduled || ch.Status == challenge.StatusActive) {
			out = append(out, ch.Clone())
		}
	}
	return out, nil
}

func (r *fakeChallengeRepo) IncrementParticipantCount(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.challenges[id]
	if !ok {
		return challenge.ErrChallengeNotFound
	}
	ch.ParticipantCount++
	return nil
}

func (r *fakeChallengeRepo) Count(_ context.Context, status challenge.Status) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ch := range r.challenges {
		if ch.Status == status {
			n++
		}
	}
	return n, nil
}

type fakeParticipationRepo struct {
	mu      sync.Mutex
	records map[string]*participation.UserChallenge
	subs    []*participation.Submission

	// completeCalls counts CompleteWithRewards invocations regardless of
	// outcome, for the at-most-once assertions.
	completeCalls int
}

func newFakeParticipationRepo() *fakeParticipationRepo {
	return &fakeParticipationRepo{records: make(map[string]*participation.UserChallenge)}
}

func recordKey(userID, challengeID string) string { return userID + "/" + challengeID }

func (r *fakeParticipationRepo) Create(_ context.Context, uc *participation.UserChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(uc.UserID, uc.ChallengeID)
	if _, ok := r.records[key]; ok {
		return participation.ErrRecordAlreadyExists
	}
	r.records[key] = uc.Clone()
	return nil
}

func (r *fakeParticipationRepo) Get(_ context.Context, userID, challengeID string) (*participation.UserChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uc, ok := r.records[recordKey(userID, challengeID)]
	if !ok {
		return nil, participation.ErrRecordNotFound
	}
	return uc.Clone(), nil
}

func (r *fakeParticipationRepo) Update(_ context.Context, uc *participation.UserChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(uc.UserID, uc.ChallengeID)
	if _, ok := r.records[key]; !ok {
		return participation.ErrRecordNotFound
	}
	r.records[key] = uc.Clone()
	return nil
}

func (r *fakeParticipationRepo) CompleteWithRewards(_ context.Context, userID, challengeID string, xp int, badges []string, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCalls++

	uc, ok := r.records[recordKey(userID, challengeID)]
	if !ok {
		return false, participation.ErrRecordNotFound
	}
	if uc.Status == participation.StatusCompleted {
		return false, nil
	}
	uc.Status = participation.StatusCompleted
	uc.XPEarned = xp
	uc.BadgesEarned = append([]string(nil), badges...)
	t := completedAt
	uc.CompletedAt = &t
	uc.UpdatedAt = completedAt
	return true, nil
}

func (r *fakeParticipationRepo) FindByUser(_ context.Context, userID string) ([]*participation.UserChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participation.UserChallenge
	for _, uc := range r.records {
		if uc.UserID == userID {
			out = append(out, uc.Clone())
		}
	}
	return out, nil
}

func (r *fakeParticipationRepo) FindCompletedByUser(_ context.Context, userID string) ([]*participation.UserChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participation.UserChallenge
	for _, uc := range r.records {
		if uc.UserID == userID && uc.Status == participation.StatusCompleted {
			out = append(out, uc.Clone())
		}
	}
	return out, nil
}

func (r *fakeParticipationRepo) FindEngagedChallengeIDs(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, uc := range r.records {
		if uc.UserID == userID && uc.Status.CountsAsEngaged() {
			out = append(out, uc.ChallengeID)
		}
	}
	return out, nil
}

func (r *fakeParticipationRepo) FindUnfinishedByChallenge(_ context.Context, challengeID string) ([]*participation.UserChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*participation.UserChallenge
	for _, uc := range r.records {
		if uc.ChallengeID == challengeID &&
			(uc.Status == participation.StatusJoined || uc.Status == participation.StatusInProgress) {
			out = append(out, uc.Clone())
		}
	}
	return out, nil
}

func (r *fakeParticipationRepo) CountCompletedByTier(_ context.Context, userID string) (map[challenge.Tier]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[challenge.Tier]int)
	for _, uc := range r.records {
		if uc.UserID == userID && uc.Status == participation.StatusCompleted {
			counts[uc.Tier]++
		}
	}
	return counts, nil
}

func (r *fakeParticipationRepo) AppendSubmission(_ context.Context, sub *participation.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return nil
}

func (r *fakeParticipationRepo) GetSubmissions(_ context.Context, userID, challengeID string) ([]participation.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []participation.Submission
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.ChallengeID == challengeID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

// seed stores a record directly, bypassing the state machine.
func (r *fakeParticipationRepo) seed(uc *participation.UserChallenge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[recordKey(uc.UserID, uc.ChallengeID)] = uc.Clone()
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// fakeLedger returns a fixed skill level and records credits.
type fakeLedger struct {
	mu      sync.Mutex
	level   int
	credits map[string]int
}

func newFakeLedger(level int) *fakeLedger {
	return &fakeLedger{level: level, credits: make(map[string]int)}
}

func (l *fakeLedger) SkillLevel(_ context.Context, _ string) (int, error) {
	return l.level, nil
}

func (l *fakeLedger) CreditXP(_ context.Context, userID string, amount int, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits[userID] += amount
	return nil
}

package command

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
	"github.com/craftquest/challenge-engine/internal/domain/progression"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SUBMISSION COMMAND
// Appends a progress update or final submission and advances the participation
// state machine. Completion rewards are written with a conditional store write
// so they are issued at most once even under concurrent retries.
// ══════════════════════════════════════════════════════════════════════════════

// LinkResolver turns an evidence URL into preview metadata. Implementations
// live in infrastructure/external; resolution is best-effort and a failed
// lookup must not block the submission.
type LinkResolver interface {
	Resolve(ctx context.Context, url string) (participation.EvidenceLink, error)
}

// XPLedger is the external XP/skill system. Skill levels are derived there,
// never in this engine; credits are fire-and-forget.
type XPLedger interface {
	// SkillLevel returns the user's current inferred skill level.
	SkillLevel(ctx context.Context, userID string) (int, error)

	// CreditXP credits earned XP to the user's ledger account.
	CreditXP(ctx context.Context, userID string, amount int, reason string) error
}

// RecordSubmissionCommand contains the data for one submission.
type RecordSubmissionCommand struct {
	// UserID is the submitting user.
	UserID string

	// ChallengeID is the challenge being worked on.
	ChallengeID string

	// Content is the submission text. Opaque to the engine.
	Content string

	// EvidenceURLs are proof-of-work links to resolve and attach.
	EvidenceURLs []string

	// Type is progress_update or final_submission.
	Type participation.SubmissionType

	// Progress optionally sets the absolute progress counter. Zero leaves
	// it unchanged.
	Progress int
}

// Validate validates the command.
func (c RecordSubmissionCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("record_submission: user_id is required")
	}
	if c.ChallengeID == "" {
		return errors.New("record_submission: challenge_id is required")
	}
	if !c.Type.IsValid() {
		return errors.New("record_submission: unknown submission type")
	}
	if c.Content == "" && len(c.EvidenceURLs) == 0 {
		return errors.New("record_submission: content or evidence links required")
	}
	if c.Progress < 0 {
		return errors.New("record_submission: progress cannot be negative")
	}
	return nil
}

// RecordSubmissionResult describes what happened to the record.
type RecordSubmissionResult struct {
	// Record is the participation record after the command.
	Record *participation.UserChallenge

	// Submission is the appended submission.
	Submission *participation.Submission

	// PendingReview is true when the final submission awaits manual review.
	PendingReview bool

	// Completed is true when this call completed the record and issued
	// rewards.
	Completed bool

	// AlreadyCompleted is true when a concurrent writer completed the record
	// first; no rewards were issued by this call.
	AlreadyCompleted bool

	// XPAwarded is the XP written on completion, tier multiplier included.
	XPAwarded int
}

// RecordSubmissionHandler handles the RecordSubmissionCommand.
type RecordSubmissionHandler struct {
	challengeRepo     challenge.Repository
	participationRepo participation.Repository
	tracker           *progression.Tracker
	reviewPolicy      participation.ReviewPolicy
	linkResolver      LinkResolver
	ledger            XPLedger
	eventPublisher    shared.EventPublisher
}

// RecordSubmissionConfig bundles the handler dependencies.
type RecordSubmissionConfig struct {
	ChallengeRepo     challenge.Repository
	ParticipationRepo participation.Repository
	Tracker           *progression.Tracker
	ReviewPolicy      participation.ReviewPolicy
	LinkResolver      LinkResolver // optional
	Ledger            XPLedger     // optional
	EventPublisher    shared.EventPublisher
}

// NewRecordSubmissionHandler creates the handler.
func NewRecordSubmissionHandler(cfg RecordSubmissionConfig) *RecordSubmissionHandler {
	if cfg.Tracker == nil {
		cfg.Tracker = progression.NewTracker()
	}
	if cfg.ReviewPolicy == nil {
		cfg.ReviewPolicy = participation.DefaultReviewPolicy()
	}
	if cfg.EventPublisher == nil {
		cfg.EventPublisher = shared.NoopPublisher{}
	}
	return &RecordSubmissionHandler{
		challengeRepo:     cfg.ChallengeRepo,
		participationRepo: cfg.ParticipationRepo,
		tracker:           cfg.Tracker,
		reviewPolicy:      cfg.ReviewPolicy,
		linkResolver:      cfg.LinkResolver,
		ledger:            cfg.Ledger,
		eventPublisher:    cfg.EventPublisher,
	}
}

// Handle executes the command.
func (h *RecordSubmissionHandler) Handle(ctx context.Context, cmd RecordSubmissionCommand) (*RecordSubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	record, err := h.participationRepo.Get(ctx, cmd.UserID, cmd.ChallengeID)
	if err != nil {
		if errors.Is(err, participation.ErrRecordNotFound) {
			return nil, shared.WrapError(
				"participation", "RecordSubmission",
				shared.ErrNotParticipating,
				"user "+cmd.UserID+" has no record for challenge "+cmd.ChallengeID,
				nil,
			)
		}
		return nil, err
	}

	ch, err := h.challengeRepo.GetByID(ctx, cmd.ChallengeID)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusActive {
		return nil, shared.WrapError(
			"participation", "RecordSubmission",
			shared.ErrChallengeNotJoinable,
			"challenge "+ch.ID+" is not accepting submissions in status "+string(ch.Status),
			nil,
		)
	}

	sub, err := participation.NewSubmission(
		uuid.NewString(), cmd.UserID, cmd.ChallengeID,
		cmd.Content, h.resolveLinks(ctx, cmd.EvidenceURLs), cmd.Type,
	)
	if err != nil {
		return nil, err
	}

	if err := record.AppendSubmission(*sub); err != nil {
		return nil, err
	}
	if cmd.Progress > 0 {
		if err := record.UpdateProgress(cmd.Progress); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()

	if cmd.Type == participation.SubmissionProgressUpdate {
		if err := record.RecordProgressUpdate(now); err != nil {
			return nil, err
		}
		if err := h.participationRepo.AppendSubmission(ctx, sub); err != nil {
			return nil, err
		}
		if err := h.participationRepo.Update(ctx, record); err != nil {
			return nil, err
		}
		return &RecordSubmissionResult{Record: record, Submission: sub}, nil
	}

	// Final submission. Run the state machine in memory first so an illegal
	// transition is rejected before any write.
	fromStatus := record.Status
	if err := record.RecordFinalSubmission(ch.Type, h.reviewPolicy, now); err != nil {
		return nil, err
	}

	if err := h.participationRepo.AppendSubmission(ctx, sub); err != nil {
		return nil, err
	}

	if record.Status == participation.StatusPendingReview {
		if err := h.participationRepo.Update(ctx, record); err != nil {
			return nil, err
		}
		h.publishStatusChange(record, fromStatus, shared.EventParticipationSubmitted)
		return &RecordSubmissionResult{Record: record, Submission: sub, PendingReview: true}, nil
	}

	return h.complete(ctx, ch, record, sub, fromStatus, now)
}

// complete issues rewards through the conditional store write. The store is
// the arbiter: only the writer that flips the status to completed gets to
// populate rewards and emit events.
func (h *RecordSubmissionHandler) complete(
	ctx context.Context,
	ch *challenge.Challenge,
	record *participation.UserChallenge,
	sub *participation.Submission,
	fromStatus participation.Status,
	now time.Time,
) (*RecordSubmissionResult, error) {
	before, err := h.participationRepo.FindCompletedByUser(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	skillLevel := 0
	if h.ledger != nil {
		// Skill lookup failures degrade to the base multiplier rather than
		// blocking completion.
		if lvl, lerr := h.ledger.SkillLevel(ctx, record.UserID); lerr == nil {
			skillLevel = lvl
		}
	}

	profileBefore := h.tracker.ComputeProfile(record.UserID, before, skillLevel)
	xp := rewardXP(ch, profileBefore)
	badges := append([]string(nil), ch.Rewards.Badges...)

	won, err := h.participationRepo.CompleteWithRewards(ctx, record.UserID, record.ChallengeID, xp, badges, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another writer completed the record first. Surface the stored
		// truth instead of this call's view.
		stored, gerr := h.participationRepo.Get(ctx, record.UserID, record.ChallengeID)
		if gerr != nil {
			return nil, gerr
		}
		return &RecordSubmissionResult{Record: stored, Submission: sub, AlreadyCompleted: true}, nil
	}

	record.XPEarned = xp
	record.BadgesEarned = badges

	if h.ledger != nil {
		// Fire-and-forget: the ledger reconciles missed credits from events.
		_ = h.ledger.CreditXP(ctx, record.UserID, xp, "challenge:"+record.ChallengeID)
	}

	h.publishStatusChange(record, fromStatus, shared.EventParticipationCompleted)
	h.publishBonusUnlocks(record, profileBefore, append(before, record), skillLevel)

	return &RecordSubmissionResult{Record: record, Submission: sub, Completed: true, XPAwarded: xp}, nil
}

// resolveLinks attaches preview metadata to evidence URLs. A resolver failure
// keeps the bare URL.
func (h *RecordSubmissionHandler) resolveLinks(ctx context.Context, urls []string) []participation.EvidenceLink {
	if len(urls) == 0 {
		return nil
	}
	links := make([]participation.EvidenceLink, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if h.linkResolver != nil {
			if link, err := h.linkResolver.Resolve(ctx, u); err == nil {
				links = append(links, link)
				continue
			}
		}
		links = append(links, participation.EvidenceLink{URL: u})
	}
	return links
}

func (h *RecordSubmissionHandler) publishStatusChange(record *participation.UserChallenge, from participation.Status, eventType shared.EventType) {
	_ = h.eventPublisher.Publish(shared.ParticipationEvent{
		BaseEvent:   shared.NewBaseEvent(eventType, record.ChallengeID),
		UserID:      record.UserID,
		ChallengeID: record.ChallengeID,
		FromStatus:  string(from),
		ToStatus:    string(record.Status),
		XPEarned:    record.XPEarned,
		Badges:      record.BadgesEarned,
	})
}

// publishBonusUnlocks emits an event for every tier that became bonus-eligible
// because of this completion.
func (h *RecordSubmissionHandler) publishBonusUnlocks(
	record *participation.UserChallenge,
	profileBefore *progression.Profile,
	completedAfter []*participation.UserChallenge,
	skillLevel int,
) {
	profileAfter := h.tracker.ComputeProfile(record.UserID, completedAfter, skillLevel)
	for _, after := range profileAfter.Standings {
		if !after.EligibleForBonus {
			continue
		}
		if prev, ok := profileBefore.Standing(after.Tier); ok && prev.EligibleForBonus {
			continue
		}
		_ = h.eventPublisher.Publish(shared.BonusTierUnlockedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventBonusTierUnlocked, record.UserID),
			UserID:    record.UserID,
			Tier:      string(after.Tier),
		})
	}
}

// rewardXP applies the multiplier of the highest bonus-eligible tier that
// matches the challenge tier. Non-eligible tiers earn base XP.
func rewardXP(ch *challenge.Challenge, profile *progression.Profile) int {
	multiplier := 1.0
	if standing, ok := profile.Standing(ch.Tier); ok && standing.EligibleForBonus {
		multiplier = progression.Multiplier(ch.Tier)
	}
	return int(math.Round(float64(ch.Rewards.XP) * multiplier))
}

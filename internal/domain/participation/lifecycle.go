package participation

import (
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PARTICIPATION STATE MACHINE
// The single authority for participation status changes. Mirrors the
// challenge lifecycle in lifecycle.go of the challenge package.
// ══════════════════════════════════════════════════════════════════════════════

// transitions is the legal transition table. Abandonment is handled
// separately in Abandon because it is legal from every non-terminal state.
var transitions = map[Status][]Status{
	StatusJoined:        {StatusInProgress, StatusSubmitted},
	StatusInProgress:    {StatusSubmitted},
	StatusSubmitted:     {StatusPendingReview, StatusCompleted},
	StatusPendingReview: {StatusCompleted, StatusFailed},
	StatusCompleted:     {},
	StatusAbandoned:     {},
	StatusFailed:        {},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReviewPolicy decides whether a final submission for a given challenge
// type needs a review step before completion. The original product rules
// were inconsistent here, so the policy is configuration, not a constant.
type ReviewPolicy interface {
	// RequiresReview reports whether the challenge type needs manual review.
	RequiresReview(challengeType challenge.Type) bool
}

// ReviewPolicyFunc adapts a function to the ReviewPolicy interface.
type ReviewPolicyFunc func(challengeType challenge.Type) bool

// RequiresReview implements ReviewPolicy.
func (f ReviewPolicyFunc) RequiresReview(t challenge.Type) bool { return f(t) }

// DefaultReviewPolicy requires review for comprehensive and industry
// challenges; everything else auto-approves.
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicyFunc(func(t challenge.Type) bool {
		return t == challenge.TypeComprehensive || t == challenge.TypeIndustry
	})
}

// Advance applies a status change after validating the transition table.
// On rejection the record is left unchanged and the returned error matches
// shared.ErrInvalidTransition.
func (uc *UserChallenge) Advance(to Status, now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if !to.IsValid() {
		return uc.invalidTransition(to, "unknown target status")
	}
	if !CanTransition(uc.Status, to) {
		return uc.invalidTransition(to, "not in transition table")
	}

	uc.Status = to
	uc.UpdatedAt = now

	switch to {
	case StatusSubmitted:
		t := now
		uc.SubmittedAt = &t
	case StatusCompleted:
		t := now
		uc.CompletedAt = &t
	}

	return nil
}

// RecordProgressUpdate advances joined -> in_progress on the first progress
// submission. A later progress update in in_progress is a no-op transition.
func (uc *UserChallenge) RecordProgressUpdate(now time.Time) error {
	if uc.Status == StatusInProgress {
		uc.UpdatedAt = now
		return nil
	}
	return uc.Advance(StatusInProgress, now)
}

// RecordFinalSubmission advances to submitted and then immediately to
// pending_review or completed depending on the review policy for the
// challenge type.
func (uc *UserChallenge) RecordFinalSubmission(challengeType challenge.Type, policy ReviewPolicy, now time.Time) error {
	if err := uc.Advance(StatusSubmitted, now); err != nil {
		return err
	}

	if policy != nil && policy.RequiresReview(challengeType) {
		return uc.Advance(StatusPendingReview, now)
	}
	return uc.Advance(StatusCompleted, now)
}

// ApproveReview moves pending_review -> completed.
func (uc *UserChallenge) ApproveReview(now time.Time) error {
	return uc.Advance(StatusCompleted, now)
}

// RejectReview moves pending_review -> failed.
func (uc *UserChallenge) RejectReview(now time.Time) error {
	return uc.Advance(StatusFailed, now)
}

// Abandon moves any non-terminal state to abandoned. The inactivity policy
// that decides when to call this belongs to the caller.
func (uc *UserChallenge) Abandon(now time.Time) error {
	if uc.Status.IsTerminal() {
		return uc.invalidTransition(StatusAbandoned, "record is already terminal")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	uc.Status = StatusAbandoned
	uc.UpdatedAt = now
	return nil
}

// FailExpired moves joined/in_progress to failed when the parent challenge
// completes. Incomplete work on an expired challenge does not linger.
func (uc *UserChallenge) FailExpired(now time.Time) error {
	if uc.Status != StatusJoined && uc.Status != StatusInProgress {
		return uc.invalidTransition(StatusFailed, "only unfinished records fail on expiry")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	uc.Status = StatusFailed
	uc.UpdatedAt = now
	return nil
}

// invalidTransition builds the rejection error without mutating the record.
func (uc *UserChallenge) invalidTransition(to Status, reason string) error {
	return shared.WrapError(
		"participation", "Advance",
		shared.ErrInvalidTransition,
		string(uc.Status)+" -> "+string(to)+": "+reason,
		nil,
	)
}

package challenge

import (
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE STATE MACHINE
// The single authority for challenge status changes. Every component that
// moves a challenge between statuses goes through Transition; nothing else
// assigns Status directly.
// ══════════════════════════════════════════════════════════════════════════════

// Trigger identifies who or what requested a transition. Recorded on the
// emitted event and in logs; force-archive in particular must be traceable.
type Trigger string

const (
	// TriggerScheduler - automated transition from a scheduler job.
	TriggerScheduler Trigger = "scheduler"
	// TriggerAdmin - explicit administrative action.
	TriggerAdmin Trigger = "admin"
	// TriggerSystem - internal maintenance (e.g. time-based cleanup).
	TriggerSystem Trigger = "system"
)

// transitions is the legal transition table. Force-archive is handled
// separately in Transition because it is legal from every status.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusScheduled},
	StatusScheduled: {StatusActive},
	StatusActive:    {StatusCompleted},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {},
}

// CanTransition reports whether from -> to is in the transition table.
// Does not account for force-archive or guard conditions.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionRequest describes a requested status change.
type TransitionRequest struct {
	// To is the target status.
	To Status

	// Trigger records who initiated the change.
	Trigger Trigger

	// Force allows archiving from any status. Ignored for other targets.
	Force bool

	// Now is the evaluation time for guard conditions. Zero means time.Now.
	Now time.Time
}

// Transition applies a status change to the challenge after validating the
// transition table and the guard conditions for the target status. On
// rejection the challenge is left byte-for-byte unchanged and the returned
// error matches shared.ErrInvalidTransition.
func (c *Challenge) Transition(req TransitionRequest) error {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if !req.To.IsValid() {
		return invalidTransition(c, req.To, "unknown target status")
	}

	// Force-archive: legal from any non-archived status.
	if req.To == StatusArchived && req.Force {
		if c.Status == StatusArchived {
			return invalidTransition(c, req.To, "challenge is already archived")
		}
		c.Status = StatusArchived
		c.UpdatedAt = now
		return nil
	}

	if !CanTransition(c.Status, req.To) {
		return invalidTransition(c, req.To, "not in transition table")
	}

	if err := c.guardTransition(req.To, now); err != nil {
		return err
	}

	c.Status = req.To
	c.UpdatedAt = now
	return nil
}

// guardTransition enforces the per-target preconditions.
func (c *Challenge) guardTransition(to Status, now time.Time) error {
	switch to {
	case StatusScheduled:
		// draft -> scheduled requires a start date in the future.
		if c.StartDate == nil {
			return invalidTransition(c, to, "start date is not set")
		}
		if !c.StartDate.After(now) {
			return invalidTransition(c, to, "start date is not in the future")
		}

	case StatusActive:
		// scheduled -> active requires the window to have opened.
		if !c.HasStarted(now) {
			return invalidTransition(c, to, "start date has not arrived")
		}

	case StatusCompleted:
		// active -> completed requires the window to have closed, OR an
		// explicit admin/system call. The Transition caller expresses the
		// manual path by completing a challenge whose end date has passed
		// or by having no end date at all; time-guarding only applies when
		// an end date exists and the trigger is the scheduler.
		// Guard evaluated in CompleteDue; manual completion is always legal
		// from active.
	}

	return nil
}

// Activate moves a scheduled challenge to active if its window has opened.
func (c *Challenge) Activate(trigger Trigger, now time.Time) error {
	return c.Transition(TransitionRequest{To: StatusActive, Trigger: trigger, Now: now})
}

// Complete moves an active challenge to completed. Manual completion
// (admin) is always legal from active; scheduler-driven completion should
// go through CompleteDue.
func (c *Challenge) Complete(trigger Trigger, now time.Time) error {
	return c.Transition(TransitionRequest{To: StatusCompleted, Trigger: trigger, Now: now})
}

// CompleteDue moves an active challenge to completed only if its end date
// has passed. This is the scheduler's path.
func (c *Challenge) CompleteDue(now time.Time) error {
	if !c.HasEnded(now) {
		return invalidTransition(c, StatusCompleted, "end date has not passed")
	}
	return c.Transition(TransitionRequest{To: StatusCompleted, Trigger: TriggerScheduler, Now: now})
}

// Schedule moves a draft challenge to scheduled.
func (c *Challenge) Schedule(trigger Trigger, now time.Time) error {
	return c.Transition(TransitionRequest{To: StatusScheduled, Trigger: trigger, Now: now})
}

// Archive moves a completed challenge to archived, or any challenge when
// force is set.
func (c *Challenge) Archive(trigger Trigger, force bool, now time.Time) error {
	return c.Transition(TransitionRequest{To: StatusArchived, Trigger: trigger, Force: force, Now: now})
}

// invalidTransition builds the rejection error without mutating the challenge.
func invalidTransition(c *Challenge, to Status, reason string) error {
	return shared.WrapError(
		"challenge", "Transition",
		shared.ErrInvalidTransition,
		string(c.Status)+" -> "+string(to)+": "+reason,
		nil,
	)
}

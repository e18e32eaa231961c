// Package eventhandler contains subscribers for domain events. Handlers run
// on the event bus worker pool; they are side-channel consumers and must
// never be load-bearing for command correctness.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION DISPATCH
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one outbound user notification.
type Notification struct {
	// UserID is the recipient.
	UserID string

	// Kind classifies the notification for the delivery system.
	Kind NotificationKind

	// Data carries the event payload verbatim.
	Data map[string]interface{}
}

// NotificationKind classifies outbound notifications.
type NotificationKind string

const (
	// KindChallengeCompleted - the user finished a challenge and earned
	// rewards.
	KindChallengeCompleted NotificationKind = "challenge_completed"

	// KindChallengeFailed - the challenge window closed before the user
	// finished.
	KindChallengeFailed NotificationKind = "challenge_failed"

	// KindBonusUnlocked - the user's progression became bonus-eligible for
	// a tier.
	KindBonusUnlocked NotificationKind = "bonus_unlocked"
)

// NotificationDispatcher forwards notifications to the delivery system.
// Delivery itself is an external collaborator; this engine only hands off.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the structured log. It stands in for
// the real delivery system in the worker deployment.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates the dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch implements NotificationDispatcher.
func (d *LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	d.logger.Info("notification dispatched",
		"user_id", n.UserID,
		"kind", string(n.Kind),
		"data", n.Data,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ON PARTICIPATION COMPLETED / FAILED
// ══════════════════════════════════════════════════════════════════════════════

// ParticipationNotifier turns participation outcomes into notifications.
// Subscribed to participation.completed and participation.failed.
type ParticipationNotifier struct {
	dispatcher NotificationDispatcher
	logger     *slog.Logger
}

// NewParticipationNotifier creates the handler.
func NewParticipationNotifier(dispatcher NotificationDispatcher, logger *slog.Logger) *ParticipationNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParticipationNotifier{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle processes one participation event.
func (h *ParticipationNotifier) Handle(event shared.Event) error {
	pe, ok := event.(shared.ParticipationEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	var kind NotificationKind
	switch event.EventType() {
	case shared.EventParticipationCompleted:
		kind = KindChallengeCompleted
	case shared.EventParticipationFailed:
		kind = KindChallengeFailed
	default:
		return nil
	}

	return h.dispatcher.Dispatch(context.Background(), Notification{
		UserID: pe.UserID,
		Kind:   kind,
		Data:   event.Payload(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ON BONUS TIER UNLOCKED
// ══════════════════════════════════════════════════════════════════════════════

// BonusUnlockNotifier notifies users when a tier becomes bonus-eligible.
type BonusUnlockNotifier struct {
	dispatcher NotificationDispatcher
}

// NewBonusUnlockNotifier creates the handler.
func NewBonusUnlockNotifier(dispatcher NotificationDispatcher) *BonusUnlockNotifier {
	return &BonusUnlockNotifier{dispatcher: dispatcher}
}

// Handle processes one bonus unlock event.
func (h *BonusUnlockNotifier) Handle(event shared.Event) error {
	be, ok := event.(shared.BonusTierUnlockedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}

	return h.dispatcher.Dispatch(context.Background(), Notification{
		UserID: be.UserID,
		Kind:   KindBonusUnlocked,
		Data:   event.Payload(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ══════════════════════════════════════════════════════════════════════════════

// Subscriber is the subset of the event bus the handlers register against.
type Subscriber interface {
	Subscribe(eventType shared.EventType, name string, handler shared.EventHandler) error
}

// RegisterNotifications subscribes the notification handlers.
func RegisterNotifications(bus Subscriber, dispatcher NotificationDispatcher, logger *slog.Logger) error {
	participations := NewParticipationNotifier(dispatcher, logger)
	for _, eventType := range []shared.EventType{
		shared.EventParticipationCompleted,
		shared.EventParticipationFailed,
	} {
		if err := bus.Subscribe(eventType, "participation_notifier", participations.Handle); err != nil {
			return err
		}
	}

	bonuses := NewBonusUnlockNotifier(dispatcher)
	return bus.Subscribe(shared.EventBonusTierUnlocked, "bonus_unlock_notifier", bonuses.Handle)
}

// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened to a challenge or a user's participation record.
const (
	// Challenge lifecycle events
	EventChallengeScheduled EventType = "challenge.scheduled"
	EventChallengeActivated EventType = "challenge.activated"
	EventChallengeCompleted EventType = "challenge.completed"
	EventChallengeArchived  EventType = "challenge.archived"

	// Recurrence events
	EventInstanceMaterialized EventType = "challenge.instance_materialized"

	// Participation events
	EventParticipationJoined    EventType = "participation.joined"
	EventParticipationSubmitted EventType = "participation.submitted"
	EventParticipationCompleted EventType = "participation.completed"
	EventParticipationFailed    EventType = "participation.failed"
	EventParticipationAbandoned EventType = "participation.abandoned"

	// Progression events
	EventBonusTierUnlocked EventType = "progression.bonus_unlocked"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// NewBaseEvent creates a BaseEvent stamped with the current UTC time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID returns the aggregate that produced the event.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// ChallengeEvent is emitted when a challenge changes lifecycle state.
type ChallengeEvent struct {
	BaseEvent
	ChallengeID string
	FromStatus  string
	ToStatus    string
	Trigger     string // "scheduler", "admin", "user"
}

// Payload returns the event data for serialization.
func (e ChallengeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"challenge_id": e.ChallengeID,
		"from_status":  e.FromStatus,
		"to_status":    e.ToStatus,
		"trigger":      e.Trigger,
	}
}

// ParticipationEvent is emitted when a participation record changes state.
type ParticipationEvent struct {
	BaseEvent
	UserID      string
	ChallengeID string
	FromStatus  string
	ToStatus    string
	XPEarned    int
	Badges      []string
}

// Payload returns the event data for serialization.
func (e ParticipationEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":      e.UserID,
		"challenge_id": e.ChallengeID,
		"from_status":  e.FromStatus,
		"to_status":    e.ToStatus,
		"xp_earned":    e.XPEarned,
		"badges":       e.Badges,
	}
}

// InstanceMaterializedEvent is emitted when the scheduler creates a new
// challenge instance from a recurring template.
type InstanceMaterializedEvent struct {
	BaseEvent
	TemplateID  string
	ChallengeID string
	StartDate   time.Time
	EndDate     time.Time
}

// Payload returns the event data for serialization.
func (e InstanceMaterializedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"template_id":  e.TemplateID,
		"challenge_id": e.ChallengeID,
		"start_date":   e.StartDate.Format(time.RFC3339),
		"end_date":     e.EndDate.Format(time.RFC3339),
	}
}

// BonusTierUnlockedEvent is emitted when a user's progression profile first
// becomes bonus-eligible for a tier.
type BonusTierUnlockedEvent struct {
	BaseEvent
	UserID string
	Tier   string
}

// Payload returns the event data for serialization.
func (e BonusTierUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"tier":    e.Tier,
	}
}

// EventHandler processes a domain event. Handlers must be safe for
// concurrent use; the bus may invoke them from multiple goroutines.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
// Implementations live in infrastructure/messaging.
type EventPublisher interface {
	Publish(event Event) error
}

// NoopPublisher discards all events. Useful in tests and for callers that
// do not need event propagation.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }

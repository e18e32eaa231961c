package messaging

import (
	"context"
	"log/slog"

	"github.com/craftquest/challenge-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUILT-IN SUBSCRIBERS
// ══════════════════════════════════════════════════════════════════════════════

// CatalogInvalidator drops cached catalog pages. Satisfied by the Redis
// catalog cache.
type CatalogInvalidator interface {
	InvalidateCatalog(ctx context.Context)
}

// challengeLifecycleEvents are the event types that change what the catalog
// queries would return.
var challengeLifecycleEvents = []shared.EventType{
	shared.EventChallengeScheduled,
	shared.EventChallengeActivated,
	shared.EventChallengeCompleted,
	shared.EventChallengeArchived,
	shared.EventInstanceMaterialized,
}

// RegisterCatalogInvalidation subscribes a handler that invalidates the
// catalog cache whenever a challenge changes lifecycle state. Without this,
// status changes would be visible only after the catalog TTL expires.
func RegisterCatalogInvalidation(bus *EventBus, cache CatalogInvalidator) error {
	handler := func(event shared.Event) error {
		cache.InvalidateCatalog(context.Background())
		return nil
	}

	for _, eventType := range challengeLifecycleEvents {
		if err := bus.Subscribe(eventType, "catalog_invalidation", handler); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAuditLog subscribes a global handler that writes every domain event
// to the structured log. This is the only durable trace of reward grants and
// lifecycle transitions outside the database.
func RegisterAuditLog(bus *EventBus, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	return bus.SubscribeAll("audit_log", func(event shared.Event) error {
		logger.Info("domain event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload(),
		)
		return nil
	})
}

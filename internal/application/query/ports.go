package query

import (
	"context"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/challenge"
	"github.com/craftquest/challenge-engine/internal/domain/participation"
)

// ══════════════════════════════════════════════════════════════════════════════
// READ-SIDE PORTS
// Narrow views of the domain repositories. Queries depend on these instead of
// the full write-capable interfaces; the postgres repositories satisfy them
// directly.
// ══════════════════════════════════════════════════════════════════════════════

// ParticipationReader is the read subset of participation.Repository used by
// queries.
type ParticipationReader interface {
	FindByUser(ctx context.Context, userID string) ([]*participation.UserChallenge, error)
	FindCompletedByUser(ctx context.Context, userID string) ([]*participation.UserChallenge, error)
	FindEngagedChallengeIDs(ctx context.Context, userID string) ([]string, error)
	CountCompletedByTier(ctx context.Context, userID string) (map[challenge.Tier]int, error)
}

// ChallengeReader is the read subset of challenge.Repository used by queries.
type ChallengeReader interface {
	GetByID(ctx context.Context, id string) (*challenge.Challenge, error)
	FindActive(ctx context.Context, opts challenge.ListOptions) ([]*challenge.Challenge, error)
	FindByCategory(ctx context.Context, category challenge.Category, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error)
	FindByStatus(ctx context.Context, status challenge.Status, opts challenge.ListOptions) ([]*challenge.Challenge, error)
	Count(ctx context.Context, status challenge.Status) (int, error)
}

// CatalogCache caches the active challenge catalog. Implementations live in
// infrastructure/persistence/redis.
type CatalogCache interface {
	// GetCatalog returns the cached catalog page for the key, or false.
	GetCatalog(ctx context.Context, key string) ([]*challenge.Challenge, bool)

	// SetCatalog stores a catalog page under the key with a TTL.
	SetCatalog(ctx context.Context, key string, catalog []*challenge.Challenge, ttl time.Duration)

	// InvalidateCatalog drops all cached catalog pages. Called by the
	// lifecycle event handler when a challenge changes status.
	InvalidateCatalog(ctx context.Context)
}

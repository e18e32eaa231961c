package redis

import (
	"context"
	"errors"
	"time"

	"github.com/craftquest/challenge-engine/internal/domain/progression"
)

// ProfileCache implements query.ProfileCache on top of the generic Cache.
// Cache failures degrade to misses; the read path never fails on Redis.
type ProfileCache struct {
	cache *Cache
}

// NewProfileCache creates a new ProfileCache.
func NewProfileCache(cache *Cache) *ProfileCache {
	return &ProfileCache{cache: cache}
}

// GetProfile returns the cached profile for the key, or false on miss.
func (p *ProfileCache) GetProfile(ctx context.Context, key string) (*progression.Profile, bool) {
	var profile progression.Profile
	err := p.cache.Get(ctx, ProfileKey(key), &profile)
	if err != nil {
		return nil, false
	}
	return &profile, true
}

// SetProfile stores the profile under the key with a TTL.
func (p *ProfileCache) SetProfile(ctx context.Context, key string, profile *progression.Profile, ttl time.Duration) {
	if profile == nil {
		return
	}
	_ = p.cache.Set(ctx, ProfileKey(key), profile, ttl)
}

// InvalidateUser drops all cached profiles for a user. Profile keys embed the
// completed-count, so this is only needed when skill levels change out of band.
func (p *ProfileCache) InvalidateUser(ctx context.Context, userID string) error {
	err := p.cache.DeleteByPattern(ctx, ProfileKey(userID)+":*")
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	return nil
}

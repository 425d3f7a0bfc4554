package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheGenerationKey = "rbac:perms:gen"

// Cache stores resolved permission sets in Redis for the lifetime of a
// session segment. Entries are keyed by a global generation counter:
// role-permission rewrites bump the generation, orphaning every cached set
// at once, while per-user grants delete only the affected entry. Orphaned
// entries fall out via TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a permission cache. A nil receiver is a valid no-op
// cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached permission set for a user, if present.
func (c *Cache) Get(ctx context.Context, userID int64) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

// Set stores the permission set for a user under the current generation.
func (c *Cache) Set(ctx context.Context, userID int64, perms []string) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}

// InvalidateUser drops the cached set for one user.
func (c *Cache) InvalidateUser(ctx context.Context, userID int64) {
	if c == nil || c.client == nil {
		return
	}
	key, err := c.userKey(ctx, userID)
	if err != nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}

// BumpGeneration invalidates every cached permission set at once. Used when
// a role's permission list changes, since the affected user set is unknown.
func (c *Cache) BumpGeneration(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Incr(ctx, cacheGenerationKey).Err()
}

func (c *Cache) userKey(ctx context.Context, userID int64) (string, error) {
	gen, err := c.client.Get(ctx, cacheGenerationKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
		gen = "0"
	}
	return fmt.Sprintf("rbac:perms:%s:%d", gen, userID), nil
}

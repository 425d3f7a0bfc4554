package rbac

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Source yields the effective permission set for a user from the underlying
// role-permission graph.
type Source interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Resolver fronts a Source with the permission cache and collapses
// concurrent resolutions for the same user into a single graph query.
type Resolver struct {
	source Source
	cache  *Cache
	group  singleflight.Group
}

// NewResolver constructs a Resolver. cache may be nil to disable caching.
func NewResolver(source Source, cache *Cache) *Resolver {
	return &Resolver{source: source, cache: cache}
}

// EffectivePermissions returns the user's resolved permission set. Cache
// misses fall through to the graph; resolution errors are never cached, so
// the gate fails closed on the live state only.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if perms, ok := r.cache.Get(ctx, userID); ok {
		return perms, nil
	}
	v, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		perms, err := r.source.EffectivePermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, userID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops any cached set for the user.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	r.cache.InvalidateUser(ctx, userID)
}

package rbac

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	perms map[int64][]string
	err   error
}

func (s *countingSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[userID], nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestResolverCachesPermissions(t *testing.T) {
	source := &countingSource{perms: map[int64][]string{1: {"USER_VIEW", "CLASS_VIEW"}}}
	resolver := NewResolver(source, newTestCache(t))

	perms, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER_VIEW", "CLASS_VIEW"}, perms)

	perms, err = resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER_VIEW", "CLASS_VIEW"}, perms)
	assert.Equal(t, 1, source.calls, "second resolution should hit the cache")
}

func TestResolverInvalidateForcesRefetch(t *testing.T) {
	source := &countingSource{perms: map[int64][]string{1: {"USER_VIEW"}}}
	resolver := NewResolver(source, newTestCache(t))

	_, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)

	// Revoke and invalidate: the next check must see the new state.
	source.perms[1] = []string{}
	resolver.Invalidate(context.Background(), 1)

	perms, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.Equal(t, 2, source.calls)
}

func TestResolverGenerationBumpOrphansAllEntries(t *testing.T) {
	cache := newTestCache(t)
	source := &countingSource{perms: map[int64][]string{1: {"USER_VIEW"}, 2: {"CLASS_VIEW"}}}
	resolver := NewResolver(source, cache)

	_, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	_, err = resolver.EffectivePermissions(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, source.calls)

	source.perms[1] = nil
	source.perms[2] = nil
	cache.BumpGeneration(context.Background())

	perms, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, perms)
	perms, err = resolver.EffectivePermissions(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.Equal(t, 4, source.calls)
}

func TestResolverErrorNotCached(t *testing.T) {
	source := &countingSource{err: errors.New("pg unreachable")}
	resolver := NewResolver(source, newTestCache(t))

	_, err := resolver.EffectivePermissions(context.Background(), 1)
	require.Error(t, err)

	source.err = nil
	source.perms = map[int64][]string{1: {"USER_VIEW"}}
	perms, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER_VIEW"}, perms)
}

func TestResolverNilCache(t *testing.T) {
	source := &countingSource{perms: map[int64][]string{1: {"USER_VIEW"}}}
	resolver := NewResolver(source, nil)

	perms, err := resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"USER_VIEW"}, perms)

	_, err = resolver.EffectivePermissions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls, "nil cache disables caching")
}

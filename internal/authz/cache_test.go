package authz

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *DecisionCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDecisionCache(client, 30*time.Second)
}

func TestDecisionCacheHitAndMiss(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	sub := uuid.New()

	_, ok, err := cache.Get(ctx, sub, Wildcard, "obj", ActionDataProductDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, sub, Wildcard, "obj", ActionDataProductDelete, true))
	allowed, ok, err := cache.Get(ctx, sub, Wildcard, "obj", ActionDataProductDelete)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, allowed)

	// Denials are cached too.
	require.NoError(t, cache.Set(ctx, sub, Wildcard, "other", ActionDataProductDelete, false))
	allowed, ok, err = cache.Get(ctx, sub, Wildcard, "other", ActionDataProductDelete)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, allowed)
}

func TestDecisionCacheInvalidateOrphansEntries(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	sub := uuid.New()

	require.NoError(t, cache.Set(ctx, sub, Wildcard, "obj", ActionDataProductDelete, true))
	require.NoError(t, cache.Invalidate(ctx))

	_, ok, err := cache.Get(ctx, sub, Wildcard, "obj", ActionDataProductDelete)
	require.NoError(t, err)
	assert.False(t, ok, "entries written under the old version are unreachable")
}

func TestEngineCachesDecisions(t *testing.T) {
	f := newEngineFixture(t)
	cache := newTestCache(t)
	f.engine = NewEngine(f.store, NewResolver(f.catalog), cache, slog.New(slog.DiscardHandler))

	alice := uuid.New()
	ctx := context.Background()
	require.NoError(t, f.engine.AssignResourceRole(ctx, alice, f.editor, f.product.String()))

	allowed, err := f.engine.HasAccess(ctx, alice, Wildcard, f.product.String(), ActionDataProductUpdateProperties)
	require.NoError(t, err)
	require.True(t, allowed)

	calls := f.store.permCalls
	allowed, err = f.engine.HasAccess(ctx, alice, Wildcard, f.product.String(), ActionDataProductUpdateProperties)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, calls, f.store.permCalls, "second check served from cache")
}

func TestEngineMutationInvalidatesCache(t *testing.T) {
	f := newEngineFixture(t)
	cache := newTestCache(t)
	f.engine = NewEngine(f.store, NewResolver(f.catalog), cache, slog.New(slog.DiscardHandler))

	alice := uuid.New()
	ctx := context.Background()
	require.NoError(t, f.engine.AssignResourceRole(ctx, alice, f.editor, f.product.String()))

	allowed, err := f.engine.HasAccess(ctx, alice, Wildcard, f.product.String(), ActionDataProductUpdateProperties)
	require.NoError(t, err)
	require.True(t, allowed)

	// The revoke bumps the version, so the cached allow never survives it.
	require.NoError(t, f.engine.RevokeResourceRole(ctx, alice, f.editor, f.product.String()))

	allowed, err = f.engine.HasAccess(ctx, alice, Wildcard, f.product.String(), ActionDataProductUpdateProperties)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEngineCacheFailureFallsThrough(t *testing.T) {
	f := newEngineFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f.engine = NewEngine(f.store, NewResolver(f.catalog), NewDecisionCache(client, 30*time.Second), slog.New(slog.DiscardHandler))

	alice := uuid.New()
	ctx := context.Background()
	require.NoError(t, f.engine.AssignResourceRole(ctx, alice, f.editor, f.product.String()))

	mr.SetError("boom")

	allowed, err := f.engine.HasAccess(ctx, alice, Wildcard, f.product.String(), ActionDataProductUpdateProperties)
	require.NoError(t, err, "cache failures are never authoritative")
	assert.True(t, allowed)
}

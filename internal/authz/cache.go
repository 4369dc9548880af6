package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "authz:decisions:version"

// DecisionCache memoizes allow/deny results in Redis. Entries are keyed by
// a version counter that every policy mutation bumps, so stale decisions
// become unreachable the moment a grant or permission set changes. Cache
// failures are never authoritative: callers fall through to the store.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache constructs a cache with the given entry TTL.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func (c *DecisionCache) key(ctx context.Context, sub uuid.UUID, dom, obj string, act Action) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("authz:decisions:%d:%s:%s:%s:%d", ver, sub, dom, obj, int(act)), nil
}

// Get returns the cached decision and whether one was present.
func (c *DecisionCache) Get(ctx context.Context, sub uuid.UUID, dom, obj string, act Action) (allowed, ok bool, err error) {
	key, err := c.key(ctx, sub, dom, obj, act)
	if err != nil {
		return false, false, err
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// Set stores a decision under the current version.
func (c *DecisionCache) Set(ctx context.Context, sub uuid.UUID, dom, obj string, act Action, allowed bool) error {
	key, err := c.key(ctx, sub, dom, obj, act)
	if err != nil {
		return err
	}
	val := "0"
	if allowed {
		val = "1"
	}
	return c.client.Set(ctx, key, val, c.ttl).Err()
}

// Invalidate bumps the version counter, orphaning every cached decision.
func (c *DecisionCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

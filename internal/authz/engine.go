package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Engine is the authorization decision function plus the single write path
// for grants. Construct one per process and inject it; there is no package
// level instance.
type Engine struct {
	store    PolicyStore
	resolver *Resolver
	cache    *DecisionCache
	logger   *slog.Logger
}

// NewEngine constructs an engine. The cache may be nil, in which case every
// decision hits the store.
func NewEngine(store PolicyStore, resolver *Resolver, cache *DecisionCache, logger *slog.Logger) *Engine {
	return &Engine{store: store, resolver: resolver, cache: cache, logger: logger}
}

// HasAccess decides whether the subject may perform the action on the
// object. Checks run in order, short-circuiting on the first match:
//
//  1. unexpired global admin grant (bypasses everything)
//  2. role granted directly at the object
//  3. role granted at the object's owning domain
//  4. global role whose permission set contains the action
//
// When dom is Wildcard and the object is concrete, the owning domain is
// resolved live; an object that no longer resolves simply skips step 3.
// Store failures fail closed: (false, error wrapping ErrStoreUnavailable).
func (e *Engine) HasAccess(ctx context.Context, sub uuid.UUID, dom, obj string, act Action) (bool, error) {
	if allowed, ok := e.cachedDecision(ctx, sub, dom, obj, act); ok {
		return allowed, nil
	}

	allowed, err := e.evaluate(ctx, sub, dom, obj, act)
	if err != nil {
		return false, err
	}
	e.storeDecision(ctx, sub, dom, obj, act, allowed)
	return allowed, nil
}

func (e *Engine) evaluate(ctx context.Context, sub uuid.UUID, dom, obj string, act Action) (bool, error) {
	isAdmin, err := e.store.HasAdminGrant(ctx, sub)
	if err != nil {
		return false, err
	}
	if isAdmin {
		return true, nil
	}

	if obj != Wildcard {
		ok, err := e.store.HasPermission(ctx, sub, ScopeResource, obj, act)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	if dom == Wildcard && obj != Wildcard && e.resolver != nil {
		// The owning domain is resolved live on every check: a resource
		// that moved between domains picks up the new domain's grants on
		// the next decision without explicit invalidation.
		resolved, err := e.resolver.ResolveDomain(ctx, kindForAction(act), obj)
		if err != nil {
			return false, err
		}
		dom = resolved
	}
	if dom != Wildcard {
		ok, err := e.store.HasPermission(ctx, sub, ScopeDomain, dom, act)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}

	return e.store.HasPermission(ctx, sub, ScopeGlobal, Wildcard, act)
}

// kindForAction infers the resource kind from the action's namespace range.
func kindForAction(act Action) ResourceKind {
	switch {
	case act >= 300 && act < 400:
		return KindDataProduct
	case act >= 400 && act < 500:
		return KindDataset
	default:
		return KindGlobal
	}
}

// HasAdminRole reports whether the user holds an unexpired admin grant.
func (e *Engine) HasAdminRole(ctx context.Context, userID uuid.UUID) (bool, error) {
	return e.store.HasAdminGrant(ctx, userID)
}

// AssignResourceRole grants a role on one resource.
func (e *Engine) AssignResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error {
	return e.mutate(ctx, func() error {
		return e.store.AddGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeResource, ObjectID: resourceID})
	})
}

// RevokeResourceRole removes a resource-scoped grant.
func (e *Engine) RevokeResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeResource, ObjectID: resourceID})
	})
}

// AssignDomainRole grants a role on every resource in a domain.
func (e *Engine) AssignDomainRole(ctx context.Context, userID, roleID uuid.UUID, domainID string) error {
	return e.mutate(ctx, func() error {
		return e.store.AddGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeDomain, ObjectID: domainID})
	})
}

// RevokeDomainRole removes a domain-scoped grant.
func (e *Engine) RevokeDomainRole(ctx context.Context, userID, roleID uuid.UUID, domainID string) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeDomain, ObjectID: domainID})
	})
}

// AssignGlobalRole grants a role everywhere.
func (e *Engine) AssignGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return e.mutate(ctx, func() error {
		return e.store.AddGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeGlobal, ObjectID: Wildcard})
	})
}

// RevokeGlobalRole removes a global grant.
func (e *Engine) RevokeGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrant(ctx, Grant{UserID: userID, RoleID: roleID, Scope: ScopeGlobal, ObjectID: Wildcard})
	})
}

// AssignAdminRole grants the built-in admin role.
func (e *Engine) AssignAdminRole(ctx context.Context, userID uuid.UUID) error {
	return e.AssignGlobalRole(ctx, userID, AdminRoleID)
}

// RevokeAdminRole removes the built-in admin role. Revoking an absent grant
// is a no-op, which keeps the elevation sweep idempotent.
func (e *Engine) RevokeAdminRole(ctx context.Context, userID uuid.UUID) error {
	return e.RevokeGlobalRole(ctx, userID, AdminRoleID)
}

// SyncRolePermissions replaces a role's permission set in the policy store.
// The new set fully replaces the prior one; re-running with the same set is
// a no-op. Callers must not return to their caller before this completes,
// otherwise revoked permissions stay live for a window.
func (e *Engine) SyncRolePermissions(ctx context.Context, roleID uuid.UUID, actions []Action) error {
	return e.mutate(ctx, func() error {
		return e.store.ReplaceRolePolicies(ctx, roleID, actions)
	})
}

// ClearAssignmentsForUser removes every grant a user holds. Called when a
// user is deleted.
func (e *Engine) ClearAssignmentsForUser(ctx context.Context, userID uuid.UUID) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrantsForUser(ctx, userID)
	})
}

// ClearAssignmentsForRole removes every grant referencing a role at the
// given scope. Called before a role is deleted.
func (e *Engine) ClearAssignmentsForRole(ctx context.Context, roleID uuid.UUID, scope GrantScope) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrantsForRole(ctx, roleID, scope)
	})
}

// ClearAssignmentsForResource removes every grant attached to a resource.
// Called when the resource is deleted.
func (e *Engine) ClearAssignmentsForResource(ctx context.Context, resourceID string) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrantsForObject(ctx, ScopeResource, resourceID)
	})
}

// ClearAssignmentsForDomain removes every grant attached to a domain.
func (e *Engine) ClearAssignmentsForDomain(ctx context.Context, domainID string) error {
	return e.mutate(ctx, func() error {
		return e.store.RemoveGrantsForObject(ctx, ScopeDomain, domainID)
	})
}

// InvalidateCache orphans all cached decisions. Exposed for the elevation
// sweep, which commits its grant removals outside the engine's write path.
func (e *Engine) InvalidateCache(ctx context.Context) {
	e.bumpCache(ctx)
}

func (e *Engine) mutate(ctx context.Context, fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	e.bumpCache(ctx)
	return nil
}

func (e *Engine) bumpCache(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx); err != nil && e.logger != nil {
		e.logger.Warn("authz cache invalidate", slog.Any("error", err))
	}
}

func (e *Engine) cachedDecision(ctx context.Context, sub uuid.UUID, dom, obj string, act Action) (allowed, ok bool) {
	if e.cache == nil {
		return false, false
	}
	allowed, ok, err := e.cache.Get(ctx, sub, dom, obj, act)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("authz cache read", slog.Any("error", err))
		}
		return false, false
	}
	return allowed, ok
}

func (e *Engine) storeDecision(ctx context.Context, sub uuid.UUID, dom, obj string, act Action, allowed bool) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, sub, dom, obj, act, allowed); err != nil && e.logger != nil {
		e.logger.Warn("authz cache write", slog.Any("error", err))
	}
}

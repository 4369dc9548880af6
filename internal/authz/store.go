package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-data/meridian/internal/shared"
)

// PolicyStore is the durable store of grant tuples and role-permission
// policies. Every mutation is atomic per call: a concurrent reader never
// observes a half-written tuple or a role with a partially replaced
// permission set. Implementations report backend failures by wrapping
// shared.ErrStoreUnavailable so the engine can fail closed.
type PolicyStore interface {
	AddGrant(ctx context.Context, grant Grant) error
	RemoveGrant(ctx context.Context, grant Grant) error
	RemoveGrantsForUser(ctx context.Context, userID uuid.UUID) error
	RemoveGrantsForRole(ctx context.Context, roleID uuid.UUID, scope GrantScope) error
	RemoveGrantsForObject(ctx context.Context, scope GrantScope, objectID string) error

	// ReplaceRolePolicies swaps the full permission set of a role in one
	// transaction. The new set replaces the old; running it twice with the
	// same actions is a no-op.
	ReplaceRolePolicies(ctx context.Context, roleID uuid.UUID, actions []Action) error

	// HasPermission reports whether the user holds, at the given scope and
	// object, any role whose permission set contains the action.
	HasPermission(ctx context.Context, userID uuid.UUID, scope GrantScope, objectID string, act Action) (bool, error)

	// HasAdminGrant reports whether the user holds an unexpired global
	// admin grant. Expiry is read from the user row so an elevation that
	// lapsed is never honored, even before the sweep has cleaned it up.
	HasAdminGrant(ctx context.Context, userID uuid.UUID) (bool, error)
}

// PolicyRepository is the PostgreSQL-backed PolicyStore.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository constructs a repository over the shared pool.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("authz: %s: %w: %v", op, shared.ErrStoreUnavailable, err)
}

// AddGrant inserts a grant tuple. Re-adding an existing grant is a no-op.
func (r *PolicyRepository) AddGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO authz_grants (user_id, role_id, scope, object_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		grant.UserID, grant.RoleID, string(grant.Scope), grant.ObjectID)
	if err != nil {
		return storeErr("add grant", err)
	}
	return nil
}

// RemoveGrant deletes one grant tuple. Removing an absent grant is a no-op.
func (r *PolicyRepository) RemoveGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM authz_grants
		WHERE user_id = $1 AND role_id = $2 AND scope = $3 AND object_id = $4`,
		grant.UserID, grant.RoleID, string(grant.Scope), grant.ObjectID)
	if err != nil {
		return storeErr("remove grant", err)
	}
	return nil
}

// RemoveGrantsForUser clears every grant held by a user, at all scopes.
func (r *PolicyRepository) RemoveGrantsForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM authz_grants WHERE user_id = $1`, userID)
	if err != nil {
		return storeErr("remove grants for user", err)
	}
	return nil
}

// RemoveGrantsForRole clears every grant referencing a role at one scope.
func (r *PolicyRepository) RemoveGrantsForRole(ctx context.Context, roleID uuid.UUID, scope GrantScope) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM authz_grants WHERE role_id = $1 AND scope = $2`,
		roleID, string(scope))
	if err != nil {
		return storeErr("remove grants for role", err)
	}
	return nil
}

// RemoveGrantsForObject clears every grant attached to a resource or domain.
func (r *PolicyRepository) RemoveGrantsForObject(ctx context.Context, scope GrantScope, objectID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM authz_grants WHERE scope = $1 AND object_id = $2`,
		string(scope), objectID)
	if err != nil {
		return storeErr("remove grants for object", err)
	}
	return nil
}

// ReplaceRolePolicies swaps a role's permission rows inside one transaction.
func (r *PolicyRepository) ReplaceRolePolicies(ctx context.Context, roleID uuid.UUID, actions []Action) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr("replace policies begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM authz_role_policies WHERE role_id = $1`, roleID); err != nil {
		return storeErr("replace policies clear", err)
	}
	for _, act := range actions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO authz_role_policies (role_id, action)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, roleID, int(act)); err != nil {
			return storeErr("replace policies insert", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storeErr("replace policies commit", err)
	}
	return nil
}

// HasPermission checks grants joined with role policies at a single scope.
func (r *PolicyRepository) HasPermission(ctx context.Context, userID uuid.UUID, scope GrantScope, objectID string, act Action) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM authz_grants g
			JOIN authz_role_policies p ON p.role_id = g.role_id
			WHERE g.user_id = $1 AND g.scope = $2 AND g.object_id = $3 AND p.action = $4
		)`, userID, string(scope), objectID, int(act)).Scan(&ok)
	if err != nil {
		return false, storeErr("has permission", err)
	}
	return ok, nil
}

// HasAdminGrant checks the global admin grant against the user's elevation expiry.
func (r *PolicyRepository) HasAdminGrant(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM authz_grants g
			JOIN users u ON u.id = g.user_id
			WHERE g.user_id = $1
			  AND g.scope = $2
			  AND g.role_id = $3
			  AND (u.admin_expiry IS NULL OR u.admin_expiry > now())
		)`, userID, string(ScopeGlobal), AdminRoleID).Scan(&ok)
	if err != nil {
		return false, storeErr("has admin grant", err)
	}
	return ok, nil
}

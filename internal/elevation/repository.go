// Package elevation manages temporary admin access: eligible users elevate
// themselves for a bounded window, and a background sweep demotes anyone
// whose window has lapsed.
package elevation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

// Repository reads and writes the elevation columns on users. The sweep's
// demotion path writes the grant table directly so the grant removal and
// the expiry reset commit together.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Eligibility returns whether the user may elevate and their current expiry.
func (r *Repository) Eligibility(ctx context.Context, userID uuid.UUID) (bool, *time.Time, error) {
	var canBecome bool
	var expiry *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT can_become_admin, admin_expiry FROM users WHERE id = $1`, userID,
	).Scan(&canBecome, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, userID)
		}
		return false, nil, fmt.Errorf("elevation eligibility: %w", err)
	}
	return canBecome, expiry, nil
}

// SetExpiry stamps the admin window. Re-elevation simply overwrites the
// previous expiry: last write wins.
func (r *Repository) SetExpiry(ctx context.Context, userID uuid.UUID, expiry *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET admin_expiry = $2 WHERE id = $1`, userID, expiry)
	if err != nil {
		return fmt.Errorf("set admin expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", shared.ErrNotFound, userID)
	}
	return nil
}

// ListExpired returns users whose admin window has lapsed as of now.
func (r *Repository) ListExpired(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE admin_expiry IS NOT NULL AND admin_expiry <= now()`)
	if err != nil {
		return nil, fmt.Errorf("list expired elevations: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list expired elevations: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Demote removes one user's admin grant and clears their expiry in a single
// transaction. The row is locked and the expiry re-checked under the lock,
// so a user who re-elevated between the sweep's listing and this call keeps
// their access. Returns whether a demotion actually happened.
func (r *Repository) Demote(ctx context.Context, userID uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("demote: %w", err)
	}
	defer tx.Rollback(ctx)

	var expiry *time.Time
	err = tx.QueryRow(ctx,
		`SELECT admin_expiry FROM users WHERE id = $1 FOR UPDATE`, userID,
	).Scan(&expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("demote: %w", err)
	}
	if expiry == nil || expiry.After(time.Now()) {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM authz_grants WHERE user_id = $1 AND role_id = $2 AND scope = $3`,
		userID, authz.AdminRoleID, authz.ScopeGlobal)
	if err != nil {
		return false, fmt.Errorf("demote: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE users SET admin_expiry = NULL WHERE id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("demote: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("demote: %w", err)
	}
	return true, nil
}

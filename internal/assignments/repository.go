package assignments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-data/meridian/internal/shared"
)

// Repository persists role assignments in Postgres. A partial unique index
// on (kind, resource_id, user_id, role_id) where status <> 'denied' backs
// duplicate detection; denied rows are replaced on re-request.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assignmentColumns = `id, kind, resource_id, user_id, role_id, status, requested_by, requested_at, decided_by, decided_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.Kind, &a.ResourceID, &a.UserID, &a.RoleID, &a.Status,
		&a.RequestedBy, &a.RequestedAt, &a.DecidedBy, &a.DecidedAt)
	return a, err
}

// Create inserts a pending assignment, replacing any denied predecessor for
// the same (kind, resource, user, role) tuple.
func (r *Repository) Create(ctx context.Context, a Assignment) (Assignment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM role_assignments
		WHERE kind = $1 AND resource_id IS NOT DISTINCT FROM $2 AND user_id = $3 AND role_id = $4 AND status = 'denied'`,
		a.Kind, a.ResourceID, a.UserID, a.RoleID,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO role_assignments (id, kind, resource_id, user_id, role_id, status, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+assignmentColumns,
		a.ID, a.Kind, a.ResourceID, a.UserID, a.RoleID, a.Status, a.RequestedBy,
	)
	created, err := scanAssignment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, fmt.Errorf("%w: user already holds or has requested this role", shared.ErrValidation)
		}
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM role_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("%w: role assignment %s", shared.ErrNotFound, id)
		}
		return Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// ListFilter narrows List results. Zero-valued fields are ignored.
type ListFilter struct {
	Kind       Kind
	ResourceID *uuid.UUID
	UserID     *uuid.UUID
	Status     DecisionStatus
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM role_assignments WHERE 1=1`
	args := []any{}
	n := 0
	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if f.Kind != "" {
		query += ` AND kind = ` + arg(f.Kind)
	}
	if f.ResourceID != nil {
		query += ` AND resource_id = ` + arg(*f.ResourceID)
	}
	if f.UserID != nil {
		query += ` AND user_id = ` + arg(*f.UserID)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(f.Status)
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Decide flips a pending assignment to approved or denied. A non-pending
// row is left untouched and reported as a conflict.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, status DecisionStatus, decidedBy uuid.UUID) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE role_assignments
		SET status = $2, decided_by = $3, decided_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+assignmentColumns,
		id, status, decidedBy,
	)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return Assignment{}, getErr
			}
			return Assignment{}, fmt.Errorf("%w: role assignment %s has already been decided", shared.ErrConflict, id)
		}
		return Assignment{}, fmt.Errorf("decide assignment: %w", err)
	}
	return a, nil
}

func (r *Repository) UpdateRole(ctx context.Context, id, roleID uuid.UUID) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE role_assignments SET role_id = $2 WHERE id = $1
		RETURNING `+assignmentColumns,
		id, roleID,
	)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("%w: role assignment %s", shared.ErrNotFound, id)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Assignment{}, fmt.Errorf("%w: user already holds or has requested this role", shared.ErrValidation)
		}
		return Assignment{}, fmt.Errorf("update assignment role: %w", err)
	}
	return a, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role assignment %s", shared.ErrNotFound, id)
	}
	return nil
}

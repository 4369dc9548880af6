package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/cases"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

// Repository persists role definitions in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, scope, description, permissions, prototype, created_at, updated_at`

// foldCaser backs the name_key column: (name_key, scope) is unique, so role
// names that differ only in case collide regardless of locale.
var foldCaser = cases.Fold()

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	var perms []int32
	err := row.Scan(&r.ID, &r.Name, &r.Scope, &r.Description, &perms, &r.Prototype, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Role{}, err
	}
	r.Permissions = make([]authz.Action, 0, len(perms))
	for _, p := range perms {
		r.Permissions = append(r.Permissions, authz.Action(p))
	}
	return r, nil
}

func permValues(perms []authz.Action) []int32 {
	out := make([]int32, 0, len(perms))
	for _, p := range perms {
		out = append(out, int32(p))
	}
	return out
}

func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (id, name, name_key, scope, description, permissions, prototype)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+roleColumns,
		role.ID, role.Name, foldCaser.String(role.Name), role.Scope, role.Description, permValues(role.Permissions), role.Prototype,
	)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("%w: a role named %q already exists in scope %q", shared.ErrValidation, role.Name, role.Scope)
		}
		return Role{}, fmt.Errorf("create role: %w", err)
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %s", shared.ErrNotFound, id)
		}
		return Role{}, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// List returns roles, optionally filtered to one scope. Scope "" means all.
func (r *Repository) List(ctx context.Context, scope Scope) ([]Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY scope, name`
	args := []any{}
	if scope != "" {
		query = `SELECT ` + roleColumns + ` FROM roles WHERE scope = $1 ORDER BY name`
		args = append(args, scope)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("list roles: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// FindPrototype looks up the built-in role of the given kind within a scope.
func (r *Repository) FindPrototype(ctx context.Context, scope Scope, proto Prototype) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE scope = $1 AND prototype = $2`, scope, proto)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: no prototype %d role in scope %q", shared.ErrNotFound, proto, scope)
		}
		return Role{}, fmt.Errorf("find prototype role: %w", err)
	}
	return role, nil
}

func (r *Repository) Update(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, name_key = $3, description = $4, permissions = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, foldCaser.String(role.Name), role.Description, permValues(role.Permissions),
	)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("%w: role %s", shared.ErrNotFound, role.ID)
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("%w: a role named %q already exists in scope %q", shared.ErrValidation, role.Name, role.Scope)
		}
		return Role{}, fmt.Errorf("update role: %w", err)
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: role %s", shared.ErrNotFound, id)
	}
	return nil
}

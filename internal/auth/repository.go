package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-data/meridian/internal/shared"
	"github.com/meridian-data/meridian/internal/users"
)

// Repository persists API keys and loads the principal they belong to.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, key APIKey) (APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO api_keys (id, user_id, name, secret_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, secret_hash, created_at, last_used_at`,
		key.ID, key.UserID, key.Name, key.SecretHash,
	)
	var created APIKey
	err := row.Scan(&created.ID, &created.UserID, &created.Name, &created.SecretHash, &created.CreatedAt, &created.LastUsedAt)
	if err != nil {
		return APIKey{}, fmt.Errorf("create api key: %w", err)
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, name, secret_hash, created_at, last_used_at
		FROM api_keys WHERE id = $1`, id)
	var key APIKey
	err := row.Scan(&key.ID, &key.UserID, &key.Name, &key.SecretHash, &key.CreatedAt, &key.LastUsedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, fmt.Errorf("%w: api key %s", shared.ErrNotFound, id)
		}
		return APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key %s", shared.ErrNotFound, id)
	}
	return nil
}

// TouchLastUsed stamps the key's last use. Best effort; callers ignore errors.
func (r *Repository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	return err
}

// FindUser loads the owning account for an authenticated key.
func (r *Repository) FindUser(ctx context.Context, userID uuid.UUID) (users.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, can_become_admin, admin_expiry, created_at, updated_at
		FROM users WHERE id = $1`, userID)
	var u users.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName,
		&u.CanBecomeAdmin, &u.AdminExpiry, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.User{}, fmt.Errorf("%w: user %s", shared.ErrNotFound, userID)
		}
		return users.User{}, fmt.Errorf("find key owner: %w", err)
	}
	return u, nil
}

// Package auth authenticates requests with API keys. A key is presented as
// "<key-id>.<secret>"; the secret is stored bcrypt-hashed, so a leaked
// database dump does not leak usable credentials.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a long-lived credential bound to one user.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Name       string     `json:"name"`
	SecretHash string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

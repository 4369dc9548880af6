// Package users manages user accounts and their elevation eligibility.
package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account in the catalog. AdminExpiry is non-nil while the user
// holds an active admin elevation.
type User struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	CanBecomeAdmin bool       `json:"can_become_admin"`
	AdminExpiry    *time.Time `json:"admin_expiry,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

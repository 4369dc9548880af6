// Package roles is the role registry: CRUD over role definitions and the
// synchronization hooks that push permission changes into the policy store.
package roles

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
)

// Scope bounds the resources a role can be granted on.
type Scope string

const (
	ScopeDataset     Scope = "dataset"
	ScopeDataProduct Scope = "data_product"
	ScopeDomain      Scope = "domain"
	ScopeGlobal      Scope = "global"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeDataset, ScopeDataProduct, ScopeDomain, ScopeGlobal:
		return true
	}
	return false
}

// GrantScope maps a role scope to the grant flavor its assignments use:
// dataset and data product roles are granted on individual resources,
// domain roles on domains, global roles everywhere.
func (s Scope) GrantScope() authz.GrantScope {
	switch s {
	case ScopeDomain:
		return authz.ScopeDomain
	case ScopeGlobal:
		return authz.ScopeGlobal
	default:
		return authz.ScopeResource
	}
}

// Prototype marks built-in roles with protected lifecycle.
type Prototype int

const (
	PrototypeCustom   Prototype = 0
	PrototypeEveryone Prototype = 1
	PrototypeOwner    Prototype = 2
	PrototypeAdmin    Prototype = 3
)

// Role is a named permission grouping scoped to a resource type.
// (Name, Scope) is unique, compared case-insensitively.
type Role struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Scope       Scope          `json:"scope"`
	Description string         `json:"description"`
	Permissions []authz.Action `json:"permissions"`
	Prototype   Prototype      `json:"prototype"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

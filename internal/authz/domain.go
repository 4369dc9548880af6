// Package authz implements the hybrid RBAC/ReBAC access-control engine:
// grant storage, the decision function, resource-to-domain resolution and
// HTTP enforcement. All policy mutations in the application go through the
// Engine so that grants never reference roles that are gone.
package authz

import "github.com/google/uuid"

// Wildcard marks a grant field that matches anything ("any resource",
// "any domain"). It is also the object of every global grant.
const Wildcard = "*"

// GrantScope distinguishes the three grant flavors.
type GrantScope string

const (
	// ScopeResource grants a role on one specific resource.
	ScopeResource GrantScope = "resource"
	// ScopeDomain grants a role on every resource belonging to a domain.
	ScopeDomain GrantScope = "domain"
	// ScopeGlobal grants a role everywhere.
	ScopeGlobal GrantScope = "global"
)

// Grant is a stored policy tuple assigning a role to a user at a scope.
// ObjectID holds the resource id for resource grants, the domain id for
// domain grants and Wildcard for global grants.
type Grant struct {
	UserID   uuid.UUID
	RoleID   uuid.UUID
	Scope    GrantScope
	ObjectID string
}

// AdminRoleID is the fixed identity of the built-in admin role. The admin
// role carries no permission set; holding it bypasses every action check.
var AdminRoleID = uuid.MustParse("6b55b7b6-8f01-4f72-9db2-6c8459cbc07e")

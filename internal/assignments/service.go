package assignments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/roles"
	"github.com/meridian-data/meridian/internal/shared"
)

// AssignmentStore is the persistence port for assignment records.
type AssignmentStore interface {
	Create(ctx context.Context, a Assignment) (Assignment, error)
	Get(ctx context.Context, id uuid.UUID) (Assignment, error)
	List(ctx context.Context, f ListFilter) ([]Assignment, error)
	Decide(ctx context.Context, id uuid.UUID, status DecisionStatus, decidedBy uuid.UUID) (Assignment, error)
	UpdateRole(ctx context.Context, id, roleID uuid.UUID) (Assignment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GrantWriter is the slice of the authorization engine assignments drive:
// approvals write grants, removals and denials revoke them.
type GrantWriter interface {
	AssignResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error
	RevokeResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error
	AssignGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error
	RevokeGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error
}

// RoleLookup answers what a role is scoped to.
type RoleLookup interface {
	Get(ctx context.Context, id uuid.UUID) (roles.Role, error)
}

// ResourceChecker verifies that the target resource exists before a request
// is recorded against it.
type ResourceChecker interface {
	Exists(ctx context.Context, kind authz.ResourceKind, objectID string) (bool, error)
}

type Service struct {
	logger    *slog.Logger
	store     AssignmentStore
	grants    GrantWriter
	roles     RoleLookup
	resources ResourceChecker
}

func NewService(logger *slog.Logger, store AssignmentStore, grants GrantWriter, roleLookup RoleLookup, resources ResourceChecker) *Service {
	return &Service{logger: logger, store: store, grants: grants, roles: roleLookup, resources: resources}
}

type CreateAssignment struct {
	Kind       Kind       `json:"kind" validate:"required"`
	ResourceID *uuid.UUID `json:"resource_id"`
	UserID     uuid.UUID  `json:"user_id" validate:"required"`
	RoleID     uuid.UUID  `json:"role_id" validate:"required"`
}

// roleScopeFor maps an assignment kind to the role scope it accepts.
func roleScopeFor(k Kind) roles.Scope {
	switch k {
	case KindDataProduct:
		return roles.ScopeDataProduct
	case KindDataset:
		return roles.ScopeDataset
	default:
		return roles.ScopeGlobal
	}
}

func resourceKindFor(k Kind) authz.ResourceKind {
	switch k {
	case KindDataProduct:
		return authz.KindDataProduct
	case KindDataset:
		return authz.KindDataset
	default:
		return authz.KindGlobal
	}
}

// Request records a pending assignment. The role must match the kind's
// scope, the target resource must exist, and the admin role can never be
// requested: admin access only moves through elevation.
func (s *Service) Request(ctx context.Context, in CreateAssignment, requestedBy uuid.UUID) (Assignment, error) {
	if !in.Kind.Valid() {
		return Assignment{}, fmt.Errorf("%w: unknown assignment kind %q", shared.ErrValidation, in.Kind)
	}
	if in.RoleID == authz.AdminRoleID {
		return Assignment{}, fmt.Errorf("%w: the admin role cannot be requested", shared.ErrValidation)
	}

	role, err := s.roles.Get(ctx, in.RoleID)
	if err != nil {
		return Assignment{}, err
	}
	if want := roleScopeFor(in.Kind); role.Scope != want {
		return Assignment{}, fmt.Errorf("%w: role %q is scoped to %s, not %s", shared.ErrValidation, role.Name, role.Scope, want)
	}

	if in.Kind == KindGlobal {
		if in.ResourceID != nil {
			return Assignment{}, fmt.Errorf("%w: global assignments carry no resource", shared.ErrValidation)
		}
	} else {
		if in.ResourceID == nil {
			return Assignment{}, fmt.Errorf("%w: %s assignments require a resource", shared.ErrValidation, in.Kind)
		}
		ok, err := s.resources.Exists(ctx, resourceKindFor(in.Kind), in.ResourceID.String())
		if err != nil {
			return Assignment{}, err
		}
		if !ok {
			return Assignment{}, fmt.Errorf("%w: %s %s", shared.ErrNotFound, in.Kind, in.ResourceID)
		}
	}

	a, err := s.store.Create(ctx, Assignment{
		ID:          uuid.New(),
		Kind:        in.Kind,
		ResourceID:  in.ResourceID,
		UserID:      in.UserID,
		RoleID:      in.RoleID,
		Status:      StatusPending,
		RequestedBy: requestedBy,
	})
	if err != nil {
		return Assignment{}, err
	}
	s.logger.Info("role assignment requested",
		"assignment_id", a.ID, "kind", a.Kind, "user_id", a.UserID, "role_id", a.RoleID)
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Assignment, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown assignment kind %q", shared.ErrValidation, f.Kind)
	}
	return s.store.List(ctx, f)
}

// Decide approves or denies a pending assignment. Approval writes the grant;
// the status flip and the grant are not atomic, so the grant write happens
// after the row is safely approved and a failure is surfaced to the caller
// for retry.
func (s *Service) Decide(ctx context.Context, id uuid.UUID, approve bool, decidedBy uuid.UUID) (Assignment, error) {
	status := StatusDenied
	if approve {
		status = StatusApproved
	}
	a, err := s.store.Decide(ctx, id, status, decidedBy)
	if err != nil {
		return Assignment{}, err
	}
	if approve {
		if err := s.writeGrant(ctx, a); err != nil {
			return Assignment{}, err
		}
	}
	s.logger.Info("role assignment decided",
		"assignment_id", a.ID, "status", a.Status, "decided_by", decidedBy)
	return a, nil
}

// Remove deletes an assignment record. An approved assignment's grant is
// revoked first so access ends when the record does.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == StatusApproved {
		if err := s.revokeGrant(ctx, a); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role assignment removed", "assignment_id", a.ID, "kind", a.Kind, "user_id", a.UserID)
	return nil
}

// ModifyRole swaps the role on an existing assignment. For an approved
// assignment the old grant is revoked and the new one written.
func (s *Service) ModifyRole(ctx context.Context, id, roleID uuid.UUID) (Assignment, error) {
	if roleID == authz.AdminRoleID {
		return Assignment{}, fmt.Errorf("%w: the admin role cannot be assigned", shared.ErrValidation)
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.RoleID == roleID {
		return a, nil
	}

	role, err := s.roles.Get(ctx, roleID)
	if err != nil {
		return Assignment{}, err
	}
	if want := roleScopeFor(a.Kind); role.Scope != want {
		return Assignment{}, fmt.Errorf("%w: role %q is scoped to %s, not %s", shared.ErrValidation, role.Name, role.Scope, want)
	}

	updated, err := s.store.UpdateRole(ctx, id, roleID)
	if err != nil {
		return Assignment{}, err
	}
	if a.Status == StatusApproved {
		if err := s.revokeGrant(ctx, a); err != nil {
			return Assignment{}, err
		}
		if err := s.writeGrant(ctx, updated); err != nil {
			return Assignment{}, err
		}
	}
	s.logger.Info("role assignment role changed",
		"assignment_id", a.ID, "from_role", a.RoleID, "to_role", roleID)
	return updated, nil
}

func (s *Service) writeGrant(ctx context.Context, a Assignment) error {
	if a.Kind == KindGlobal {
		return s.grants.AssignGlobalRole(ctx, a.UserID, a.RoleID)
	}
	return s.grants.AssignResourceRole(ctx, a.UserID, a.RoleID, a.ResourceID.String())
}

func (s *Service) revokeGrant(ctx context.Context, a Assignment) error {
	if a.Kind == KindGlobal {
		return s.grants.RevokeGlobalRole(ctx, a.UserID, a.RoleID)
	}
	return s.grants.RevokeResourceRole(ctx, a.UserID, a.RoleID, a.ResourceID.String())
}

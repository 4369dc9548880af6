package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

// RoleStore is the persistence port for role definitions.
type RoleStore interface {
	Create(ctx context.Context, role Role) (Role, error)
	Get(ctx context.Context, id uuid.UUID) (Role, error)
	List(ctx context.Context, scope Scope) ([]Role, error)
	FindPrototype(ctx context.Context, scope Scope, proto Prototype) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PolicySyncer is the slice of the authorization engine the registry needs:
// role permission sets mirrored into the policy store, and grant cleanup on
// role deletion.
type PolicySyncer interface {
	SyncRolePermissions(ctx context.Context, roleID uuid.UUID, actions []authz.Action) error
	ClearAssignmentsForRole(ctx context.Context, roleID uuid.UUID, scope authz.GrantScope) error
}

type Service struct {
	logger *slog.Logger
	store  RoleStore
	authz  PolicySyncer
}

func NewService(logger *slog.Logger, store RoleStore, syncer PolicySyncer) *Service {
	return &Service{logger: logger, store: store, authz: syncer}
}

type CreateRole struct {
	Name        string         `json:"name" validate:"required,min=1,max=120"`
	Scope       Scope          `json:"scope" validate:"required"`
	Description string         `json:"description" validate:"max=1000"`
	Permissions []authz.Action `json:"permissions"`
}

type UpdateRole struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string         `json:"description" validate:"omitempty,max=1000"`
	Permissions *[]authz.Action `json:"permissions"`
}

// Create registers a new custom role and mirrors its permission set into the
// policy store before returning, so a grant issued right after creation
// already carries the intended permissions.
func (s *Service) Create(ctx context.Context, in CreateRole) (Role, error) {
	role, err := s.create(ctx, in, PrototypeCustom, uuid.New())
	if err != nil {
		return Role{}, err
	}
	s.logger.Info("role created", "role_id", role.ID, "name", role.Name, "scope", role.Scope)
	return role, nil
}

func (s *Service) create(ctx context.Context, in CreateRole, proto Prototype, id uuid.UUID) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name must not be empty", shared.ErrValidation)
	}
	if !in.Scope.Valid() {
		return Role{}, fmt.Errorf("%w: unknown role scope %q", shared.ErrValidation, in.Scope)
	}
	perms, err := canonicalize(in.Permissions)
	if err != nil {
		return Role{}, err
	}

	role, err := s.store.Create(ctx, Role{
		ID:          id,
		Name:        name,
		Scope:       in.Scope,
		Description: strings.TrimSpace(in.Description),
		Permissions: perms,
		Prototype:   proto,
	})
	if err != nil {
		return Role{}, err
	}
	if err := s.authz.SyncRolePermissions(ctx, role.ID, role.Permissions); err != nil {
		return Role{}, fmt.Errorf("sync role permissions: %w", err)
	}
	return role, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Role, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, scope Scope) ([]Role, error) {
	if scope != "" && !scope.Valid() {
		return nil, fmt.Errorf("%w: unknown role scope %q", shared.ErrValidation, scope)
	}
	return s.store.List(ctx, scope)
}

// Update renames or re-describes a role and optionally replaces its
// permission set. The admin role's permission set is immutable; its other
// fields may change.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateRole) (Role, error) {
	role, err := s.store.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}

	permsChanged := false
	if in.Permissions != nil {
		if role.Prototype == PrototypeAdmin {
			return Role{}, fmt.Errorf("%w: the admin role's permissions cannot be changed", shared.ErrForbidden)
		}
		perms, err := canonicalize(*in.Permissions)
		if err != nil {
			return Role{}, err
		}
		role.Permissions = perms
		permsChanged = true
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name must not be empty", shared.ErrValidation)
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}

	updated, err := s.store.Update(ctx, role)
	if err != nil {
		return Role{}, err
	}
	if permsChanged {
		if err := s.authz.SyncRolePermissions(ctx, updated.ID, updated.Permissions); err != nil {
			return Role{}, fmt.Errorf("sync role permissions: %w", err)
		}
		s.logger.Info("role permissions replaced", "role_id", updated.ID, "permissions", len(updated.Permissions))
	}
	return updated, nil
}

// Delete removes a custom role along with every grant that references it and
// its mirrored permission set. Prototype roles cannot be deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	role, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.Prototype != PrototypeCustom {
		return fmt.Errorf("%w: prototype role %q cannot be deleted", shared.ErrConflict, role.Name)
	}
	if err := s.authz.ClearAssignmentsForRole(ctx, role.ID, role.Scope.GrantScope()); err != nil {
		return fmt.Errorf("clear role grants: %w", err)
	}
	if err := s.authz.SyncRolePermissions(ctx, role.ID, nil); err != nil {
		return fmt.Errorf("clear role permissions: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("role deleted", "role_id", role.ID, "name", role.Name, "scope", role.Scope)
	return nil
}

func canonicalize(perms []authz.Action) ([]authz.Action, error) {
	seen := make(map[authz.Action]struct{}, len(perms))
	out := make([]authz.Action, 0, len(perms))
	for _, p := range perms {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown action %d", shared.ErrValidation, int(p))
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

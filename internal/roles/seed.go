package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

// prototypeSeed describes one built-in role created at startup.
type prototypeSeed struct {
	proto       Prototype
	scope       Scope
	name        string
	description string
	permissions []authz.Action
}

var prototypeSeeds = []prototypeSeed{
	{
		proto:       PrototypeAdmin,
		scope:       ScopeGlobal,
		name:        "Admin",
		description: "Unrestricted access to every resource. Assigned through elevation, not through role requests.",
	},
	{
		proto:       PrototypeEveryone,
		scope:       ScopeGlobal,
		name:        "Everyone",
		description: "Baseline permissions held by every signed-in user.",
		permissions: []authz.Action{
			authz.ActionGlobalCreateDataProduct,
			authz.ActionGlobalCreateDataset,
			authz.ActionGlobalRequestDataProductAccess,
			authz.ActionGlobalRequestDatasetAccess,
		},
	},
	{
		proto:       PrototypeOwner,
		scope:       ScopeDataProduct,
		name:        "Owner",
		description: "Full control over a data product.",
		permissions: []authz.Action{
			authz.ActionDataProductUpdateProperties,
			authz.ActionDataProductUpdateSettings,
			authz.ActionDataProductUpdateStatus,
			authz.ActionDataProductDelete,
			authz.ActionDataProductCreateUser,
			authz.ActionDataProductUpdateUser,
			authz.ActionDataProductDeleteUser,
			authz.ActionDataProductApproveUserRequest,
			authz.ActionDataProductCreateDataOutput,
			authz.ActionDataProductUpdateDataOutput,
			authz.ActionDataProductDeleteDataOutput,
			authz.ActionDataProductRequestOutputLink,
			authz.ActionDataProductRequestDataset,
			authz.ActionDataProductRevokeDataset,
			authz.ActionDataProductReadIntegrations,
		},
	},
	{
		proto:       PrototypeOwner,
		scope:       ScopeDataset,
		name:        "Owner",
		description: "Full control over a dataset.",
		permissions: []authz.Action{
			authz.ActionDatasetUpdateProperties,
			authz.ActionDatasetUpdateSettings,
			authz.ActionDatasetUpdateStatus,
			authz.ActionDatasetDelete,
			authz.ActionDatasetCreateUser,
			authz.ActionDatasetUpdateUser,
			authz.ActionDatasetDeleteUser,
			authz.ActionDatasetApproveUserRequest,
			authz.ActionDatasetApproveOutputLinkRequest,
			authz.ActionDatasetRevokeOutputLink,
			authz.ActionDatasetApproveProductAccess,
			authz.ActionDatasetRevokeProductAccess,
			authz.ActionDatasetReadIntegrations,
		},
	},
}

// SeedPrototypes creates the built-in roles that are missing. It is
// idempotent and safe to run on every startup; existing prototypes are left
// untouched so operator edits to names or descriptions survive restarts.
func (s *Service) SeedPrototypes(ctx context.Context) error {
	for _, seed := range prototypeSeeds {
		_, err := s.store.FindPrototype(ctx, seed.scope, seed.proto)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("seed prototype roles: %w", err)
		}

		// The admin role keeps a fixed identifier so elevation grants can
		// reference it without a lookup.
		id := uuid.New()
		if seed.proto == PrototypeAdmin {
			id = authz.AdminRoleID
		}
		role, err := s.create(ctx, CreateRole{
			Name:        seed.name,
			Scope:       seed.scope,
			Description: seed.description,
			Permissions: seed.permissions,
		}, seed.proto, id)
		if err != nil {
			return fmt.Errorf("seed prototype roles: %w", err)
		}
		s.logger.Info("prototype role seeded",
			slog.String("role_id", role.ID.String()),
			slog.String("name", role.Name),
			slog.String("scope", string(role.Scope)),
		)
	}
	return nil
}

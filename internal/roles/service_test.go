package roles

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

type mockRoleStore struct {
	roles map[uuid.UUID]Role

	createErr error
	updateErr error
}

func newMockRoleStore() *mockRoleStore {
	return &mockRoleStore{roles: make(map[uuid.UUID]Role)}
}

func (m *mockRoleStore) Create(ctx context.Context, role Role) (Role, error) {
	if m.createErr != nil {
		return Role{}, m.createErr
	}
	for _, existing := range m.roles {
		if existing.Scope == role.Scope && existing.Name == role.Name {
			return Role{}, shared.ErrValidation
		}
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRoleStore) Get(ctx context.Context, id uuid.UUID) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRoleStore) List(ctx context.Context, scope Scope) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if scope == "" || role.Scope == scope {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *mockRoleStore) FindPrototype(ctx context.Context, scope Scope, proto Prototype) (Role, error) {
	for _, role := range m.roles {
		if role.Scope == scope && role.Prototype == proto {
			return role, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *mockRoleStore) Update(ctx context.Context, role Role) (Role, error) {
	if m.updateErr != nil {
		return Role{}, m.updateErr
	}
	if _, ok := m.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRoleStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

type mockSyncer struct {
	synced  map[uuid.UUID][]authz.Action
	cleared map[uuid.UUID]authz.GrantScope

	syncErr error
}

func newMockSyncer() *mockSyncer {
	return &mockSyncer{
		synced:  make(map[uuid.UUID][]authz.Action),
		cleared: make(map[uuid.UUID]authz.GrantScope),
	}
}

func (m *mockSyncer) SyncRolePermissions(ctx context.Context, roleID uuid.UUID, actions []authz.Action) error {
	if m.syncErr != nil {
		return m.syncErr
	}
	m.synced[roleID] = actions
	return nil
}

func (m *mockSyncer) ClearAssignmentsForRole(ctx context.Context, roleID uuid.UUID, scope authz.GrantScope) error {
	m.cleared[roleID] = scope
	return nil
}

func newTestService(t *testing.T) (*Service, *mockRoleStore, *mockSyncer) {
	t.Helper()
	store := newMockRoleStore()
	syncer := newMockSyncer()
	return NewService(slog.New(slog.DiscardHandler), store, syncer), store, syncer
}

func TestCreateRoleSyncsPermissions(t *testing.T) {
	svc, _, syncer := newTestService(t)

	role, err := svc.Create(context.Background(), CreateRole{
		Name:  "Editor",
		Scope: ScopeDataProduct,
		Permissions: []authz.Action{
			authz.ActionDataProductUpdateProperties,
			authz.ActionDataProductUpdateProperties, // duplicate is dropped
			authz.ActionDataProductUpdateSettings,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, PrototypeCustom, role.Prototype)
	assert.Equal(t, []authz.Action{
		authz.ActionDataProductUpdateProperties,
		authz.ActionDataProductUpdateSettings,
	}, role.Permissions)
	assert.Equal(t, role.Permissions, syncer.synced[role.ID])
}

func TestCreateRoleRejectsUnknownAction(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateRole{
		Name:        "Broken",
		Scope:       ScopeDataset,
		Permissions: []authz.Action{authz.Action(999)},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRoleRejectsUnknownScope(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateRole{Name: "X", Scope: Scope("galaxy")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRoleDuplicateNameAndScope(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRole{Name: "Editor", Scope: ScopeDataset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateRole{Name: "Editor", Scope: ScopeDataset})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Same name in another scope is fine.
	_, err = svc.Create(ctx, CreateRole{Name: "Editor", Scope: ScopeDataProduct})
	require.NoError(t, err)
}

func TestUpdateAdminPermissionsForbidden(t *testing.T) {
	svc, store, syncer := newTestService(t)
	ctx := context.Background()

	admin := Role{ID: authz.AdminRoleID, Name: "Admin", Scope: ScopeGlobal, Prototype: PrototypeAdmin}
	store.roles[admin.ID] = admin

	_, err := svc.Update(ctx, admin.ID, UpdateRole{Permissions: &[]authz.Action{authz.ActionGlobalCreateUser}})
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, syncer.synced)

	// Renaming the admin role is allowed.
	name := "Administrator"
	updated, err := svc.Update(ctx, admin.ID, UpdateRole{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Administrator", updated.Name)
}

func TestUpdatePermissionsResyncs(t *testing.T) {
	svc, _, syncer := newTestService(t)
	ctx := context.Background()

	role, err := svc.Create(ctx, CreateRole{
		Name:        "Reviewer",
		Scope:       ScopeDataset,
		Permissions: []authz.Action{authz.ActionDatasetUpdateProperties},
	})
	require.NoError(t, err)

	perms := []authz.Action{authz.ActionDatasetUpdateStatus, authz.ActionDatasetUpdateProperties}
	updated, err := svc.Update(ctx, role.ID, UpdateRole{Permissions: &perms})
	require.NoError(t, err)

	// Canonical order, and the full set resynced (not a diff).
	want := []authz.Action{authz.ActionDatasetUpdateProperties, authz.ActionDatasetUpdateStatus}
	assert.Equal(t, want, updated.Permissions)
	assert.Equal(t, want, syncer.synced[role.ID])
}

func TestDeletePrototypeRoleConflicts(t *testing.T) {
	svc, store, syncer := newTestService(t)
	ctx := context.Background()

	owner := Role{ID: uuid.New(), Name: "Owner", Scope: ScopeDataset, Prototype: PrototypeOwner}
	store.roles[owner.ID] = owner

	err := svc.Delete(ctx, owner.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Contains(t, store.roles, owner.ID)
	assert.Empty(t, syncer.cleared)
}

func TestDeleteCustomRoleClearsGrants(t *testing.T) {
	svc, store, syncer := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		scope Scope
		want  authz.GrantScope
	}{
		{ScopeDataset, authz.ScopeResource},
		{ScopeDataProduct, authz.ScopeResource},
		{ScopeDomain, authz.ScopeDomain},
		{ScopeGlobal, authz.ScopeGlobal},
	}
	for _, tt := range tests {
		role, err := svc.Create(ctx, CreateRole{Name: "Temp " + string(tt.scope), Scope: tt.scope})
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, role.ID))
		assert.Equal(t, tt.want, syncer.cleared[role.ID], "scope %s", tt.scope)
		assert.Empty(t, syncer.synced[role.ID], "permission set cleared for %s", tt.scope)
		assert.NotContains(t, store.roles, role.ID)
	}
}

func TestDeleteMissingRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSeedPrototypesIdempotent(t *testing.T) {
	svc, store, syncer := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedPrototypes(ctx))
	require.Len(t, store.roles, 4)

	admin, err := store.FindPrototype(ctx, ScopeGlobal, PrototypeAdmin)
	require.NoError(t, err)
	assert.Equal(t, authz.AdminRoleID, admin.ID)
	assert.Empty(t, admin.Permissions)
	assert.Empty(t, syncer.synced[admin.ID])

	everyone, err := store.FindPrototype(ctx, ScopeGlobal, PrototypeEveryone)
	require.NoError(t, err)
	assert.Contains(t, everyone.Permissions, authz.ActionGlobalCreateDataProduct)
	assert.Contains(t, everyone.Permissions, authz.ActionGlobalRequestDatasetAccess)

	// Second run must not create duplicates or touch existing roles.
	require.NoError(t, svc.SeedPrototypes(ctx))
	assert.Len(t, store.roles, 4)
}

func TestSeedPrototypesOwnerPermissions(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedPrototypes(ctx))

	dsOwner, err := store.FindPrototype(ctx, ScopeDataset, PrototypeOwner)
	require.NoError(t, err)
	assert.Len(t, dsOwner.Permissions, 13)
	for _, p := range dsOwner.Permissions {
		assert.True(t, p >= 401 && p <= 413, "dataset owner carries only dataset actions, got %d", int(p))
	}

	dpOwner, err := store.FindPrototype(ctx, ScopeDataProduct, PrototypeOwner)
	require.NoError(t, err)
	assert.Len(t, dpOwner.Permissions, 15)
	for _, p := range dpOwner.Permissions {
		assert.True(t, p >= 301 && p <= 315, "data product owner carries only data product actions, got %d", int(p))
	}
}

func TestCreateRoleSyncFailureSurfaces(t *testing.T) {
	svc, _, syncer := newTestService(t)
	syncer.syncErr = errors.New("store down")

	_, err := svc.Create(context.Background(), CreateRole{Name: "Editor", Scope: ScopeDataset})
	require.Error(t, err)
}

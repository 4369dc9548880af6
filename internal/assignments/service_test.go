package assignments

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/roles"
	"github.com/meridian-data/meridian/internal/shared"
)

type mockAssignmentStore struct {
	records map[uuid.UUID]Assignment
}

func newMockAssignmentStore() *mockAssignmentStore {
	return &mockAssignmentStore{records: make(map[uuid.UUID]Assignment)}
}

func dupKey(a Assignment) string {
	res := ""
	if a.ResourceID != nil {
		res = a.ResourceID.String()
	}
	return fmt.Sprintf("%s|%s|%s|%s", a.Kind, res, a.UserID, a.RoleID)
}

func (m *mockAssignmentStore) Create(ctx context.Context, a Assignment) (Assignment, error) {
	for id, existing := range m.records {
		if dupKey(existing) != dupKey(a) {
			continue
		}
		if existing.Status == StatusDenied {
			delete(m.records, id)
			continue
		}
		return Assignment{}, shared.ErrValidation
	}
	m.records[a.ID] = a
	return a, nil
}

func (m *mockAssignmentStore) Get(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, ok := m.records[id]
	if !ok {
		return Assignment{}, shared.ErrNotFound
	}
	return a, nil
}

func (m *mockAssignmentStore) List(ctx context.Context, f ListFilter) ([]Assignment, error) {
	var out []Assignment
	for _, a := range m.records {
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAssignmentStore) Decide(ctx context.Context, id uuid.UUID, status DecisionStatus, decidedBy uuid.UUID) (Assignment, error) {
	a, ok := m.records[id]
	if !ok {
		return Assignment{}, shared.ErrNotFound
	}
	if a.Status != StatusPending {
		return Assignment{}, shared.ErrConflict
	}
	a.Status = status
	a.DecidedBy = &decidedBy
	m.records[id] = a
	return a, nil
}

func (m *mockAssignmentStore) UpdateRole(ctx context.Context, id, roleID uuid.UUID) (Assignment, error) {
	a, ok := m.records[id]
	if !ok {
		return Assignment{}, shared.ErrNotFound
	}
	a.RoleID = roleID
	m.records[id] = a
	return a, nil
}

func (m *mockAssignmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// mockGrants records grant writes by a readable key.
type mockGrants struct {
	held map[string]bool
}

func newMockGrants() *mockGrants {
	return &mockGrants{held: make(map[string]bool)}
}

func grantKey(userID, roleID uuid.UUID, resourceID string) string {
	return fmt.Sprintf("%s|%s|%s", userID, roleID, resourceID)
}

func (m *mockGrants) AssignResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error {
	m.held[grantKey(userID, roleID, resourceID)] = true
	return nil
}

func (m *mockGrants) RevokeResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error {
	delete(m.held, grantKey(userID, roleID, resourceID))
	return nil
}

func (m *mockGrants) AssignGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error {
	m.held[grantKey(userID, roleID, authz.Wildcard)] = true
	return nil
}

func (m *mockGrants) RevokeGlobalRole(ctx context.Context, userID, roleID uuid.UUID) error {
	delete(m.held, grantKey(userID, roleID, authz.Wildcard))
	return nil
}

type mockRoleLookup struct {
	roles map[uuid.UUID]roles.Role
}

func (m *mockRoleLookup) Get(ctx context.Context, id uuid.UUID) (roles.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return r, nil
}

type mockResources struct {
	existing map[string]bool
}

func (m *mockResources) Exists(ctx context.Context, kind authz.ResourceKind, objectID string) (bool, error) {
	return m.existing[objectID], nil
}

type fixture struct {
	svc       *Service
	store     *mockAssignmentStore
	grants    *mockGrants
	roleByID  map[uuid.UUID]roles.Role
	resources *mockResources

	editorRole uuid.UUID
	viewerRole uuid.UUID
	globalRole uuid.UUID
	product    uuid.UUID
	alice      uuid.UUID
	steward    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      newMockAssignmentStore(),
		grants:     newMockGrants(),
		editorRole: uuid.New(),
		viewerRole: uuid.New(),
		globalRole: uuid.New(),
		product:    uuid.New(),
		alice:      uuid.New(),
		steward:    uuid.New(),
	}
	f.roleByID = map[uuid.UUID]roles.Role{
		f.editorRole: {ID: f.editorRole, Name: "Editor", Scope: roles.ScopeDataProduct},
		f.viewerRole: {ID: f.viewerRole, Name: "Viewer", Scope: roles.ScopeDataProduct},
		f.globalRole: {ID: f.globalRole, Name: "Auditor", Scope: roles.ScopeGlobal},
	}
	f.resources = &mockResources{existing: map[string]bool{f.product.String(): true}}
	f.svc = NewService(slog.New(slog.DiscardHandler), f.store, f.grants,
		&mockRoleLookup{roles: f.roleByID}, f.resources)
	return f
}

func (f *fixture) request(t *testing.T) Assignment {
	t.Helper()
	a, err := f.svc.Request(context.Background(), CreateAssignment{
		Kind:       KindDataProduct,
		ResourceID: &f.product,
		UserID:     f.alice,
		RoleID:     f.editorRole,
	}, f.alice)
	require.NoError(t, err)
	return a
}

func TestRequestCreatesPendingWithoutGrant(t *testing.T) {
	f := newFixture(t)

	a := f.request(t)

	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, f.alice, a.RequestedBy)
	assert.Empty(t, f.grants.held, "no grant before approval")
}

func TestRequestAdminRoleRefused(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Request(context.Background(), CreateAssignment{
		Kind:   KindGlobal,
		UserID: f.alice,
		RoleID: authz.AdminRoleID,
	}, f.alice)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequestScopeMismatch(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Request(context.Background(), CreateAssignment{
		Kind:       KindDataset,
		ResourceID: &f.product,
		UserID:     f.alice,
		RoleID:     f.editorRole, // data product role on a dataset
	}, f.alice)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequestMissingResource(t *testing.T) {
	f := newFixture(t)
	ghost := uuid.New()

	_, err := f.svc.Request(context.Background(), CreateAssignment{
		Kind:       KindDataProduct,
		ResourceID: &ghost,
		UserID:     f.alice,
		RoleID:     f.editorRole,
	}, f.alice)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRequestGlobalWithResourceRefused(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Request(context.Background(), CreateAssignment{
		Kind:       KindGlobal,
		ResourceID: &f.product,
		UserID:     f.alice,
		RoleID:     f.globalRole,
	}, f.alice)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRequestDuplicateRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.request(t)
	_, err := f.svc.Request(ctx, CreateAssignment{
		Kind:       KindDataProduct,
		ResourceID: &f.product,
		UserID:     f.alice,
		RoleID:     f.editorRole,
	}, f.steward)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeniedRequestCanBeReRequested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.request(t)
	_, err := f.svc.Decide(ctx, a.ID, false, f.steward)
	require.NoError(t, err)

	// The denied record is replaced by the fresh request.
	again := f.request(t)
	assert.Equal(t, StatusPending, again.Status)
	assert.NotEqual(t, a.ID, again.ID)
	assert.Len(t, f.store.records, 1)
}

func TestApproveWritesGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.request(t)
	decided, err := f.svc.Decide(ctx, a.ID, true, f.steward)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, decided.Status)
	require.NotNil(t, decided.DecidedBy)
	assert.Equal(t, f.steward, *decided.DecidedBy)
	assert.True(t, f.grants.held[grantKey(f.alice, f.editorRole, f.product.String())])
}

func TestDenyWritesNoGrant(t *testing.T) {
	f := newFixture(t)

	a := f.request(t)
	decided, err := f.svc.Decide(context.Background(), a.ID, false, f.steward)
	require.NoError(t, err)

	assert.Equal(t, StatusDenied, decided.Status)
	assert.Empty(t, f.grants.held)
}

func TestDecideTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.request(t)
	_, err := f.svc.Decide(ctx, a.ID, true, f.steward)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, a.ID, false, f.steward)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.True(t, f.grants.held[grantKey(f.alice, f.editorRole, f.product.String())], "grant survives the rejected re-decision")
}

func TestRemoveApprovedRevokesGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.request(t)
	_, err := f.svc.Decide(ctx, a.ID, true, f.steward)
	require.NoError(t, err)

	require.NoError(t, f.svc.Remove(ctx, a.ID))
	assert.Empty(t, f.grants.held)
	assert.Empty(t, f.store.records)
}

func TestRemovePendingLeavesGrantsAlone(t *testing.T) {
	f := newFixture(t)

	a := f.request(t)
	require.NoError(t, f.svc.Remove(context.Background(), a.ID))
	assert.Empty(t, f.grants.held)
}

func TestModifyRoleSwapsGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.request(t)
	_, err := f.svc.Decide(ctx, a.ID, true, f.steward)
	require.NoError(t, err)

	updated, err := f.svc.ModifyRole(ctx, a.ID, f.viewerRole)
	require.NoError(t, err)

	assert.Equal(t, f.viewerRole, updated.RoleID)
	assert.False(t, f.grants.held[grantKey(f.alice, f.editorRole, f.product.String())], "old grant revoked")
	assert.True(t, f.grants.held[grantKey(f.alice, f.viewerRole, f.product.String())], "new grant written")
}

func TestModifyRoleOnPendingWritesNoGrant(t *testing.T) {
	f := newFixture(t)

	a := f.request(t)
	updated, err := f.svc.ModifyRole(context.Background(), a.ID, f.viewerRole)
	require.NoError(t, err)

	assert.Equal(t, f.viewerRole, updated.RoleID)
	assert.Empty(t, f.grants.held)
}

func TestModifyRoleToAdminRefused(t *testing.T) {
	f := newFixture(t)

	a := f.request(t)
	_, err := f.svc.ModifyRole(context.Background(), a.ID, authz.AdminRoleID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestGlobalAssignmentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Request(ctx, CreateAssignment{
		Kind:   KindGlobal,
		UserID: f.alice,
		RoleID: f.globalRole,
	}, f.steward)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, a.ID, true, f.steward)
	require.NoError(t, err)
	assert.True(t, f.grants.held[grantKey(f.alice, f.globalRole, authz.Wildcard)])

	require.NoError(t, f.svc.Remove(ctx, a.ID))
	assert.Empty(t, f.grants.held)
}

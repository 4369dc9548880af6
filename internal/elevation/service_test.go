package elevation

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/meridian/internal/shared"
)

type userState struct {
	canBecome bool
	expiry    *time.Time
}

type mockElevationStore struct {
	users map[uuid.UUID]*userState
	now   func() time.Time

	demoteErr map[uuid.UUID]error
}

func newMockElevationStore() *mockElevationStore {
	return &mockElevationStore{
		users:     make(map[uuid.UUID]*userState),
		now:       time.Now,
		demoteErr: make(map[uuid.UUID]error),
	}
}

func (m *mockElevationStore) Eligibility(ctx context.Context, userID uuid.UUID) (bool, *time.Time, error) {
	u, ok := m.users[userID]
	if !ok {
		return false, nil, shared.ErrNotFound
	}
	return u.canBecome, u.expiry, nil
}

func (m *mockElevationStore) SetExpiry(ctx context.Context, userID uuid.UUID, expiry *time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.expiry = expiry
	return nil
}

func (m *mockElevationStore) ListExpired(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, u := range m.users {
		if u.expiry != nil && !u.expiry.After(m.now()) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockElevationStore) Demote(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := m.demoteErr[userID]; err != nil {
		return false, err
	}
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	if u.expiry == nil || u.expiry.After(m.now()) {
		return false, nil
	}
	u.expiry = nil
	return true, nil
}

type mockAdminGranter struct {
	admins        map[uuid.UUID]bool
	invalidations int

	revokeErr error
}

func newMockAdminGranter() *mockAdminGranter {
	return &mockAdminGranter{admins: make(map[uuid.UUID]bool)}
}

func (m *mockAdminGranter) AssignAdminRole(ctx context.Context, userID uuid.UUID) error {
	m.admins[userID] = true
	return nil
}

func (m *mockAdminGranter) RevokeAdminRole(ctx context.Context, userID uuid.UUID) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	delete(m.admins, userID)
	return nil
}

func (m *mockAdminGranter) InvalidateCache(ctx context.Context) {
	m.invalidations++
}

func newTestService(t *testing.T) (*Service, *mockElevationStore, *mockAdminGranter) {
	t.Helper()
	store := newMockElevationStore()
	grants := newMockAdminGranter()
	svc := NewService(slog.New(slog.DiscardHandler), store, grants, time.Hour)
	return svc, store, grants
}

func TestBecomeAdmin(t *testing.T) {
	svc, store, grants := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true}

	start := time.Now()
	expiry, err := svc.BecomeAdmin(context.Background(), userID, 0)
	require.NoError(t, err)

	assert.True(t, grants.admins[userID])
	assert.WithinDuration(t, start.Add(time.Hour), expiry, 5*time.Second)
	require.NotNil(t, store.users[userID].expiry)
}

func TestBecomeAdminRequestedWindow(t *testing.T) {
	svc, store, _ := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true}
	ctx := context.Background()

	start := time.Now()
	expiry, err := svc.BecomeAdmin(ctx, userID, 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, start.Add(15*time.Minute), expiry, 5*time.Second)

	// Asking for more than the configured window gets the cap.
	expiry, err = svc.BecomeAdmin(ctx, userID, 48*time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, start.Add(time.Hour), expiry, 5*time.Second)

	_, err = svc.BecomeAdmin(ctx, userID, -time.Minute)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBecomeAdminIneligible(t *testing.T) {
	svc, store, grants := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: false}

	_, err := svc.BecomeAdmin(context.Background(), userID, 0)
	require.ErrorIs(t, err, shared.ErrForbidden)
	assert.False(t, grants.admins[userID])
	assert.Nil(t, store.users[userID].expiry)
}

func TestBecomeAdminUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.BecomeAdmin(context.Background(), uuid.New(), 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReElevationExtendsWindow(t *testing.T) {
	svc, store, grants := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true}
	ctx := context.Background()

	first, err := svc.BecomeAdmin(ctx, userID, 0)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	second, err := svc.BecomeAdmin(ctx, userID, 0)
	require.NoError(t, err)

	assert.True(t, second.After(first), "fresh elevation pushes the expiry out")
	assert.True(t, grants.admins[userID])
}

func TestRevokeAdmin(t *testing.T) {
	svc, store, grants := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true}
	ctx := context.Background()

	_, err := svc.BecomeAdmin(ctx, userID, 0)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAdmin(ctx, userID))
	assert.False(t, grants.admins[userID])
	assert.Nil(t, store.users[userID].expiry)
}

func TestFailedRevokeLeavesExpiryForSweep(t *testing.T) {
	svc, store, grants := newTestService(t)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true}
	ctx := context.Background()

	_, err := svc.BecomeAdmin(ctx, userID, 0)
	require.NoError(t, err)

	grants.revokeErr = errors.New("connection reset")
	require.Error(t, svc.RevokeAdmin(ctx, userID))

	// The grant is still held, so the expiry must still be set: a grant
	// with no expiry would hold admin forever and never appear in the
	// sweep's expired list.
	assert.True(t, grants.admins[userID])
	require.NotNil(t, store.users[userID].expiry)

	// Once the window lapses the sweep picks the user up as usual.
	grants.revokeErr = nil
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	demoted, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)
	assert.Nil(t, store.users[userID].expiry)
}

func TestSweepDemotesOnlyExpired(t *testing.T) {
	svc, store, grants := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	lapsed := uuid.New()
	active := uuid.New()
	store.users[lapsed] = &userState{canBecome: true, expiry: &past}
	store.users[active] = &userState{canBecome: true, expiry: &future}

	demoted, err := svc.SweepExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, demoted)
	assert.Nil(t, store.users[lapsed].expiry)
	assert.NotNil(t, store.users[active].expiry)
	assert.Equal(t, 1, grants.invalidations)
}

func TestSweepIsIdempotent(t *testing.T) {
	svc, store, grants := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	userID := uuid.New()
	store.users[userID] = &userState{canBecome: true, expiry: &past}

	demoted, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, demoted)

	demoted, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)
	assert.Equal(t, 1, grants.invalidations, "no cache churn when nothing changed")
}

func TestSweepIsolatesFailures(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	broken := uuid.New()
	fine := uuid.New()
	store.users[broken] = &userState{expiry: &past}
	store.users[fine] = &userState{expiry: &past}
	store.demoteErr[broken] = errors.New("deadlock")

	demoted, err := svc.SweepExpired(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, demoted)
	assert.Nil(t, store.users[fine].expiry)
	assert.NotNil(t, store.users[broken].expiry, "failed demotion left for the next sweep")
}

func TestSweepWithNothingExpired(t *testing.T) {
	svc, _, grants := newTestService(t)

	demoted, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, demoted)
	assert.Equal(t, 0, grants.invalidations)
}

package elevation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/shared"
)

// DefaultWindow is how long an elevation lasts before the sweep demotes it.
const DefaultWindow = time.Hour

// ElevationStore is the persistence port for elevation state.
type ElevationStore interface {
	Eligibility(ctx context.Context, userID uuid.UUID) (bool, *time.Time, error)
	SetExpiry(ctx context.Context, userID uuid.UUID, expiry *time.Time) error
	ListExpired(ctx context.Context) ([]uuid.UUID, error)
	Demote(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AdminGranter is the slice of the authorization engine elevation drives.
type AdminGranter interface {
	AssignAdminRole(ctx context.Context, userID uuid.UUID) error
	RevokeAdminRole(ctx context.Context, userID uuid.UUID) error
	InvalidateCache(ctx context.Context)
}

type Service struct {
	logger *slog.Logger
	store  ElevationStore
	grants AdminGranter
	window time.Duration
	now    func() time.Time
}

func NewService(logger *slog.Logger, store ElevationStore, grants AdminGranter, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{logger: logger, store: store, grants: grants, window: window, now: time.Now}
}

// BecomeAdmin elevates an eligible user for the requested window, stamping
// a fresh expiry and writing the admin grant. A zero window means the
// configured default; anything longer is capped at it. Elevating while
// already elevated just replaces the expiry (last-write-wins, no stacking);
// the grant insert is idempotent.
func (s *Service) BecomeAdmin(ctx context.Context, userID uuid.UUID, window time.Duration) (time.Time, error) {
	eligible, _, err := s.store.Eligibility(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}
	if !eligible {
		return time.Time{}, fmt.Errorf("%w: user is not eligible for admin elevation", shared.ErrForbidden)
	}

	if window < 0 {
		return time.Time{}, fmt.Errorf("%w: elevation window must be positive", shared.ErrValidation)
	}
	if window == 0 || window > s.window {
		window = s.window
	}

	expiry := s.now().Add(window).UTC()
	if err := s.store.SetExpiry(ctx, userID, &expiry); err != nil {
		return time.Time{}, err
	}
	if err := s.grants.AssignAdminRole(ctx, userID); err != nil {
		return time.Time{}, fmt.Errorf("assign admin role: %w", err)
	}
	s.logger.Info("admin elevation granted", "user_id", userID, "expires_at", expiry)
	return expiry, nil
}

// RevokeAdmin ends an elevation early. Revoking without an active elevation
// is a no-op rather than an error. The grant goes first: if the revoke
// fails, the expiry stays set and the sweep still demotes the user when the
// window lapses. Clearing the expiry first would strand a live grant with
// no expiry for the sweep to find.
func (s *Service) RevokeAdmin(ctx context.Context, userID uuid.UUID) error {
	if err := s.grants.RevokeAdminRole(ctx, userID); err != nil {
		return fmt.Errorf("revoke admin role: %w", err)
	}
	if err := s.store.SetExpiry(ctx, userID, nil); err != nil {
		return err
	}
	s.logger.Info("admin elevation revoked", "user_id", userID)
	return nil
}

// SweepExpired demotes every user whose elevation window has lapsed. Each
// demotion is its own transaction with a locked re-check, so the sweep is
// idempotent and a failure on one user never blocks the rest. The decision
// cache is invalidated once, after the batch.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpired(ctx)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	demoted := 0
	for _, userID := range expired {
		ok, err := s.store.Demote(ctx, userID)
		if err != nil {
			s.logger.Error("admin demotion failed", "user_id", userID, "error", err)
			continue
		}
		if ok {
			demoted++
			s.logger.Info("admin elevation expired", "user_id", userID)
		}
	}
	if demoted > 0 {
		s.grants.InvalidateCache(ctx)
	}
	return demoted, nil
}
